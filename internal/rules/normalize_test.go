package rules

import "testing"

func TestNormalizeCaseFolding(t *testing.T) {
	if got := Normalize("Data Engineer", false, false); got != "dataengineer" {
		t.Errorf("got %q", got)
	}
	if got := Normalize("Data Engineer", true, false); got != "DataEngineer" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeSpaceSensitive(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Data Engineer", " data engineer "},
		{"Data-Engineer (m/w/d)", " data engineer m w d "},
		{"  spaced   out  ", " spaced out "},
		{"ci/cd, devops!", " ci cd devops "},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in, false, true); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeStripsAllWhitespace(t *testing.T) {
	if got := Normalize("a b\tc\nd", true, false); got != "abcd" {
		t.Errorf("got %q", got)
	}
}

// Normalizing an already-normalized string must be a no-op for every
// sensitivity combination.
func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"Data Engineer", "BI-Analyst (Senior)", "  x  y  ", "ML Ops"}
	for _, cs := range []bool{true, false} {
		for _, ss := range []bool{true, false} {
			for _, in := range inputs {
				once := Normalize(in, cs, ss)
				twice := Normalize(once, cs, ss)
				if once != twice {
					t.Errorf("not idempotent (cs=%v ss=%v): %q -> %q -> %q", cs, ss, in, once, twice)
				}
			}
		}
	}
}
