package rulesource

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"jobnorm/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeWorkbook(t *testing.T, sheet string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != f.GetSheetName(0) {
		f.SetSheetName(f.GetSheetName(0), sheet)
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "rules.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWorkbookRules(t *testing.T) {
	path := writeWorkbook(t, "skills", [][]any{
		{"keyword", "result", "case_sensitive", "spaces_sensitive"},
		{"bigquery", "Google BigQuery", "FALSE", "FALSE"},
		{"", "SQL", "FALSE", "TRUE"},
	})

	rules, err := NewWorkbook(path, discardLogger()).Rules(context.Background(), "skills")
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(rules))
	}
	if rules[0].Keyword == nil || *rules[0].Keyword != "bigquery" {
		t.Errorf("keyword = %v, want bigquery", rules[0].Keyword)
	}
	if rules[0].CaseSensitive == nil || *rules[0].CaseSensitive {
		t.Errorf("case_sensitive should parse to false")
	}
	if rules[1].Keyword != nil {
		t.Errorf("blank keyword cell should stay nil, got %q", *rules[1].Keyword)
	}
	if rules[1].SpacesSensitive == nil || !*rules[1].SpacesSensitive {
		t.Errorf("spaces_sensitive should parse to true")
	}
}

func TestWorkbookMissingColumn(t *testing.T) {
	path := writeWorkbook(t, "skills", [][]any{
		{"keyword", "result", "case_sensitive"},
		{"sql", "SQL", "FALSE"},
	})

	_, err := NewWorkbook(path, discardLogger()).Rules(context.Background(), "skills")
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestWorkbookInvalidBoolean(t *testing.T) {
	path := writeWorkbook(t, "skills", [][]any{
		{"keyword", "result", "case_sensitive", "spaces_sensitive"},
		{"sql", "SQL", "maybe", "FALSE"},
	})

	_, err := NewWorkbook(path, discardLogger()).Rules(context.Background(), "skills")
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestSheetExportRules(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "keyword,result,case_sensitive,spaces_sensitive\nbigquery,Google BigQuery,false,false\n,SQL,false,true\n")
	}))
	defer srv.Close()

	src := NewSheetExport(map[string]string{"skills": srv.URL}, srv.Client(), discardLogger())
	rules, err := src.Rules(context.Background(), "skills")
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(rules))
	}
	if rules[1].Result == nil || *rules[1].Result != "SQL" {
		t.Errorf("result = %v, want SQL", rules[1].Result)
	}
}

func TestSheetExportHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	src := NewSheetExport(map[string]string{"skills": srv.URL}, srv.Client(), discardLogger())
	_, err := src.Rules(context.Background(), "skills")
	var herr *model.HTTPError
	if !errors.As(err, &herr) {
		t.Fatalf("want HTTPError, got %v", err)
	}
	if herr.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", herr.StatusCode)
	}
}

func TestSheetExportUnknownDomain(t *testing.T) {
	src := NewSheetExport(map[string]string{}, http.DefaultClient, discardLogger())
	_, err := src.Rules(context.Background(), "skills")
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}
