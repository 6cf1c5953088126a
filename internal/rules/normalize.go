package rules

import (
	"strings"
	"unicode"
)

// Punctuation folded to a single space in space-sensitive mode. Everything
// else is kept so that token boundaries survive.
var punctReplacer = strings.NewReplacer(
	"!", " ",
	`"`, " ",
	"$", " ",
	"%", " ",
	"'", " ",
	"(", " ",
	")", " ",
	"+", " ",
	",", " ",
	"-", " ",
	".", " ",
	"/", " ",
	":", " ",
	";", " ",
	"?", " ",
)

// Normalize canonicalizes free text for keyword matching.
//
// Case-insensitive mode lowercases the input. Space-insensitive mode strips
// all whitespace, so substring containment compares contiguous token
// strings. Space-sensitive mode folds punctuation to spaces, collapses
// whitespace and pads the result with one leading and one trailing space,
// so a keyword can only match on whole-token boundaries.
func Normalize(text string, caseSensitive, spacesSensitive bool) string {
	s := text
	if !caseSensitive {
		s = strings.ToLower(s)
	}
	if !spacesSensitive {
		return stripSpaces(s)
	}
	s = punctReplacer.Replace(s)
	fields := strings.Fields(s)
	return " " + strings.Join(fields, " ") + " "
}

func stripSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
