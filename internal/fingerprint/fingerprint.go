// Package fingerprint derives content-based identifiers for job postings.
//
// Two postings with the same title, company, city and description windows
// map to the same fingerprint across repeated crawls, which makes it the
// deduplication key for the analytical tables.
package fingerprint

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"unicode"
)

// Sampled rune windows per attribute. Short fields simply contribute less;
// the tail window anchors near the end of long descriptions so trailing
// boilerplate edits still change the digest.
var windows = [][2]int{
	{0, 100},
	{500, 550},
	{1500, 1550},
	{-300, -250},
}

// New hashes the given attributes into a fixed-length hex fingerprint.
// Attribute order matters. A nil attribute contributes an empty fragment.
func New(attrs ...*string) string {
	var b strings.Builder
	for _, attr := range attrs {
		if attr == nil {
			continue
		}
		b.WriteString(fragment(*attr))
	}
	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// fragment samples the fixed windows from the value, lowercases the result
// and keeps ASCII letters only.
func fragment(value string) string {
	runes := []rune(value)
	var raw []rune
	for _, w := range windows {
		raw = append(raw, slice(runes, w[0], w[1])...)
	}

	var b strings.Builder
	for _, r := range raw {
		r = unicode.ToLower(r)
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// slice returns runes[start:end) with Python-style clamping: negative
// offsets count from the end and out-of-range windows collapse to empty.
func slice(runes []rune, start, end int) []rune {
	n := len(runes)
	if start < 0 {
		start = n + start
	}
	if end < 0 {
		end = n + end
	}
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if end < 0 {
		end = 0
	}
	if start >= end {
		return nil
	}
	return runes[start:end]
}
