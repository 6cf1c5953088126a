// Package rulesource reads classification rule feeds. Rules are authored in
// spreadsheets, so two feeds are supported: a local xlsx workbook with one
// sheet per domain, and an HTTP CSV export of the same layout.
package rulesource

import (
	"fmt"
	"strconv"
	"strings"

	"jobnorm/internal/model"
)

// Rule feed column headers. Matching is case-insensitive and ignores
// surrounding whitespace; column order does not matter.
const (
	colKeyword         = "keyword"
	colResult          = "result"
	colCaseSensitive   = "case_sensitive"
	colSpacesSensitive = "spaces_sensitive"
)

// parseRows turns a raw cell grid (header row first) into rule rows. Blank
// cells become nil so the rule builder can distinguish a missing attribute
// from an empty one.
func parseRows(grid [][]string, subject string) ([]model.MappingRule, error) {
	if len(grid) == 0 {
		return nil, &model.ValidationError{Subject: subject, Reason: "feed is empty"}
	}

	index := map[string]int{}
	for i, header := range grid[0] {
		index[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, required := range []string{colKeyword, colResult, colCaseSensitive, colSpacesSensitive} {
		if _, ok := index[required]; !ok {
			return nil, &model.ValidationError{Subject: subject, Reason: fmt.Sprintf("missing column %q", required)}
		}
	}

	rules := make([]model.MappingRule, 0, len(grid)-1)
	for n, row := range grid[1:] {
		if blankRow(row) {
			continue
		}
		caseSensitive, err := cellBool(row, index[colCaseSensitive])
		if err != nil {
			return nil, &model.ValidationError{Subject: subject, Reason: fmt.Sprintf("row %d: %v", n+1, err)}
		}
		spacesSensitive, err := cellBool(row, index[colSpacesSensitive])
		if err != nil {
			return nil, &model.ValidationError{Subject: subject, Reason: fmt.Sprintf("row %d: %v", n+1, err)}
		}
		rules = append(rules, model.MappingRule{
			Keyword:         cellText(row, index[colKeyword]),
			Result:          cellText(row, index[colResult]),
			CaseSensitive:   caseSensitive,
			SpacesSensitive: spacesSensitive,
		})
	}
	return rules, nil
}

func cellText(row []string, i int) *string {
	if i >= len(row) {
		return nil
	}
	text := strings.TrimSpace(row[i])
	if text == "" {
		return nil
	}
	return &text
}

func cellBool(row []string, i int) (*bool, error) {
	text := cellText(row, i)
	if text == nil {
		return nil, nil
	}
	value, err := strconv.ParseBool(strings.ToLower(*text))
	if err != nil {
		return nil, fmt.Errorf("invalid boolean %q", *text)
	}
	return &value, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
