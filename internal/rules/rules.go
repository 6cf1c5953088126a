package rules

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"jobnorm/internal/model"
)

// PreparedRule is one keyword→label rule with its keyword already
// normalized for the group it belongs to.
type PreparedRule struct {
	Keyword         string // normalized form used for matching
	RawKeyword      string // as declared in the feed
	Result          string
	CaseSensitive   bool
	SpacesSensitive bool
}

type groupKey struct {
	caseSensitive   bool
	spacesSensitive bool
}

// ruleGroup holds every rule sharing one (case, spaces) sensitivity pair,
// in declaration order.
type ruleGroup struct {
	key   groupKey
	rules []PreparedRule
}

// Set is an immutable, validated collection of mapping rules for one
// classification domain. Build it with a Builder; an existing Set never
// changes, so it is safe to share across runs.
type Set struct {
	name    string
	groups  []ruleGroup
	results []string // unique result labels in declaration order
	logger  *slog.Logger
}

// Builder validates external rule rows and produces a prepared Set.
// Construction is one-shot: validation failures surface here, never at
// lookup time.
type Builder struct {
	name   string
	rows   []model.MappingRule
	logger *slog.Logger
}

// NewBuilder wraps a rule feed for the named domain.
func NewBuilder(name string, rows []model.MappingRule, logger *slog.Logger) *Builder {
	return &Builder{name: name, rows: rows, logger: logger}
}

// Build validates every row, fills missing keywords from the result label,
// groups rules by sensitivity pair and normalizes their keywords.
//
// Returns a ValidationError when a required attribute is missing or when
// two rows share a keyword after normalization.
func (b *Builder) Build() (*Set, error) {
	subject := b.name + " rules"

	prepared := make([]PreparedRule, 0, len(b.rows))
	for i, row := range b.rows {
		if row.Result == nil {
			return nil, &model.ValidationError{Subject: subject, Reason: fmt.Sprintf("row %d: missing attribute %q", i+1, "result")}
		}
		if row.CaseSensitive == nil {
			return nil, &model.ValidationError{Subject: subject, Reason: fmt.Sprintf("row %d: missing attribute %q", i+1, "case_sensitive")}
		}
		if row.SpacesSensitive == nil {
			return nil, &model.ValidationError{Subject: subject, Reason: fmt.Sprintf("row %d: missing attribute %q", i+1, "spaces_sensitive")}
		}

		keyword := *row.Result // null keyword implies keyword == result
		if row.Keyword != nil {
			keyword = *row.Keyword
		}

		rule := PreparedRule{
			RawKeyword:      keyword,
			Result:          *row.Result,
			CaseSensitive:   *row.CaseSensitive,
			SpacesSensitive: *row.SpacesSensitive,
		}
		rule.Keyword = Normalize(keyword, rule.CaseSensitive, rule.SpacesSensitive)
		if rule.SpacesSensitive && b.keywordAltered(keyword, rule) {
			b.logger.Warn("keyword altered by normalization",
				"domain", b.name,
				"keyword", keyword,
				"normalized", rule.Keyword,
			)
		}
		prepared = append(prepared, rule)
	}

	if err := checkDuplicates(subject, prepared); err != nil {
		return nil, err
	}

	set := &Set{name: b.name, logger: b.logger}
	groupIndex := map[groupKey]int{}
	seenResults := map[string]bool{}
	for _, rule := range prepared {
		key := groupKey{rule.CaseSensitive, rule.SpacesSensitive}
		idx, ok := groupIndex[key]
		if !ok {
			idx = len(set.groups)
			groupIndex[key] = idx
			set.groups = append(set.groups, ruleGroup{key: key})
		}
		set.groups[idx].rules = append(set.groups[idx].rules, rule)

		if !seenResults[rule.Result] {
			seenResults[rule.Result] = true
			set.results = append(set.results, rule.Result)
		}
	}
	return set, nil
}

// keywordAltered reports whether space-sensitive normalization changed the
// keyword beyond the mandatory padding. A rule-authoring hint, not an error.
func (b *Builder) keywordAltered(raw string, rule PreparedRule) bool {
	base := raw
	if !rule.CaseSensitive {
		base = strings.ToLower(base)
	}
	return rule.Keyword != " "+base+" "
}

func checkDuplicates(subject string, prepared []PreparedRule) error {
	byKeyword := map[string][]int{}
	for i, rule := range prepared {
		byKeyword[rule.Keyword] = append(byKeyword[rule.Keyword], i+1)
	}

	var dupes []string
	for keyword, rows := range byKeyword {
		if len(rows) > 1 {
			dupes = append(dupes, fmt.Sprintf("%q (rows %s)", keyword, joinInts(rows)))
		}
	}
	if len(dupes) == 0 {
		return nil
	}
	sort.Strings(dupes)
	return &model.ValidationError{
		Subject: subject,
		Reason:  "duplicate keywords after normalization: " + strings.Join(dupes, ", "),
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}

// Name returns the classification domain this set was built for.
func (s *Set) Name() string { return s.name }

// Results returns the distinct result labels in declaration order.
func (s *Set) Results() []string {
	out := make([]string, len(s.results))
	copy(out, s.results)
	return out
}

// Rules returns every prepared rule in scan order (group, then declaration).
func (s *Set) Rules() []PreparedRule {
	var out []PreparedRule
	for _, g := range s.groups {
		out = append(out, g.rules...)
	}
	return out
}

// Len returns the number of rules in the set.
func (s *Set) Len() int {
	n := 0
	for _, g := range s.groups {
		n += len(g.rules)
	}
	return n
}

// First scans groups in declaration order, then texts in given order, then
// rules in declaration order, and returns the first matching label. A nil
// text is skipped with a warning. The second return is false when nothing
// matched; callers supply their own fallback.
func (s *Set) First(texts ...*string) (string, bool) {
	present := s.presentTexts(texts)
	for _, g := range s.groups {
		for _, text := range present {
			haystack := Normalize(*text, g.key.caseSensitive, g.key.spacesSensitive)
			for _, rule := range g.rules {
				if strings.Contains(haystack, rule.Keyword) {
					return rule.Result, true
				}
			}
		}
	}
	return "", false
}

// All performs the same scan as First but accumulates every matching label.
// The result is an empty set when nothing matched.
func (s *Set) All(texts ...*string) map[string]bool {
	matched := map[string]bool{}
	present := s.presentTexts(texts)
	for _, g := range s.groups {
		for _, text := range present {
			haystack := Normalize(*text, g.key.caseSensitive, g.key.spacesSensitive)
			for _, rule := range g.rules {
				if strings.Contains(haystack, rule.Keyword) {
					matched[rule.Result] = true
				}
			}
		}
	}
	return matched
}

// presentTexts filters out nil texts, warning once per dropped entry.
func (s *Set) presentTexts(texts []*string) []*string {
	out := make([]*string, 0, len(texts))
	for _, text := range texts {
		if text == nil {
			if s.logger != nil {
				s.logger.Warn("nil text passed to rule matching, skipping", "domain", s.name)
			}
			continue
		}
		out = append(out, text)
	}
	return out
}
