package curate

import (
	"strings"

	"golang.org/x/text/cases"
)

// PatternSet is a set of case-insensitive substrings matched against a title.
//
// Matching uses Unicode case folding, so "LIVE", "Live" and "live" all match
// the pattern "live", as do folded forms outside ASCII. Matching is substring
// containment: "alive" matches "live".
type PatternSet struct {
	patterns []string
	folded   []string
}

// NewPatternSet builds a set from patterns. Blank patterns are dropped since
// they would match every title; duplicates (after folding) are collapsed.
func NewPatternSet(patterns ...string) PatternSet {
	fold := cases.Fold()
	ps := PatternSet{}
	seen := make(map[string]struct{}, len(patterns))
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		f := fold.String(p)
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		ps.patterns = append(ps.patterns, p)
		ps.folded = append(ps.folded, f)
	}
	return ps
}

// Patterns returns the patterns in the order given.
func (ps PatternSet) Patterns() []string {
	return append([]string(nil), ps.patterns...)
}

// Len returns the number of patterns.
func (ps PatternSet) Len() int { return len(ps.patterns) }

// Match reports the first pattern contained in s.
func (ps PatternSet) Match(s string) (string, bool) {
	if len(ps.folded) == 0 {
		return "", false
	}
	fs := cases.Fold().String(s)
	for i, f := range ps.folded {
		if strings.Contains(fs, f) {
			return ps.patterns[i], true
		}
	}
	return "", false
}
