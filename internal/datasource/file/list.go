package file

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// List finds input files under dir matching pattern. Matching is
// case-insensitive with respect to the pattern: "*.CSV" also picks up
// data.csv and Data.Csv. Results are de-duplicated and sorted, so the caller
// sees the same order regardless of filesystem enumeration.
func List(dir, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, p := range patternVariants(pattern) {
		matches, err := filepath.Glob(filepath.Join(dir, p))
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			seen[m] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// patternVariants rewrites every ASCII letter in the pattern as a two-letter
// character class, so one Glob call matches any casing of the literal parts.
// Patterns that already contain classes are globbed as-is plus their fully
// lower- and upper-cased forms.
func patternVariants(pattern string) []string {
	if strings.ContainsAny(pattern, "[]") {
		return dedupe([]string{pattern, strings.ToLower(pattern), strings.ToUpper(pattern)})
	}

	var b strings.Builder
	caseless := false
	for _, r := range pattern {
		switch {
		case r >= 'a' && r <= 'z':
			caseless = true
			fmt.Fprintf(&b, "[%c%c]", r, r-('a'-'A'))
		case r >= 'A' && r <= 'Z':
			caseless = true
			fmt.Fprintf(&b, "[%c%c]", r+('a'-'A'), r)
		default:
			b.WriteRune(r)
		}
	}
	if !caseless {
		return []string{pattern}
	}
	return []string{b.String()}
}

func dedupe(patterns []string) []string {
	out := patterns[:0]
	seen := make(map[string]struct{}, len(patterns))
	for _, p := range patterns {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
