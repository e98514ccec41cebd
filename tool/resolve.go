package tool

import (
	"strings"
	"unicode"
)

// maxEditDistance bounds the fuzzy match: beyond three edits a name is more
// likely a hallucinated tool than a typo.
const maxEditDistance = 3

// ResolveName repairs a model-issued tool name against the registered names
// when no exact match exists. Strategies apply in order, first success wins:
//
//  1. exact match (makes resolution idempotent for correct names)
//  2. case-insensitive match
//  3. camelCase/PascalCase to snake_case conversion, then match
//  4. minimum edit distance match, accepted when the distance is at most 3
//
// candidates must be sorted so equal-distance fuzzy ties break
// deterministically. The empty string and false are returned when every
// strategy fails; callers reroute such calls to the __invalid__ sentinel.
func ResolveName(name string, candidates []string) (string, bool) {
	if name == "" {
		return "", false
	}

	for _, c := range candidates {
		if c == name {
			return c, true
		}
	}

	for _, c := range candidates {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}

	snake := ToSnakeCase(name)
	for _, c := range candidates {
		if c == snake || strings.EqualFold(c, snake) {
			return c, true
		}
	}

	best := ""
	bestDist := maxEditDistance + 1
	for _, c := range candidates {
		if d := editDistance(name, c); d < bestDist {
			best = c
			bestDist = d
		}
	}
	if best != "" {
		return best, true
	}

	return "", false
}

// ToSnakeCase converts camelCase / PascalCase names to snake_case: an
// underscore is inserted before each uppercase letter not already preceded
// by one (never at the start), then the whole name is lowercased.
func ToSnakeCase(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)

	for i, r := range name {
		if unicode.IsUpper(r) && i > 0 && name[i-1] != '_' {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// editDistance computes the Levenshtein distance between a and b using the
// two-row dynamic programming formulation.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
