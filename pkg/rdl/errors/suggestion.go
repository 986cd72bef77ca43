package errors

import (
	"fmt"
	"strings"
)

// SuggestClosest suggests the closest valid name for an unknown one.
func SuggestClosest(unknown string, valid []string) string {
	if len(valid) == 0 {
		return ""
	}

	best, bestDist := "", -1
	for _, v := range valid {
		d := levenshtein(strings.ToLower(unknown), strings.ToLower(v))
		if bestDist < 0 || d < bestDist {
			best, bestDist = v, d
		}
	}

	if bestDist <= 3 {
		return fmt.Sprintf("did you mean %q?", best)
	}
	return fmt.Sprintf("valid values: %s", strings.Join(valid, ", "))
}

// SuggestOperators lists the operators valid for an attribute kind.
func SuggestOperators(kind string) string {
	switch kind {
	case "number":
		return "valid operators: ==, !=, <, >, <=, >=, in, not_in, exists"
	case "bool":
		return "valid operators: ==, !=, exists"
	case "string":
		return "valid operators: ==, !=, in, not_in, contains, starts_with, ends_with, matches, exists"
	default:
		return "valid operators: ==, !=, <, >, <=, >=, in, not_in, contains, starts_with, ends_with, matches, exists"
	}
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
