// Package similarity scores how alike two strings are on a 0-100 scale.
//
// Ratio is the normalized Indel similarity (insertions and deletions only),
// so a single substitution costs two edits. TokenSortRatio and PartialRatio
// build on it the way fuzzy string matching tools usually define them, which
// keeps the matching thresholds used elsewhere meaningful.
package similarity

import (
	"sort"
	"strings"
)

// Scorer compares two strings and returns a score in [0, 100].
type Scorer func(a, b string) float64

// Ratio returns 100 * (1 - indel(a, b) / (len(a) + len(b))), computed over
// runes. Two empty strings score 100; one empty string scores 0.
func Ratio(a, b string) float64 {
	return ratioRunes([]rune(a), []rune(b))
}

// TokenSortRatio splits both strings on whitespace, sorts the tokens, joins
// them with single spaces, and returns the Ratio of the results. Word order
// therefore does not affect the score, and the score is symmetric.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortTokens(a), sortTokens(b))
}

// PartialRatio returns the best Ratio between the shorter string and any
// window of the longer string with the shorter string's length. Windows that
// are cut off at either end of the longer string are included.
func PartialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 100
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}

	best := partialRunes(ra, rb)
	if len(ra) == len(rb) && best < 100 {
		if s := partialRunes(rb, ra); s > best {
			best = s
		}
	}
	return best
}

// ExtractOne scores query against every choice and returns the index and
// score of the first choice with the highest score. ok is false when there
// are no choices.
func ExtractOne(query string, choices []string, scorer Scorer) (index int, score float64, ok bool) {
	index = -1
	for i, c := range choices {
		s := scorer(query, c)
		if index < 0 || s > score {
			index, score = i, s
			if s == 100 {
				break
			}
		}
	}
	return index, score, index >= 0
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// partialRunes slides needle (the shorter input) across haystack.
func partialRunes(needle, haystack []rune) float64 {
	n, h := len(needle), len(haystack)
	var best float64

	try := func(window []rune) bool {
		if s := ratioRunes(needle, window); s > best {
			best = s
		}
		return best == 100
	}

	// Windows truncated at the start of haystack.
	for i := 1; i < n; i++ {
		if try(haystack[:i]) {
			return best
		}
	}
	// Full-length windows.
	for i := 0; i+n <= h; i++ {
		if try(haystack[i : i+n]) {
			return best
		}
	}
	// Windows truncated at the end of haystack.
	for i := h - n + 1; i < h; i++ {
		if try(haystack[i:]) {
			return best
		}
	}
	return best
}

func ratioRunes(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return 200 * float64(lcs(a, b)) / float64(total)
}

// lcs returns the length of the longest common subsequence of a and b.
func lcs(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
