// Package match implements the fuzzy name matching used by the entity
// resolver: a longest-matching-blocks similarity ratio over normalized
// strings, with a hard acceptance cutoff.
package match

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultCutoff is the minimum similarity ratio for a match to be accepted.
const DefaultCutoff = 0.8

var separators = regexp.MustCompile(`[\s\-_/]+`)

// Normalize prepares a name for comparison: Unicode compatibility
// normalization, lowercasing, and collapsing runs of whitespace, hyphens,
// underscores, and slashes to a single space.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	s = separators.ReplaceAllString(s, " ")
	return s
}

// Ratio returns a similarity measure in [0, 1] between a and b: twice the
// total length of matching blocks divided by the total length of both
// strings. Equal strings score 1, disjoint strings score 0.
func Ratio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	matched := matchingTotal(ra, rb, 0, len(ra), 0, len(rb))
	return 2 * float64(matched) / float64(len(ra)+len(rb))
}

// matchingTotal sums the lengths of matching blocks by recursively finding
// the longest common substring in each region, the same divide-and-conquer
// difflib uses.
func matchingTotal(a, b []rune, alo, ahi, blo, bhi int) int {
	ai, bj, size := longestMatch(a, b, alo, ahi, blo, bhi)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingTotal(a, b, alo, ai, blo, bj)
	total += matchingTotal(a, b, ai+size, ahi, bj+size, bhi)
	return total
}

func longestMatch(a, b []rune, alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	besti, bestj = alo, blo
	// j2len[j] = length of the longest match ending at a[i-1], b[j-1]
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newj2len := make(map[int]int)
		for j := blo; j < bhi; j++ {
			if a[i] != b[j] {
				continue
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}
	return besti, bestj, bestsize
}

// BestMatch returns the candidate whose normalized form is most similar to
// the normalized name, provided the ratio meets the cutoff. Below the cutoff
// it returns ("", false), never a forced best-effort guess. The first of
// equally scored candidates wins.
func BestMatch(name string, candidates []string, cutoff float64) (string, bool) {
	if name == "" || len(candidates) == 0 {
		return "", false
	}
	target := Normalize(name)
	best := ""
	bestScore := 0.0
	for _, c := range candidates {
		score := Ratio(target, Normalize(c))
		if score > bestScore {
			best = c
			bestScore = score
		}
	}
	if bestScore < cutoff {
		return "", false
	}
	return best, true
}
