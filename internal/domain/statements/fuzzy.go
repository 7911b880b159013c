package statements

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// normalizeName uppercases a company name and collapses internal whitespace
// so that comparisons ignore case and spacing differences.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToUpper(name)), " ")
}

// similarityScore rates how alike two normalized names are on a 0-100 scale.
// It combines containment checks, Levenshtein distance, and subsequence
// ranking; containment scores high because reference lists often carry the
// short form of a name ("ACME CORP" vs "ACME CORP OF OHIO").
func similarityScore(s1, s2 string) int {
	if s1 == s2 {
		return 100
	}
	if s1 == "" || s2 == "" {
		return 0
	}

	if strings.Contains(s1, s2) {
		return 75 + (25 * len(s2) / len(s1))
	}
	if strings.Contains(s2, s1) {
		return 75 + (25 * len(s1) / len(s2))
	}

	distance := levenshteinDistance(s1, s2)
	maxLen := len(s1)
	if len(s2) > maxLen {
		maxLen = len(s2)
	}
	levenshteinScore := 100 * (maxLen - distance) / maxLen

	// Subsequence rank: lower rank means the pattern matches earlier.
	fuzzyLibScore := 0
	if rank := fuzzy.RankMatch(s2, s1); rank >= 0 && rank < len(s1) {
		fuzzyLibScore = 60 - (rank * 40 / len(s1))
	}

	if levenshteinScore > fuzzyLibScore {
		return levenshteinScore
	}
	return fuzzyLibScore
}

// bestReferenceMatch returns the highest similarity between name and any
// reference entry, along with the display name of that entry. Ties keep the
// first entry in load order; the strict comparison below is what guarantees
// that.
func bestReferenceMatch(name string, refs []ReferenceEntry) (int, string) {
	normalized := normalizeName(name)

	bestScore := 0
	bestName := ""
	for _, ref := range refs {
		score := similarityScore(normalized, normalizeName(ref.Name))
		if alias := normalizeName(ref.Alias); alias != "" {
			if s := similarityScore(normalized, alias); s > score {
				score = s
			}
		}
		if score > bestScore {
			bestScore = score
			bestName = ref.Name
		}
	}
	return bestScore, bestName
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)

	// Two rows instead of the full matrix.
	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := 0; j <= len(r2); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = minOf(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}

func minOf(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
