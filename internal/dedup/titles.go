// Package dedup detects duplicate academic papers across sources by exact
// DOI match and fuzzy title comparison.
package dedup

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// NormalizeTitle normalizes a paper title for comparison:
//   - Converts to lowercase
//   - Removes all non-letter, non-digit, non-space characters
//   - Collapses multiple spaces to a single space
//   - Trims leading and trailing whitespace
func NormalizeTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	if title == "" {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(title))
	prevSpace := false

	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
		// All other characters (punctuation, symbols) are dropped.
	}

	return strings.TrimRight(sb.String(), " ")
}

// TitleSimilarity compares two titles and returns a similarity score between
// 0.0 and 1.0, computed as a normalized Levenshtein ratio over the normalized
// titles. Identical titles score 1.0; two empty titles score 0.0 so that
// papers without titles never match each other.
func TitleSimilarity(a, b string) float64 {
	normA := NormalizeTitle(a)
	normB := NormalizeTitle(b)

	if normA == "" || normB == "" {
		return 0.0
	}
	if normA == normB {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(normA, normB)
	longest := len([]rune(normA))
	if l := len([]rune(normB)); l > longest {
		longest = l
	}

	return 1.0 - float64(distance)/float64(longest)
}
