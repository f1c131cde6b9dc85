package search

import (
	"regexp"
	"strings"
)

// versionToken matches version markers inside names: "v1.2.3", "v18",
// "2.0", a bare trailing "18". Stripping these yields the stable stem
// version-aware dedup compares on.
var versionToken = regexp.MustCompile(`(?i)\bv?\d+(\.\d+)*\b`)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeTokens lowercases and splits on runs of non-alphanumerics.
func normalizeTokens(s string) []string {
	s = strings.ToLower(s)
	fields := nonAlnum.Split(s, -1)
	tokens := fields[:0]
	for _, f := range fields {
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// tokenSetJaccard computes Jaccard similarity over the normalized token
// sets of two strings. Two empty strings compare as identical.
func tokenSetJaccard(a, b string) float64 {
	ta, tb := normalizeTokens(a), normalizeTokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	seen := make(map[string]bool, len(tb))
	intersection := 0
	for _, t := range tb {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			intersection++
		}
	}
	union := len(set) + len(seen) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// charNGramSimilarity computes Jaccard similarity over character n-gram
// sets. Strings shorter than n compare whole.
func charNGramSimilarity(a, b string, n int) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	ga, gb := charNGrams(a, n), charNGrams(b, n)
	intersection := 0
	for g := range ga {
		if gb[g] {
			intersection++
		}
	}
	union := len(ga) + len(gb) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func charNGrams(s string, n int) map[string]bool {
	grams := make(map[string]bool)
	runes := []rune(s)
	if len(runes) < n {
		grams[s] = true
		return grams
	}
	for i := 0; i+n <= len(runes); i++ {
		grams[string(runes[i:i+n])] = true
	}
	return grams
}

// stripVersionTokens removes version markers from a name and collapses
// the remaining whitespace, leaving the version-stable stem.
func stripVersionTokens(name string) string {
	stripped := versionToken.ReplaceAllString(name, " ")
	return strings.Join(strings.Fields(stripped), " ")
}

// canonicalURL normalizes a URL for equality comparison: lowercase,
// scheme and "www." prefix dropped, trailing slash trimmed.
func canonicalURL(raw string) string {
	u := strings.ToLower(strings.TrimSpace(raw))
	for _, prefix := range []string{"https://", "http://"} {
		u = strings.TrimPrefix(u, prefix)
	}
	u = strings.TrimPrefix(u, "www.")
	return strings.TrimSuffix(u, "/")
}

// FieldWeights holds the per-field weights of content similarity. Weights
// need not sum to one; the score is normalized by the total.
type FieldWeights struct {
	Name        float64
	Description float64
	URL         float64
	Category    float64
}

// DefaultFieldWeights favours name agreement over everything else.
func DefaultFieldWeights() FieldWeights {
	return FieldWeights{Name: 0.5, Description: 0.3, URL: 0.15, Category: 0.05}
}

func (w FieldWeights) total() float64 {
	return w.Name + w.Description + w.URL + w.Category
}

// contentSimilarity is the weighted per-field similarity between two
// payload projections.
func contentSimilarity(a, b *dedupView, w FieldWeights) float64 {
	total := w.total()
	if total == 0 {
		return 0.0
	}

	score := w.Name * tokenSetJaccard(a.name, b.name)
	score += w.Description * tokenSetJaccard(a.description, b.description)

	if a.url != "" || b.url != "" {
		if a.url != "" && a.url == b.url {
			score += w.URL
		}
	} else {
		// Neither side has a URL; the field carries no signal either way.
		total -= w.URL
	}

	score += w.Category * categoryOverlap(a.categories, b.categories)

	if total == 0 {
		return 0.0
	}
	return score / total
}

func categoryOverlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	set := make(map[string]bool, len(a))
	for _, c := range a {
		set[strings.ToLower(c)] = true
	}
	intersection := 0
	seen := make(map[string]bool, len(b))
	for _, c := range b {
		lc := strings.ToLower(c)
		if seen[lc] {
			continue
		}
		seen[lc] = true
		if set[lc] {
			intersection++
		}
	}
	union := len(set) + len(seen) - intersection
	return float64(intersection) / float64(union)
}
