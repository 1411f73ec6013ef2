package search

import "strings"

// Score returns the fraction of query terms that appear verbatim among the
// terms of text. Both sides are split on whitespace and lowercased. Every
// query term counts, repeats included, so the result is always in [0, 1].
// A query with no terms scores 0.
func Score(query, text string) float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 0
	}

	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		words[w] = struct{}{}
	}

	matched := 0
	for _, t := range terms {
		if _, ok := words[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}
