package search

import (
	"slices"
	"strings"

	"github.com/kalambet/knowd/internal/storage"
)

// Matches reports whether an item passes a tag filter. An empty filter
// matches everything; otherwise at least one item tag name must appear in
// names. Comparison is exact and case-sensitive.
func Matches(itemTags []storage.Tag, names []string) bool {
	if len(names) == 0 {
		return true
	}
	for _, t := range itemTags {
		if slices.Contains(names, t.Name) {
			return true
		}
	}
	return false
}

// MatchCount returns how many of the item's tags are named in names.
func MatchCount(itemTags []storage.Tag, names []string) int {
	n := 0
	for _, t := range itemTags {
		if slices.Contains(names, t.Name) {
			n++
		}
	}
	return n
}

// minContainedTerm is the shortest query term that counts when found
// inside a longer tag name.
const minContainedTerm = 3

// RelatedTags picks up to limit tag names that relate to query. A tag scores
// 1.0 when its name occurs in the query as a whole word or phrase and 0.5
// when its name contains a query term of at least three letters. Matching
// ignores case but the returned names keep their stored spelling. Ties keep
// the order of tags.
func RelatedTags(query string, tags []storage.Tag, limit int) []string {
	if limit <= 0 {
		return []string{}
	}

	terms := strings.Fields(strings.ToLower(query))
	padded := " " + strings.Join(terms, " ") + " "

	type scored struct {
		name  string
		score float64
	}
	var candidates []scored
	seen := make(map[string]bool)

	for _, t := range tags {
		if seen[t.Name] {
			continue
		}
		words := strings.Fields(strings.ToLower(t.Name))
		if len(words) == 0 {
			continue
		}
		name := strings.Join(words, " ")

		var s float64
		switch {
		case strings.Contains(padded, " "+name+" "):
			s = 1.0
		case slices.ContainsFunc(terms, func(term string) bool {
			return len(term) >= minContainedTerm && strings.Contains(name, term)
		}):
			s = 0.5
		default:
			continue
		}
		seen[t.Name] = true
		candidates = append(candidates, scored{name: t.Name, score: s})
	}

	slices.SortStableFunc(candidates, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	out := make([]string, 0, min(limit, len(candidates)))
	for _, c := range candidates {
		if len(out) == limit {
			break
		}
		out = append(out, c.name)
	}
	return out
}
