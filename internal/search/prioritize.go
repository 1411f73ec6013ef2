package search

import (
	"cmp"
	"slices"

	"github.com/kalambet/knowd/internal/storage"
)

// Ranked is a scored search result that can be re-ranked by tag membership.
type Ranked interface {
	ResourceTags() []storage.Tag
	Relevance() float64
}

// Prioritize returns items re-ordered so that items carrying more of the
// named tags come first; among equal match counts the higher relevance wins.
// The sort is stable and items is left untouched.
func Prioritize[T Ranked](items []T, names []string) []T {
	type keyed struct {
		item  T
		count int
	}
	ks := make([]keyed, len(items))
	for i, it := range items {
		ks[i] = keyed{item: it, count: MatchCount(it.ResourceTags(), names)}
	}

	slices.SortStableFunc(ks, func(a, b keyed) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(b.item.Relevance(), a.item.Relevance())
	})

	out := make([]T, len(ks))
	for i, k := range ks {
		out[i] = k.item
	}
	return out
}
