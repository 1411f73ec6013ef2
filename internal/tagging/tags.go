// Package tagging creates and assigns tags, including the background worker
// that labels new notes and links with model-suggested tags.
package tagging

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/kalambet/knowd/internal/storage"
)

var palette = []string{
	"#ef4444", "#f97316", "#f59e0b", "#84cc16",
	"#10b981", "#06b6d4", "#3b82f6", "#6366f1",
	"#8b5cf6", "#d946ef", "#ec4899", "#64748b",
}

// ColorFor returns a stable display colour for a tag name.
func ColorFor(name string) string {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(name)))
	return palette[h.Sum32()%uint32(len(palette))]
}

// TagStore is the part of storage.Store that Ensure needs.
type TagStore interface {
	GetTagByName(ctx context.Context, name string) (storage.Tag, error)
	CreateTag(ctx context.Context, t *storage.Tag) error
}

// Ensure returns the tags named by names, creating the missing ones with
// ColorFor colours. Names are trimmed; blanks and repeats are skipped. The
// result follows the order of names.
func Ensure(ctx context.Context, store TagStore, names []string) ([]storage.Tag, error) {
	seen := make(map[string]bool, len(names))
	tags := make([]storage.Tag, 0, len(names))

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		t, err := store.GetTagByName(ctx, name)
		if err == nil {
			tags = append(tags, t)
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("looking up tag %q: %w", name, err)
		}

		t = storage.Tag{Name: name, Color: ColorFor(name)}
		if err := store.CreateTag(ctx, &t); err != nil {
			if !errors.Is(err, storage.ErrConflict) {
				return nil, fmt.Errorf("creating tag %q: %w", name, err)
			}
			// Lost a race with another writer; use theirs.
			if t, err = store.GetTagByName(ctx, name); err != nil {
				return nil, fmt.Errorf("looking up tag %q: %w", name, err)
			}
		}
		tags = append(tags, t)
	}
	return tags, nil
}

// IDs returns the IDs of tags in order.
func IDs(tags []storage.Tag) []string {
	ids := make([]string, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	return ids
}
