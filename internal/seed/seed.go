// Package seed loads a YAML corpus of tags, notes, links and connections into
// a store.
//
// A seed file looks like:
//
//	tags:
//	  - name: travel
//	    color: "#3b82f6"
//	notes:
//	  - id: kyoto
//	    title: Kyoto itinerary
//	    content: "<p>Temples, gardens</p>"
//	    tags: [travel]
//	links:
//	  - id: jr-pass
//	    url: https://example.com/jr-pass
//	    title: JR Pass guide
//	    tags: [travel, rail]
//	connections:
//	  - source: kyoto
//	    target: jr-pass
//
// Tags referenced by items but not declared are created. Connection
// endpoints are resolved against the ids declared in the same import.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/kalambet/knowd/internal/storage"
	"github.com/kalambet/knowd/internal/tagging"
)

// File is a decoded seed document.
type File struct {
	Tags        []Tag        `yaml:"tags"`
	Notes       []Note       `yaml:"notes"`
	Links       []Link       `yaml:"links"`
	Connections []Connection `yaml:"connections"`
}

type Tag struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

type Note struct {
	ID      string   `yaml:"id"`
	Title   string   `yaml:"title"`
	Content string   `yaml:"content"`
	Tags    []string `yaml:"tags"`
}

type Link struct {
	ID          string   `yaml:"id"`
	URL         string   `yaml:"url"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Summary     string   `yaml:"summary"`
	Thumbnail   string   `yaml:"thumbnail"`
	Tags        []string `yaml:"tags"`
}

type Connection struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// Result counts what an import created. Skipped counts notes and links whose
// id already existed in the store, and connections between two such items.
type Result struct {
	Tags        int `json:"tags"`
	Notes       int `json:"notes"`
	Links       int `json:"links"`
	Connections int `json:"connections"`
	Skipped     int `json:"skipped"`
}

// maxParallelReads bounds concurrent file reads in LoadFiles.
const maxParallelReads = 4

// Decode parses one seed document.
func Decode(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("decoding seed: %w", err)
	}
	return f, nil
}

// LoadFiles reads and decodes the given seed files concurrently. The result
// keeps the order of paths.
func LoadFiles(ctx context.Context, paths ...string) ([]File, error) {
	files := make([]File, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for i, p := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			fh, err := os.Open(p)
			if err != nil {
				return fmt.Errorf("opening seed file: %w", err)
			}
			defer fh.Close()

			f, err := Decode(fh)
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// Import writes f into store in document order: tags, notes, links, then
// connections.
func Import(ctx context.Context, store storage.Store, f File) (Result, error) {
	var res Result
	log := slog.Default().With("component", "seed")

	for _, t := range f.Tags {
		if t.Name == "" {
			return res, errors.New("seed tag without a name")
		}
		if _, err := store.GetTagByName(ctx, t.Name); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return res, fmt.Errorf("looking up tag %q: %w", t.Name, err)
		}
		tag := storage.Tag{Name: t.Name, Color: t.Color}
		if tag.Color == "" {
			tag.Color = tagging.ColorFor(t.Name)
		}
		if err := store.CreateTag(ctx, &tag); err != nil {
			return res, fmt.Errorf("creating tag %q: %w", t.Name, err)
		}
		res.Tags++
	}

	tagStore := countingTags{TagStore: store, created: &res.Tags}
	kinds := make(map[string]storage.ItemKind)
	fresh := make(map[string]bool)

	for _, sn := range f.Notes {
		n := storage.Note{ID: sn.ID, Title: sn.Title, Content: sn.Content}
		created, err := createOrSkip(store.CreateNote(ctx, &n), sn.ID)
		if err != nil {
			return res, fmt.Errorf("creating note %q: %w", sn.Title, err)
		}
		kinds[n.ID] = storage.KindNote
		fresh[n.ID] = created
		if !created {
			res.Skipped++
			continue
		}
		res.Notes++
		tags, err := tagging.Ensure(ctx, tagStore, sn.Tags)
		if err != nil {
			return res, err
		}
		if err := store.SetNoteTags(ctx, n.ID, tagging.IDs(tags)); err != nil {
			return res, fmt.Errorf("tagging note %q: %w", sn.Title, err)
		}
	}

	for _, sl := range f.Links {
		if sl.URL == "" {
			return res, fmt.Errorf("seed link %q without a url", sl.Title)
		}
		l := storage.Link{
			ID:           sl.ID,
			URL:          sl.URL,
			Title:        sl.Title,
			Description:  sl.Description,
			Summary:      sl.Summary,
			ThumbnailURL: sl.Thumbnail,
		}
		if l.Title == "" {
			l.Title = sl.URL
		}
		created, err := createOrSkip(store.CreateLink(ctx, &l), sl.ID)
		if err != nil {
			return res, fmt.Errorf("creating link %q: %w", sl.URL, err)
		}
		kinds[l.ID] = storage.KindLink
		fresh[l.ID] = created
		if !created {
			res.Skipped++
			continue
		}
		res.Links++
		tags, err := tagging.Ensure(ctx, tagStore, sl.Tags)
		if err != nil {
			return res, err
		}
		if err := store.SetLinkTags(ctx, l.ID, tagging.IDs(tags)); err != nil {
			return res, fmt.Errorf("tagging link %q: %w", sl.URL, err)
		}
	}

	for _, sc := range f.Connections {
		src, ok := kinds[sc.Source]
		if !ok {
			return res, fmt.Errorf("connection source %q is not an item in this seed", sc.Source)
		}
		dst, ok := kinds[sc.Target]
		if !ok {
			return res, fmt.Errorf("connection target %q is not an item in this seed", sc.Target)
		}
		if !fresh[sc.Source] && !fresh[sc.Target] {
			res.Skipped++
			continue
		}
		c := storage.Connection{SourceID: sc.Source, SourceKind: src, TargetID: sc.Target, TargetKind: dst}
		if err := store.CreateConnection(ctx, &c); err != nil {
			return res, fmt.Errorf("connecting %s -> %s: %w", sc.Source, sc.Target, err)
		}
		res.Connections++
	}

	log.Info("seed imported", "tags", res.Tags, "notes", res.Notes, "links", res.Links,
		"connections", res.Connections, "skipped", res.Skipped)
	return res, nil
}

// createOrSkip treats a conflict on an explicit id as "already imported".
func createOrSkip(err error, id string) (bool, error) {
	if err == nil {
		return true, nil
	}
	if id != "" && errors.Is(err, storage.ErrConflict) {
		return false, nil
	}
	return false, err
}

// countingTags counts the tags Ensure creates.
type countingTags struct {
	tagging.TagStore
	created *int
}

func (c countingTags) CreateTag(ctx context.Context, t *storage.Tag) error {
	if err := c.TagStore.CreateTag(ctx, t); err != nil {
		return err
	}
	*c.created++
	return nil
}
