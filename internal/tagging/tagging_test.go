package tagging

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kalambet/knowd/internal/scrape"
	"github.com/kalambet/knowd/internal/storage"
)

type mockAnalyzer struct {
	suggestFn   func(title, text string, existing []string) ([]string, error)
	summary     string
	summarized  []string
	suggestions []string
}

func (m *mockAnalyzer) SuggestTags(_ context.Context, title, text string, existing []string) ([]string, error) {
	m.suggestions = append(m.suggestions, text)
	return m.suggestFn(title, text, existing)
}

func (m *mockAnalyzer) Summarize(_ context.Context, _, text string) (string, error) {
	m.summarized = append(m.summarized, text)
	return m.summary, nil
}

type mockFetcher struct {
	page scrape.Page
	err  error
}

func (m *mockFetcher) Scrape(_ context.Context, _ string) (scrape.Page, error) {
	return m.page, m.err
}

func tagNames(tags []storage.Tag) []string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names
}

func TestColorFor(t *testing.T) {
	c := ColorFor("travel")
	if c != ColorFor("travel") || c != ColorFor("Travel") {
		t.Error("ColorFor is not stable across calls and case")
	}
	if !strings.HasPrefix(c, "#") || len(c) != 7 {
		t.Errorf("ColorFor = %q, want #rrggbb", c)
	}
}

func TestEnsure(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	existing := storage.Tag{Name: "travel", Color: "#000000"}
	if err := store.CreateTag(ctx, &existing); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	tags, err := Ensure(ctx, store, []string{" travel ", "food", "", "food", "budget"})
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	if got := strings.Join(tagNames(tags), ","); got != "travel,food,budget" {
		t.Errorf("Ensure names = %s, want travel,food,budget", got)
	}
	if tags[0].ID != existing.ID || tags[0].Color != "#000000" {
		t.Errorf("existing tag was not reused: %+v", tags[0])
	}
	if tags[1].Color != ColorFor("food") {
		t.Errorf("new tag colour = %q, want %q", tags[1].Color, ColorFor("food"))
	}

	all, _ := store.GetTags(ctx)
	if len(all) != 3 {
		t.Errorf("store has %d tags, want 3", len(all))
	}
}

func TestEnqueue_InvalidKind(t *testing.T) {
	if err := Enqueue(context.Background(), storage.NewMemory(), "folder", "x"); err == nil {
		t.Error("expected error for invalid kind")
	}
}

func TestWorker_TagsNote(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	pinned := storage.Tag{Name: "pinned"}
	store.CreateTag(ctx, &pinned)
	n := storage.Note{Title: "Kyoto", Content: "<p>temples and <b>gardens</b></p>"}
	store.CreateNote(ctx, &n)
	store.SetNoteTags(ctx, n.ID, []string{pinned.ID})

	if err := Enqueue(ctx, store, storage.KindNote, n.ID); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	an := &mockAnalyzer{suggestFn: func(title, _ string, existing []string) ([]string, error) {
		if title != "Kyoto" {
			t.Errorf("title = %q", title)
		}
		if len(existing) != 1 || existing[0] != "pinned" {
			t.Errorf("existing = %v, want [pinned]", existing)
		}
		return []string{"travel", "pinned", "japan"}, nil
	}}
	w := NewWorker(store, store, an, nil, 0)

	didWork, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !didWork {
		t.Fatal("RunOnce returned false, expected true")
	}
	if an.suggestions[0] != "temples and gardens" {
		t.Errorf("analyzer saw %q, want plain text", an.suggestions[0])
	}

	tags, _ := store.GetNoteTagsByNoteID(ctx, n.ID)
	if got := strings.Join(tagNames(tags), ","); got != "pinned,travel,japan" {
		t.Errorf("note tags = %s, want pinned,travel,japan", got)
	}

	didWork, err = w.RunOnce(ctx)
	if err != nil || didWork {
		t.Errorf("second RunOnce = %v, %v; want no work", didWork, err)
	}
}

func TestWorker_TagsLinkAndSummarizes(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	l := storage.Link{URL: "https://example.com/go", Title: "Go", Description: "a language"}
	store.CreateLink(ctx, &l)
	Enqueue(ctx, store, storage.KindLink, l.ID)

	an := &mockAnalyzer{
		suggestFn: func(_, _ string, _ []string) ([]string, error) { return []string{"golang"}, nil },
		summary:   "Go is a language.",
	}
	fetch := &mockFetcher{page: scrape.Page{Content: "full page text"}}
	w := NewWorker(store, store, an, fetch, 0)

	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if an.suggestions[0] != "full page text" {
		t.Errorf("analyzer saw %q, want scraped content", an.suggestions[0])
	}
	got, _ := store.GetLink(ctx, l.ID)
	if got.Summary != "Go is a language." {
		t.Errorf("Summary = %q", got.Summary)
	}
	tags, _ := store.GetLinkTagsByLinkID(ctx, l.ID)
	if len(tags) != 1 || tags[0].Name != "golang" {
		t.Errorf("link tags = %v, want [golang]", tagNames(tags))
	}
}

func TestWorker_FetchFailureFallsBackToDescription(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	l := storage.Link{URL: "https://example.com", Title: "Ex", Description: "stored description", Summary: "kept"}
	store.CreateLink(ctx, &l)
	Enqueue(ctx, store, storage.KindLink, l.ID)

	an := &mockAnalyzer{suggestFn: func(_, _ string, _ []string) ([]string, error) { return nil, nil }}
	w := NewWorker(store, store, an, &mockFetcher{err: errors.New("offline")}, 0)

	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if an.suggestions[0] != "stored description" {
		t.Errorf("analyzer saw %q, want description", an.suggestions[0])
	}
	if len(an.summarized) != 0 {
		t.Error("link with a summary was summarized again")
	}
}

func TestWorker_FailedJobIsRescheduled(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	n := storage.Note{Title: "x"}
	store.CreateNote(ctx, &n)
	Enqueue(ctx, store, storage.KindNote, n.ID)

	an := &mockAnalyzer{suggestFn: func(_, _ string, _ []string) ([]string, error) {
		return nil, errors.New("model down")
	}}
	w := NewWorker(store, store, an, nil, 0)

	didWork, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if !didWork {
		t.Fatal("RunOnce returned false, expected true")
	}

	// Backoff keeps the job out of reach for now.
	didWork, err = w.RunOnce(ctx)
	if err != nil || didWork {
		t.Errorf("RunOnce after failure = %v, %v; want no claimable job", didWork, err)
	}
}

func TestWorker_MissingItemFails(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	Enqueue(ctx, store, storage.KindNote, "gone")

	called := false
	an := &mockAnalyzer{suggestFn: func(_, _ string, _ []string) ([]string, error) {
		called = true
		return nil, nil
	}}
	w := NewWorker(store, store, an, nil, 0)

	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if called {
		t.Error("analyzer called for a missing note")
	}
}
