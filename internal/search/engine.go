package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/knowd/internal/storage"
	"github.com/kalambet/knowd/internal/textutil"
)

// Defaults for the context flow.
const (
	DefaultContextCap  = 4
	DefaultContextTags = 5
)

// tagFetchLimit bounds concurrent per-item tag lookups.
const tagFetchLimit = 8

// ScoredNote is a note with its resolved tags and relevance to a query.
type ScoredNote struct {
	storage.Note
	Tags           []storage.Tag `json:"tags"`
	RelevanceScore float64       `json:"relevanceScore"`
}

// ScoredLink is a link with its resolved tags and relevance to a query.
type ScoredLink struct {
	storage.Link
	Tags           []storage.Tag `json:"tags"`
	RelevanceScore float64       `json:"relevanceScore"`
}

func (n ScoredNote) ResourceTags() []storage.Tag { return n.Tags }
func (n ScoredNote) Relevance() float64          { return n.RelevanceScore }
func (l ScoredLink) ResourceTags() []storage.Tag { return l.Tags }
func (l ScoredLink) Relevance() float64          { return l.RelevanceScore }

// Result holds ranked notes and links. Notes and links are ranked
// independently and never merged. Both slices are always non-nil.
type Result struct {
	Notes []ScoredNote `json:"notes"`
	Links []ScoredLink `json:"links"`
}

// Engine runs searches over a storage.Reader. It never writes.
type Engine struct {
	store       storage.Reader
	logger      *slog.Logger
	contextCap  int
	contextTags int
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithContextCap sets how many notes and links Context returns per list.
func WithContextCap(n int) Option {
	return func(e *Engine) error {
		if n < 0 {
			return fmt.Errorf("context cap must not be negative, got %d", n)
		}
		e.contextCap = n
		return nil
	}
}

// WithContextTags sets how many related tags Context derives from the query.
func WithContextTags(n int) Option {
	return func(e *Engine) error {
		if n < 0 {
			return fmt.Errorf("context tag count must not be negative, got %d", n)
		}
		e.contextTags = n
		return nil
	}
}

// NewEngine creates an Engine reading from store.
func NewEngine(store storage.Reader, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrReaderRequired
	}

	e := &Engine{
		store:       store,
		logger:      slog.Default(),
		contextCap:  DefaultContextCap,
		contextTags: DefaultContextTags,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Search scores every note and link against q and returns the candidates
// ranked by relevance. An item is a candidate when its relevance is above
// zero, or when q has a tag filter and the item carries one of the tags.
// Ties keep storage order. Each list is cut to q.Limit.
//
// Any storage failure fails the whole call.
func (e *Engine) Search(ctx context.Context, q Query) (Result, error) {
	if q.Limit < 0 {
		return Result{}, &ValidationError{Field: "limit", Kind: KindInvalidValue, Message: "must not be negative"}
	}

	scoredNotes, scoredLinks, err := e.rank(ctx, q)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Notes: make([]ScoredNote, 0, min(q.Limit, len(scoredNotes))),
		Links: make([]ScoredLink, 0, min(q.Limit, len(scoredLinks))),
	}
	res.Notes = append(res.Notes, scoredNotes[:min(q.Limit, len(scoredNotes))]...)
	res.Links = append(res.Links, scoredLinks[:min(q.Limit, len(scoredLinks))]...)

	e.logger.Debug("search",
		"query", q.Query,
		"tags", q.Tags,
		"limit", q.Limit,
		"note_candidates", len(scoredNotes),
		"link_candidates", len(scoredLinks),
	)
	return res, nil
}

// Context returns a small tag-prioritized result for query. It derives the
// tags related to the query, collects every candidate with them as the
// filter, re-ranks all of them by tag match count and keeps the top few
// notes and links.
func (e *Engine) Context(ctx context.Context, query string) (Result, error) {
	tags, err := e.store.GetTags(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("loading tags: %w", err)
	}
	related := RelatedTags(query, tags, e.contextTags)

	notes, links, err := e.rank(ctx, Query{Query: query, Tags: related})
	if err != nil {
		return Result{}, err
	}

	// Prioritize sees every candidate; only its output is capped.
	notes = Prioritize(notes, related)
	links = Prioritize(links, related)
	res := Result{
		Notes: append([]ScoredNote{}, notes[:min(e.contextCap, len(notes))]...),
		Links: append([]ScoredLink{}, links[:min(e.contextCap, len(links))]...),
	}

	e.logger.Debug("context", "query", query, "related_tags", related,
		"notes", len(res.Notes), "links", len(res.Links))
	return res, nil
}

// rank returns every candidate for q, each list sorted by relevance with
// ties in storage order. Nothing is truncated.
func (e *Engine) rank(ctx context.Context, q Query) ([]ScoredNote, []ScoredLink, error) {
	notes, err := e.store.GetNotes(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading notes: %w", err)
	}
	links, err := e.store.GetLinks(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading links: %w", err)
	}

	noteTags, linkTags, err := e.loadTags(ctx, notes, links)
	if err != nil {
		return nil, nil, err
	}

	var scoredNotes []ScoredNote
	for i, n := range notes {
		text := n.Title + " " + textutil.PlainText(n.Content)
		if s, ok := candidate(q, text, noteTags[i]); ok {
			scoredNotes = append(scoredNotes, ScoredNote{Note: n, Tags: noteTags[i], RelevanceScore: s})
		}
	}
	var scoredLinks []ScoredLink
	for i, l := range links {
		text := l.Title + " " + l.Description
		if s, ok := candidate(q, text, linkTags[i]); ok {
			scoredLinks = append(scoredLinks, ScoredLink{Link: l, Tags: linkTags[i], RelevanceScore: s})
		}
	}

	slices.SortStableFunc(scoredNotes, byRelevance[ScoredNote])
	slices.SortStableFunc(scoredLinks, byRelevance[ScoredLink])
	return scoredNotes, scoredLinks, nil
}

// candidate scores text against q and reports whether the item qualifies.
func candidate(q Query, text string, tags []storage.Tag) (float64, bool) {
	s := Score(q.Query, text)
	if s > 0 {
		return s, true
	}
	return s, len(q.Tags) > 0 && Matches(tags, q.Tags)
}

func byRelevance[T Ranked](a, b T) int {
	return cmp.Compare(b.Relevance(), a.Relevance())
}

// loadTags resolves each item's tags concurrently. Results land in slots
// indexed like the input so completion order has no effect.
func (e *Engine) loadTags(ctx context.Context, notes []storage.Note, links []storage.Link) ([][]storage.Tag, [][]storage.Tag, error) {
	noteTags := make([][]storage.Tag, len(notes))
	linkTags := make([][]storage.Tag, len(links))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(tagFetchLimit)

	for i, n := range notes {
		g.Go(func() error {
			tags, err := e.store.GetNoteTagsByNoteID(gCtx, n.ID)
			if err != nil {
				return fmt.Errorf("loading tags for note %s: %w", n.ID, err)
			}
			noteTags[i] = nonNil(tags)
			return nil
		})
	}
	for i, l := range links {
		g.Go(func() error {
			tags, err := e.store.GetLinkTagsByLinkID(gCtx, l.ID)
			if err != nil {
				return fmt.Errorf("loading tags for link %s: %w", l.ID, err)
			}
			linkTags[i] = nonNil(tags)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return noteTags, linkTags, nil
}

func nonNil(tags []storage.Tag) []storage.Tag {
	if tags == nil {
		return []storage.Tag{}
	}
	return tags
}
