package tagging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/knowd/internal/scrape"
	"github.com/kalambet/knowd/internal/storage"
	"github.com/kalambet/knowd/internal/textutil"
)

// JobType is the job queue type handled by Worker.
const JobType = "autotag"

// Analyzer suggests tags and summaries. *analysis.Analyzer implements it.
type Analyzer interface {
	SuggestTags(ctx context.Context, title, text string, existing []string) ([]string, error)
	Summarize(ctx context.Context, title, text string) (string, error)
}

// PageFetcher fetches link pages. *scrape.Scraper implements it.
type PageFetcher interface {
	Scrape(ctx context.Context, rawURL string) (scrape.Page, error)
}

type payload struct {
	Kind storage.ItemKind `json:"kind"`
	ID   string           `json:"id"`
}

// Enqueue schedules an autotag job for the item.
func Enqueue(ctx context.Context, q storage.JobQueue, kind storage.ItemKind, id string) error {
	if !kind.Valid() {
		return fmt.Errorf("enqueue autotag: invalid item kind %q", kind)
	}
	data, err := json.Marshal(payload{Kind: kind, ID: id})
	if err != nil {
		return err
	}
	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        JobType,
		PayloadJSON: string(data),
	}
	if err := q.EnqueueJob(ctx, job); err != nil {
		return fmt.Errorf("enqueue autotag for %s %s: %w", kind, id, err)
	}
	return nil
}

// Worker processes autotag jobs from the job queue.
type Worker struct {
	store    storage.Store
	jobs     storage.JobQueue
	analyzer Analyzer
	pages    PageFetcher
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker. pages may be nil, in which case link tags are
// suggested from the stored description only.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store storage.Store, jobs storage.JobQueue, analyzer Analyzer, pages PageFetcher, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:    store,
		jobs:     jobs,
		analyzer: analyzer,
		pages:    pages,
		poll:     pollInterval,
		logger:   slog.Default().With("component", "autotag"),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single autotag job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.jobs.ClaimNextJob(ctx, []string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.jobs.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.jobs.CompleteJob(ctx, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var p payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	existing, err := w.existingNames(ctx)
	if err != nil {
		return err
	}

	switch p.Kind {
	case storage.KindNote:
		return w.tagNote(ctx, p.ID, existing)
	case storage.KindLink:
		return w.tagLink(ctx, p.ID, existing)
	default:
		return fmt.Errorf("unknown item kind %q", p.Kind)
	}
}

func (w *Worker) tagNote(ctx context.Context, id string, existing []string) error {
	n, err := w.store.GetNote(ctx, id)
	if err != nil {
		return fmt.Errorf("loading note %s: %w", id, err)
	}
	names, err := w.analyzer.SuggestTags(ctx, n.Title, textutil.PlainText(n.Content), existing)
	if err != nil {
		return fmt.Errorf("suggesting tags: %w", err)
	}
	current, err := w.store.GetNoteTagsByNoteID(ctx, id)
	if err != nil {
		return fmt.Errorf("loading note tags: %w", err)
	}
	ids, err := w.merge(ctx, current, names)
	if err != nil {
		return err
	}
	if err := w.store.SetNoteTags(ctx, id, ids); err != nil {
		return fmt.Errorf("assigning note tags: %w", err)
	}
	w.logger.Info("tagged note", "note_id", id, "tags", len(ids))
	return nil
}

func (w *Worker) tagLink(ctx context.Context, id string, existing []string) error {
	l, err := w.store.GetLink(ctx, id)
	if err != nil {
		return fmt.Errorf("loading link %s: %w", id, err)
	}

	text := l.Description
	if w.pages != nil {
		page, err := w.pages.Scrape(ctx, l.URL)
		if err != nil {
			w.logger.Warn("link fetch failed, tagging from description", "link_id", id, "error", err)
		} else if page.Content != "" {
			text = page.Content
		}
	}

	names, err := w.analyzer.SuggestTags(ctx, l.Title, text, existing)
	if err != nil {
		return fmt.Errorf("suggesting tags: %w", err)
	}
	current, err := w.store.GetLinkTagsByLinkID(ctx, id)
	if err != nil {
		return fmt.Errorf("loading link tags: %w", err)
	}
	ids, err := w.merge(ctx, current, names)
	if err != nil {
		return err
	}
	if err := w.store.SetLinkTags(ctx, id, ids); err != nil {
		return fmt.Errorf("assigning link tags: %w", err)
	}

	if l.Summary == "" && text != "" {
		summary, err := w.analyzer.Summarize(ctx, l.Title, text)
		if err != nil {
			return fmt.Errorf("summarizing link: %w", err)
		}
		if summary != "" {
			l.Summary = summary
			if err := w.store.UpdateLink(ctx, l); err != nil {
				return fmt.Errorf("saving link summary: %w", err)
			}
		}
	}
	w.logger.Info("tagged link", "link_id", id, "tags", len(ids))
	return nil
}

// merge keeps the item's current tags first and appends the suggested ones.
func (w *Worker) merge(ctx context.Context, current []storage.Tag, names []string) ([]string, error) {
	suggested, err := Ensure(ctx, w.store, names)
	if err != nil {
		return nil, err
	}
	ids := IDs(current)
	have := make(map[string]bool, len(ids))
	for _, id := range ids {
		have[id] = true
	}
	for _, t := range suggested {
		if !have[t.ID] {
			have[t.ID] = true
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

func (w *Worker) existingNames(ctx context.Context) ([]string, error) {
	tags, err := w.store.GetTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tags: %w", err)
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names, nil
}
