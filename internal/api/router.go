package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/knowd/internal/search"
	"github.com/kalambet/knowd/internal/storage"
	"github.com/kalambet/knowd/internal/tagging"
)

// Deps holds what the REST handlers need.
type Deps struct {
	Store  storage.Store
	Engine *search.Engine

	// Jobs receives autotag jobs when AutoTag is set; nil disables queueing.
	Jobs    storage.JobQueue
	AutoTag bool

	// Scraper fills in link metadata when a link is created without a
	// title; nil uses the URL as the title.
	Scraper tagging.PageFetcher

	Token          string // enables bearer auth on /api when non-empty
	DefaultLimit   int    // search limit when the body has none; <= 0 means search.DefaultLimit
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// NewHandler returns the REST API handler.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.DefaultLimit <= 0 {
		deps.DefaultLimit = search.DefaultLimit
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if deps.Logger.Enabled(context.Background(), slog.LevelDebug) {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	if deps.RequestTimeout > 0 {
		r.Use(middleware.Timeout(deps.RequestTimeout))
	}

	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/search", handleSearch(deps))
		r.Post("/context", handleContext(deps))
		r.Post("/ide-context", handleIDEContext(deps))

		r.Get("/notes", handleListNotes(deps))
		r.Post("/notes", handleCreateNote(deps))
		r.Get("/notes/{id}", handleGetNote(deps))
		r.Put("/notes/{id}", handleUpdateNote(deps))
		r.Delete("/notes/{id}", handleDeleteNote(deps))
		r.Get("/notes/{id}/tags", handleGetNoteTags(deps))
		r.Put("/notes/{id}/tags", handleSetNoteTags(deps))

		r.Get("/links", handleListLinks(deps))
		r.Post("/links", handleCreateLink(deps))
		r.Get("/links/{id}", handleGetLink(deps))
		r.Put("/links/{id}", handleUpdateLink(deps))
		r.Delete("/links/{id}", handleDeleteLink(deps))
		r.Get("/links/{id}/tags", handleGetLinkTags(deps))
		r.Put("/links/{id}/tags", handleSetLinkTags(deps))

		r.Get("/tags", handleListTags(deps))
		r.Post("/tags", handleCreateTag(deps))
		r.Delete("/tags/{id}", handleDeleteTag(deps))

		r.Get("/connections", handleListConnections(deps))
		r.Post("/connections", handleCreateConnection(deps))
		r.Delete("/connections/{id}", handleDeleteConnection(deps))

		r.Get("/graph", handleGraph(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// enqueueAutoTag queues an autotag job when enabled. Failures are logged; the
// item itself has already been saved.
func enqueueAutoTag(r *http.Request, deps Deps, kind storage.ItemKind, id string) {
	if !deps.AutoTag || deps.Jobs == nil {
		return
	}
	if err := tagging.Enqueue(r.Context(), deps.Jobs, kind, id); err != nil {
		deps.Logger.Warn("failed to queue autotag", "kind", kind, "id", id, "error", err)
	}
}
