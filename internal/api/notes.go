package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/knowd/internal/storage"
	"github.com/kalambet/knowd/internal/tagging"
)

type noteView struct {
	storage.Note
	Tags []storage.Tag `json:"tags"`
}

type noteRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"` // tag names, created if missing
}

type tagIDsRequest struct {
	TagIDs []string `json:"tagIds"`
}

func handleListNotes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notes, err := deps.Store.GetNotes(r.Context())
		if err != nil {
			storeError(w, err, "listing notes")
			return
		}

		views := make([]noteView, len(notes))
		for i, n := range notes {
			tags, err := deps.Store.GetNoteTagsByNoteID(r.Context(), n.ID)
			if err != nil {
				storeError(w, err, "loading tags for note %s", n.ID)
				return
			}
			views[i] = noteView{Note: n, Tags: nonNilTags(tags)}
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleCreateNote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req noteRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title is required")
			return
		}

		n := storage.Note{Title: req.Title, Content: req.Content}
		if err := deps.Store.CreateNote(r.Context(), &n); err != nil {
			storeError(w, err, "creating note")
			return
		}

		tags, err := tagging.Ensure(r.Context(), deps.Store, req.Tags)
		if err != nil {
			storeError(w, err, "creating tags")
			return
		}
		if len(tags) > 0 {
			if err := deps.Store.SetNoteTags(r.Context(), n.ID, tagging.IDs(tags)); err != nil {
				storeError(w, err, "tagging note %s", n.ID)
				return
			}
		}

		enqueueAutoTag(r, deps, storage.KindNote, n.ID)
		writeJSON(w, http.StatusCreated, noteView{Note: n, Tags: tags})
	}
}

func handleGetNote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		n, err := deps.Store.GetNote(r.Context(), id)
		if err != nil {
			storeError(w, err, "note %s", id)
			return
		}
		tags, err := deps.Store.GetNoteTagsByNoteID(r.Context(), id)
		if err != nil {
			storeError(w, err, "loading tags for note %s", id)
			return
		}
		writeJSON(w, http.StatusOK, noteView{Note: n, Tags: nonNilTags(tags)})
	}
}

func handleUpdateNote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req noteRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title is required")
			return
		}

		if err := deps.Store.UpdateNote(r.Context(), storage.Note{ID: id, Title: req.Title, Content: req.Content}); err != nil {
			storeError(w, err, "note %s", id)
			return
		}
		n, err := deps.Store.GetNote(r.Context(), id)
		if err != nil {
			storeError(w, err, "note %s", id)
			return
		}
		tags, err := deps.Store.GetNoteTagsByNoteID(r.Context(), id)
		if err != nil {
			storeError(w, err, "loading tags for note %s", id)
			return
		}
		writeJSON(w, http.StatusOK, noteView{Note: n, Tags: nonNilTags(tags)})
	}
}

func handleDeleteNote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := deps.Store.DeleteNote(r.Context(), id); err != nil {
			storeError(w, err, "note %s", id)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleGetNoteTags(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := deps.Store.GetNote(r.Context(), id); err != nil {
			storeError(w, err, "note %s", id)
			return
		}
		tags, err := deps.Store.GetNoteTagsByNoteID(r.Context(), id)
		if err != nil {
			storeError(w, err, "loading tags for note %s", id)
			return
		}
		writeJSON(w, http.StatusOK, nonNilTags(tags))
	}
}

func handleSetNoteTags(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req tagIDsRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := deps.Store.SetNoteTags(r.Context(), id, req.TagIDs); err != nil {
			storeError(w, err, "setting tags on note %s", id)
			return
		}
		tags, err := deps.Store.GetNoteTagsByNoteID(r.Context(), id)
		if err != nil {
			storeError(w, err, "loading tags for note %s", id)
			return
		}
		writeJSON(w, http.StatusOK, nonNilTags(tags))
	}
}

func nonNilTags(tags []storage.Tag) []storage.Tag {
	if tags == nil {
		return []storage.Tag{}
	}
	return tags
}
