package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/knowd/internal/storage"
	"github.com/kalambet/knowd/internal/tagging"
)

type createTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func handleListTags(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := deps.Store.GetTags(r.Context())
		if err != nil {
			storeError(w, err, "listing tags")
			return
		}
		writeJSON(w, http.StatusOK, nonNilTags(tags))
	}
}

func handleCreateTag(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTagRequest
		if !decodeBody(w, r, &req) {
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}

		t := storage.Tag{Name: name, Color: req.Color}
		if t.Color == "" {
			t.Color = tagging.ColorFor(name)
		}
		if err := deps.Store.CreateTag(r.Context(), &t); err != nil {
			storeError(w, err, "tag %q", name)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	}
}

func handleDeleteTag(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := deps.Store.DeleteTag(r.Context(), id); err != nil {
			storeError(w, err, "tag %s", id)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
