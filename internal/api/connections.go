package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/knowd/internal/storage"
)

type createConnectionRequest struct {
	SourceID   string           `json:"sourceId"`
	SourceType storage.ItemKind `json:"sourceType"`
	TargetID   string           `json:"targetId"`
	TargetType storage.ItemKind `json:"targetType"`
}

func handleListConnections(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conns, err := deps.Store.GetConnections(r.Context())
		if err != nil {
			storeError(w, err, "listing connections")
			return
		}
		if conns == nil {
			conns = []storage.Connection{}
		}
		writeJSON(w, http.StatusOK, conns)
	}
}

func handleCreateConnection(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createConnectionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.SourceID == "" || req.TargetID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "sourceId and targetId are required")
			return
		}
		if !req.SourceType.Valid() || !req.TargetType.Valid() {
			httpError(w, http.StatusBadRequest, "invalid_request_error",
				"sourceType and targetType must be %q or %q", storage.KindNote, storage.KindLink)
			return
		}
		if req.SourceID == req.TargetID {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "an item cannot be connected to itself")
			return
		}

		c := storage.Connection{
			SourceID:   req.SourceID,
			SourceKind: req.SourceType,
			TargetID:   req.TargetID,
			TargetKind: req.TargetType,
		}
		if err := deps.Store.CreateConnection(r.Context(), &c); err != nil {
			storeError(w, err, "connecting %s %s to %s %s", req.SourceType, req.SourceID, req.TargetType, req.TargetID)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func handleDeleteConnection(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := deps.Store.DeleteConnection(r.Context(), id); err != nil {
			storeError(w, err, "connection %s", id)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
