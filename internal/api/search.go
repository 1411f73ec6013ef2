package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/kalambet/knowd/internal/search"
)

// maxSelectionBytes bounds how much of an editor selection goes into an IDE
// context query.
const maxSelectionBytes = 500

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readBody(w, r)
		if !ok {
			return
		}

		q, err := search.ParseQuery(body, search.WithDefaultLimit(deps.DefaultLimit))
		if err != nil {
			queryError(w, err)
			return
		}

		res, err := deps.Engine.Search(r.Context(), q)
		if err != nil {
			queryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// handleContext serves the tag-prioritized context result wrapped in an
// Outcome envelope. Only the query field of the body is used.
func handleContext(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readBody(w, r)
		if !ok {
			return
		}

		q, err := search.ParseQuery(body)
		if err != nil {
			writeOutcome(w, search.OutcomeOf(nil, err), err)
			return
		}

		res, err := deps.Engine.Context(r.Context(), q.Query)
		writeOutcome(w, search.OutcomeOf(res, err), err)
	}
}

type ideContextRequest struct {
	Query     string `json:"query"`
	File      string `json:"file"`
	Selection string `json:"selection"`
}

// handleIDEContext serves context for an editor: the query is assembled from
// the optional query text, the open file's name and the current selection.
func handleIDEContext(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ideContextRequest
		if !decodeBody(w, r, &req) {
			return
		}

		query, err := ideQuery(req.Query, req.File, req.Selection)
		if err != nil {
			writeOutcome(w, search.OutcomeOf(nil, err), err)
			return
		}

		res, err := deps.Engine.Context(r.Context(), query)
		writeOutcome(w, search.OutcomeOf(res, err), err)
	}
}

// writeOutcome writes o with a status derived from err.
func writeOutcome(w http.ResponseWriter, o search.Outcome, err error) {
	code := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, search.ErrInvalidQuery):
		code = http.StatusBadRequest
	default:
		code = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(o)
}

// ideQuery joins the query text, the words of the file's base name and the
// start of the selection.
func ideQuery(query, file, selection string) (string, error) {
	var parts []string
	if q := strings.TrimSpace(query); q != "" {
		parts = append(parts, q)
	}
	if file != "" {
		base := path.Base(strings.ReplaceAll(file, `\`, "/"))
		base = strings.TrimSuffix(base, path.Ext(base))
		words := strings.FieldsFunc(base, func(r rune) bool {
			return r == '-' || r == '_' || r == '.' || r == ' '
		})
		parts = append(parts, words...)
	}
	if s := strings.TrimSpace(selection); s != "" {
		if len(s) > maxSelectionBytes {
			s = strings.ToValidUTF8(s[:maxSelectionBytes], "")
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return "", &search.ValidationError{
			Field:   "query",
			Kind:    search.KindMissing,
			Message: "one of query, file or selection is required",
		}
	}
	return strings.Join(parts, " "), nil
}
