package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/knowd/internal/storage"
	"github.com/kalambet/knowd/internal/tagging"
)

type linkView struct {
	storage.Link
	Tags []storage.Tag `json:"tags"`
}

type createLinkRequest struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"` // tag names, created if missing
}

// updateLinkRequest changes only the fields that are present.
type updateLinkRequest struct {
	URL          *string `json:"url"`
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Summary      *string `json:"summary"`
	ThumbnailURL *string `json:"thumbnailUrl"`
}

func handleListLinks(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		links, err := deps.Store.GetLinks(r.Context())
		if err != nil {
			storeError(w, err, "listing links")
			return
		}

		views := make([]linkView, len(links))
		for i, l := range links {
			tags, err := deps.Store.GetLinkTagsByLinkID(r.Context(), l.ID)
			if err != nil {
				storeError(w, err, "loading tags for link %s", l.ID)
				return
			}
			views[i] = linkView{Link: l, Tags: nonNilTags(tags)}
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleCreateLink(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createLinkRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if !validURL(req.URL) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url must be an absolute http(s) URL")
			return
		}

		l := storage.Link{URL: req.URL, Title: req.Title, Description: req.Description}
		if strings.TrimSpace(l.Title) == "" {
			fillFromPage(r, deps, &l)
		}

		if err := deps.Store.CreateLink(r.Context(), &l); err != nil {
			storeError(w, err, "creating link")
			return
		}

		tags, err := tagging.Ensure(r.Context(), deps.Store, req.Tags)
		if err != nil {
			storeError(w, err, "creating tags")
			return
		}
		if len(tags) > 0 {
			if err := deps.Store.SetLinkTags(r.Context(), l.ID, tagging.IDs(tags)); err != nil {
				storeError(w, err, "tagging link %s", l.ID)
				return
			}
		}

		enqueueAutoTag(r, deps, storage.KindLink, l.ID)
		writeJSON(w, http.StatusCreated, linkView{Link: l, Tags: tags})
	}
}

// fillFromPage sets the title, and any missing description or thumbnail,
// from the scraped page. Without a scraper, or when the fetch fails, the URL
// becomes the title.
func fillFromPage(r *http.Request, deps Deps, l *storage.Link) {
	l.Title = l.URL
	if deps.Scraper == nil {
		return
	}
	page, err := deps.Scraper.Scrape(r.Context(), l.URL)
	if err != nil {
		deps.Logger.Warn("link metadata fetch failed", "url", l.URL, "error", err)
		return
	}
	if page.Title != "" {
		l.Title = page.Title
	}
	if l.Description == "" {
		l.Description = page.Description
	}
	l.ThumbnailURL = page.ThumbnailURL
}

func handleGetLink(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		l, err := deps.Store.GetLink(r.Context(), id)
		if err != nil {
			storeError(w, err, "link %s", id)
			return
		}
		tags, err := deps.Store.GetLinkTagsByLinkID(r.Context(), id)
		if err != nil {
			storeError(w, err, "loading tags for link %s", id)
			return
		}
		writeJSON(w, http.StatusOK, linkView{Link: l, Tags: nonNilTags(tags)})
	}
}

func handleUpdateLink(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req updateLinkRequest
		if !decodeBody(w, r, &req) {
			return
		}

		l, err := deps.Store.GetLink(r.Context(), id)
		if err != nil {
			storeError(w, err, "link %s", id)
			return
		}
		if req.URL != nil {
			if !validURL(*req.URL) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "url must be an absolute http(s) URL")
				return
			}
			l.URL = *req.URL
		}
		if req.Title != nil {
			if strings.TrimSpace(*req.Title) == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "title must not be empty")
				return
			}
			l.Title = *req.Title
		}
		if req.Description != nil {
			l.Description = *req.Description
		}
		if req.Summary != nil {
			l.Summary = *req.Summary
		}
		if req.ThumbnailURL != nil {
			l.ThumbnailURL = *req.ThumbnailURL
		}

		if err := deps.Store.UpdateLink(r.Context(), l); err != nil {
			storeError(w, err, "link %s", id)
			return
		}
		l, err = deps.Store.GetLink(r.Context(), id)
		if err != nil {
			storeError(w, err, "link %s", id)
			return
		}
		tags, err := deps.Store.GetLinkTagsByLinkID(r.Context(), id)
		if err != nil {
			storeError(w, err, "loading tags for link %s", id)
			return
		}
		writeJSON(w, http.StatusOK, linkView{Link: l, Tags: nonNilTags(tags)})
	}
}

func handleDeleteLink(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := deps.Store.DeleteLink(r.Context(), id); err != nil {
			storeError(w, err, "link %s", id)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleGetLinkTags(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := deps.Store.GetLink(r.Context(), id); err != nil {
			storeError(w, err, "link %s", id)
			return
		}
		tags, err := deps.Store.GetLinkTagsByLinkID(r.Context(), id)
		if err != nil {
			storeError(w, err, "loading tags for link %s", id)
			return
		}
		writeJSON(w, http.StatusOK, nonNilTags(tags))
	}
}

func handleSetLinkTags(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req tagIDsRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := deps.Store.SetLinkTags(r.Context(), id, req.TagIDs); err != nil {
			storeError(w, err, "setting tags on link %s", id)
			return
		}
		tags, err := deps.Store.GetLinkTagsByLinkID(r.Context(), id)
		if err != nil {
			storeError(w, err, "loading tags for link %s", id)
			return
		}
		writeJSON(w, http.StatusOK, nonNilTags(tags))
	}
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
