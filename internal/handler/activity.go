package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/gridedit/internal/activity"
	"github.com/matthewbaird/gridedit/internal/logger"
)

// ActivityHandler serves the per-document edit history.
type ActivityHandler struct {
	store activity.Store
	log   *logger.Logger
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(store activity.Store, log *logger.Logger) *ActivityHandler {
	return &ActivityHandler{store: store, log: log.With("handler", "activity")}
}

// GetDocumentActivity returns the history of one document, newest first.
// GET /bulk-editor/activity/{uid}/{documentId}
func (h *ActivityHandler) GetDocumentActivity(w http.ResponseWriter, r *http.Request) {
	contentType := chi.URLParam(r, "uid")
	documentID := chi.URLParam(r, "documentId")
	if contentType == "" || documentID == "" {
		writeError(w, h.log, http.StatusBadRequest, "MISSING_PARAMS", "uid and documentId are required")
		return
	}

	opts := activity.DefaultQueryOptions()
	q := r.URL.Query()
	if s := q.Get("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			opts.Since = &t
		}
	}
	if u := q.Get("until"); u != "" {
		if t, err := time.Parse(time.RFC3339, u); err == nil {
			opts.Until = &t
		}
	}
	if cats := q.Get("categories"); cats != "" {
		opts.Categories = strings.Split(cats, ",")
	}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			if n > 500 {
				n = 500
			}
			opts.Limit = n
		}
	}
	opts.Cursor = q.Get("cursor")

	entries, nextCursor, totalCount, err := h.store.QueryByDocument(r.Context(), contentType, documentID, opts)
	if err != nil {
		writeError(w, h.log, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}

	resp := struct {
		Activities []activity.Entry `json:"activities"`
		NextCursor string           `json:"next_cursor,omitempty"`
		TotalCount int              `json:"total_count"`
	}{
		Activities: entries,
		NextCursor: nextCursor,
		TotalCount: totalCount,
	}
	if resp.Activities == nil {
		resp.Activities = []activity.Entry{}
	}
	writeJSON(w, h.log, http.StatusOK, resp)
}

// SearchActivity performs a substring search across entry summaries.
// POST /bulk-editor/activity/search
func (h *ActivityHandler) SearchActivity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query       string   `json:"query"`
		ContentType string   `json:"content_type,omitempty"`
		Since       string   `json:"since,omitempty"`
		Categories  []string `json:"categories,omitempty"`
		Limit       int      `json:"limit,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, h.log, http.StatusBadRequest, "MISSING_PARAMS", "query is required")
		return
	}

	opts := activity.DefaultSearchOptions()
	opts.ContentType = req.ContentType
	opts.Categories = req.Categories
	if req.Limit > 0 {
		opts.Limit = req.Limit
	}
	if req.Since != "" {
		if t, err := time.Parse(time.RFC3339, req.Since); err == nil {
			opts.Since = &t
		}
	}

	entries, totalCount, err := h.store.Search(r.Context(), req.Query, opts)
	if err != nil {
		writeError(w, h.log, http.StatusInternalServerError, "SEARCH_FAILED", err.Error())
		return
	}
	resp := struct {
		Results    []activity.Entry `json:"results"`
		TotalCount int              `json:"total_count"`
	}{
		Results:    entries,
		TotalCount: totalCount,
	}
	if resp.Results == nil {
		resp.Results = []activity.Entry{}
	}
	writeJSON(w, h.log, http.StatusOK, resp)
}
