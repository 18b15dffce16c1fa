package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/gridedit/internal/contenttype"
	"github.com/matthewbaird/gridedit/internal/logger"
	"github.com/matthewbaird/gridedit/internal/store"
)

// DocumentLister pages through the documents of a content type.
type DocumentLister interface {
	List(ctx context.Context, contentType string, page, pageSize int) ([]map[string]any, store.Pagination, error)
}

// ContentManagerHandler serves schema and list reads used by the grid.
type ContentManagerHandler struct {
	reg  *contenttype.Registry
	docs DocumentLister
	log  *logger.Logger
}

// NewContentManagerHandler creates a ContentManagerHandler.
func NewContentManagerHandler(reg *contenttype.Registry, docs DocumentLister, log *logger.Logger) *ContentManagerHandler {
	return &ContentManagerHandler{reg: reg, docs: docs, log: log.With("handler", "content_manager")}
}

// SchemaResponse is the body of a content type schema read.
type SchemaResponse struct {
	Data *contenttype.Schema `json:"data"`
}

// ListResponse is the body of a collection list read.
type ListResponse struct {
	Results    []map[string]any `json:"results"`
	Pagination store.Pagination `json:"pagination"`
}

// GetContentType returns the schema of one content type.
// GET /content-manager/content-types/{uid}
func (h *ContentManagerHandler) GetContentType(w http.ResponseWriter, r *http.Request) {
	s, err := h.reg.Get(chi.URLParam(r, "uid"))
	if err != nil {
		errorToHTTP(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, SchemaResponse{Data: s})
}

// ListContentTypes returns every registered schema.
// GET /content-manager/content-types
func (h *ContentManagerHandler) ListContentTypes(w http.ResponseWriter, r *http.Request) {
	names := h.reg.Names()
	out := make([]*contenttype.Schema, 0, len(names))
	for _, uid := range names {
		if s, err := h.reg.Get(uid); err == nil {
			out = append(out, s)
		}
	}
	writeJSON(w, h.log, http.StatusOK, map[string]any{"data": out})
}

// ListDocuments returns one page of documents with relations as count
// placeholders.
// GET /content-manager/collection-types/{uid}?page=&pageSize=
func (h *ContentManagerHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePage(r)
	results, pg, err := h.docs.List(r.Context(), chi.URLParam(r, "uid"), page, pageSize)
	if err != nil {
		errorToHTTP(w, h.log, err)
		return
	}
	if results == nil {
		results = []map[string]any{}
	}
	writeJSON(w, h.log, http.StatusOK, ListResponse{Results: results, Pagination: pg})
}
