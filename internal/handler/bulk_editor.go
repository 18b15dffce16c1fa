package handler

import (
	"context"
	"net/http"

	"github.com/matthewbaird/gridedit/internal/bulkedit"
	"github.com/matthewbaird/gridedit/internal/logger"
)

// BulkService is the bulk edit service as seen by the HTTP layer.
type BulkService interface {
	BulkUpdate(ctx context.Context, req bulkedit.Request) (bulkedit.Response, error)
	GetPopulated(ctx context.Context, req bulkedit.PopulateRequest) (bulkedit.PopulateResponse, error)
}

// BulkEditorHandler serves the batch update and populated fetch endpoints.
type BulkEditorHandler struct {
	svc BulkService
	log *logger.Logger
}

// NewBulkEditorHandler creates a BulkEditorHandler.
func NewBulkEditorHandler(svc BulkService, log *logger.Logger) *BulkEditorHandler {
	return &BulkEditorHandler{svc: svc, log: log.With("handler", "bulk_editor")}
}

// BulkUpdate applies a batch of updates.
// POST /bulk-editor/bulk-update
func (h *BulkEditorHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req bulkedit.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "INVALID_BODY", "invalid request body: "+err.Error())
		return
	}
	resp, err := h.svc.BulkUpdate(r.Context(), req)
	if err != nil {
		errorToHTTP(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, resp)
}

// GetPopulated returns records with every relation resolved.
// POST /bulk-editor/get-populated
func (h *BulkEditorHandler) GetPopulated(w http.ResponseWriter, r *http.Request) {
	var req bulkedit.PopulateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "INVALID_BODY", "invalid request body: "+err.Error())
		return
	}
	resp, err := h.svc.GetPopulated(r.Context(), req)
	if err != nil {
		errorToHTTP(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, resp)
}
