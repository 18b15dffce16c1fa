// Package handler implements the HTTP endpoints of the bulk editor and the
// content manager read API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/matthewbaird/gridedit/internal/bulkedit"
	"github.com/matthewbaird/gridedit/internal/contenttype"
	"github.com/matthewbaird/gridedit/internal/logger"
	"github.com/matthewbaird/gridedit/internal/store"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, log *logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("writeJSON encode error", "error", err)
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, log *logger.Logger, status int, code, message string) {
	writeJSON(w, log, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// parsePage extracts page and pageSize from query params. Zero means unset.
func parsePage(r *http.Request) (page, pageSize int) {
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := q.Get("pageSize"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pageSize = n
		}
	}
	return page, pageSize
}

// errorToHTTP maps service and store errors to HTTP responses.
func errorToHTTP(w http.ResponseWriter, log *logger.Logger, err error) {
	switch {
	case bulkedit.IsValidation(err):
		writeError(w, log, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, contenttype.ErrUnknownContentType), errors.Is(err, store.ErrNotFound):
		writeError(w, log, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, store.ErrInvalidField):
		writeError(w, log, http.StatusBadRequest, "INVALID_FIELD", err.Error())
	default:
		log.Error("internal error", "error", err)
		writeError(w, log, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}
