package bulkedit

import (
	"context"
	"errors"

	"github.com/matthewbaird/gridedit/internal/contenttype"
	"github.com/matthewbaird/gridedit/internal/event"
	"github.com/matthewbaird/gridedit/internal/logger"
	"github.com/matthewbaird/gridedit/internal/store"
)

// ErrValidation is wrapped by every ValidationError.
var ErrValidation = errors.New("validation error")

// ValidationError reports a malformed request. Nothing was written.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// MissingIDOrData is the per-record error for entries without id or data.
const MissingIDOrData = "Missing id or data"

// Request is a bulk update.
type Request struct {
	ContentType string  `json:"contentType"`
	Updates     []Entry `json:"updates"`
	Publish     *bool   `json:"publish,omitempty"`
}

// Result is the outcome for one entry of a request.
type Result struct {
	ID      string         `json:"id"`
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Response is the outcome of a bulk update. Results align with the
// request's updates.
type Response struct {
	Success bool     `json:"success"`
	Results []Result `json:"results"`
}

// PopulateRequest asks for records with every relation resolved.
type PopulateRequest struct {
	ContentType string   `json:"contentType"`
	DocumentIDs []string `json:"documentIds"`
}

// PopulateResponse carries the records that could be fetched.
type PopulateResponse struct {
	Success   bool             `json:"success"`
	Documents []map[string]any `json:"documents"`
}

// DocumentStore is the subset of the store the service writes through.
type DocumentStore interface {
	Update(ctx context.Context, contentType, ref string, w store.Write) (map[string]any, error)
	FindOne(ctx context.Context, contentType, ref string, populate bool) (map[string]any, error)
}

// Service applies bulk updates.
type Service struct {
	docs     DocumentStore
	reg      *contenttype.Registry
	recorder event.Recorder
	log      *logger.Logger
}

// NewService creates a Service. recorder may be nil.
func NewService(docs DocumentStore, reg *contenttype.Registry, recorder event.Recorder, log *logger.Logger) *Service {
	if recorder == nil {
		recorder = event.Discard{}
	}
	return &Service{docs: docs, reg: reg, recorder: recorder, log: log}
}

// BulkUpdate applies every entry of req. Direct writes run first in
// request order; redirected writes follow, one per target record. A
// failing record never aborts the batch: direct failures are reported in
// the results, redirected failures are logged.
func (s *Service) BulkUpdate(ctx context.Context, req Request) (Response, error) {
	if req.ContentType == "" || req.Updates == nil {
		return Response{}, &ValidationError{Message: "Missing or invalid contentType or updates"}
	}
	schema, err := s.reg.Get(req.ContentType)
	if err != nil {
		return Response{}, &ValidationError{Message: err.Error()}
	}

	status := ""
	if req.Publish != nil {
		status = store.StatusDraft
		if *req.Publish {
			status = store.StatusPublished
		}
	}
	plan := BuildPlan(schema, req.Updates, status)

	results := make([]Result, len(req.Updates))
	for _, i := range plan.Invalid {
		results[i] = Result{ID: req.Updates[i].Ref(), Success: false, Error: MissingIDOrData}
	}

	succeeded := 0
	for _, d := range plan.Direct {
		updated, err := s.docs.Update(ctx, req.ContentType, d.ID, d.Write)
		if err != nil {
			s.log.Warn("bulk update failed", "content_type", req.ContentType, "document_id", d.ID, "error", err)
			results[d.Index] = Result{ID: d.ID, Success: false, Error: err.Error()}
			continue
		}
		succeeded++
		results[d.Index] = Result{ID: d.ID, Success: true, Data: updated}
		s.record(ctx, event.NewDocumentUpdated(event.DocumentUpdatedPayload{
			ContentType: req.ContentType,
			DocumentID:  documentID(updated, d.ID),
			Fields:      d.Fields,
			Status:      status,
		}))
	}

	redirected := 0
	for _, r := range plan.Redirects {
		if err := s.applyRedirect(ctx, req.ContentType, r); err != nil {
			s.log.Warn("redirected relation update failed",
				"content_type", r.ContentType, "document_id", r.DocumentID, "fields", r.Fields(), "error", err)
			continue
		}
		redirected++
	}

	s.record(ctx, event.NewBulkUpdateApplied(event.BulkUpdateAppliedPayload{
		ContentType: req.ContentType,
		Requested:   len(req.Updates),
		Succeeded:   succeeded,
		Failed:      len(req.Updates) - succeeded,
		Redirected:  redirected,
		Publish:     req.Publish,
	}))
	s.log.Info("bulk update applied", "content_type", req.ContentType,
		"requested", len(req.Updates), "succeeded", succeeded, "redirected", redirected)
	return Response{Success: true, Results: results}, nil
}

// applyRedirect replaces each owning field of the target with the source
// records accumulated for it in this batch.
func (s *Service) applyRedirect(ctx context.Context, sourceType string, r *RedirectedWrite) error {
	w := store.Write{Relations: map[string][]any{}}
	for _, field := range r.Fields() {
		ids := make([]any, len(r.Relations[field]))
		for i, id := range r.Relations[field] {
			ids[i] = id
		}
		w.Relations[field] = ids
	}
	updated, err := s.docs.Update(ctx, r.ContentType, r.DocumentID, w)
	if err != nil {
		return err
	}
	s.record(ctx, event.NewRelationRedirected(event.RelationRedirectedPayload{
		SourceType: sourceType,
		TargetType: r.ContentType,
		TargetID:   documentID(updated, r.DocumentID),
		Fields:     r.Relations,
	}))
	return nil
}

// GetPopulated returns the requested records with relations resolved.
// Records that cannot be fetched are skipped.
func (s *Service) GetPopulated(ctx context.Context, req PopulateRequest) (PopulateResponse, error) {
	if req.ContentType == "" || req.DocumentIDs == nil {
		return PopulateResponse{}, &ValidationError{Message: "Missing or invalid contentType or documentIds"}
	}
	if _, err := s.reg.Get(req.ContentType); err != nil {
		return PopulateResponse{}, &ValidationError{Message: err.Error()}
	}
	docs := make([]map[string]any, 0, len(req.DocumentIDs))
	for _, id := range req.DocumentIDs {
		doc, err := s.docs.FindOne(ctx, req.ContentType, id, true)
		if err != nil {
			s.log.Warn("populated fetch failed", "content_type", req.ContentType, "document_id", id, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return PopulateResponse{Success: true, Documents: docs}, nil
}

func (s *Service) record(ctx context.Context, evt event.DomainEvent) {
	if err := s.recorder.Record(ctx, evt); err != nil {
		s.log.Error("recording event failed", "event_type", evt.EventType, "error", err)
	}
}

func documentID(rec map[string]any, fallback string) string {
	if id, ok := rec["documentId"].(string); ok && id != "" {
		return id
	}
	return fallback
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
