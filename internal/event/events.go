package event

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/gridedit/internal/activity"
)

// Event types.
const (
	TypeDocumentUpdated    = "document_updated"
	TypeRelationRedirected = "relation_redirected"
	TypeBulkUpdateApplied  = "bulk_update_applied"
)

// DomainEvent carries the canonical shape of every domain event.
type DomainEvent struct {
	ID                string
	EventType         string
	OccurredAt        time.Time
	AffectedDocuments []activity.Ref
	Summary           string
	Category          string // "edit", "publish", "relation", "batch"
	Payload           json.RawMessage
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// DocumentUpdatedPayload carries event-specific data for DocumentUpdated.
type DocumentUpdatedPayload struct {
	ContentType string   `json:"content_type"`
	DocumentID  string   `json:"document_id"`
	Fields      []string `json:"fields"`
	Status      string   `json:"status,omitempty"`
}

func NewDocumentUpdated(p DocumentUpdatedPayload) DomainEvent {
	category, verb := "edit", "Updated"
	if p.Status == "published" {
		category, verb = "publish", "Published"
	}
	summary := fmt.Sprintf("%s %s", verb, shortID(p.DocumentID))
	if len(p.Fields) > 0 {
		summary += ": " + strings.Join(p.Fields, ", ")
	}
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeDocumentUpdated,
		OccurredAt: time.Now(),
		AffectedDocuments: []activity.Ref{
			{ContentType: p.ContentType, DocumentID: p.DocumentID, Role: "subject"},
		},
		Summary:  summary,
		Category: category,
		Payload:  mustJSON(p),
	}
}

// RelationRedirectedPayload carries event-specific data for
// RelationRedirected: an inverse-side edit written onto the owning side.
type RelationRedirectedPayload struct {
	SourceType string              `json:"source_type"`
	TargetType string              `json:"target_type"`
	TargetID   string              `json:"target_id"`
	Fields     map[string][]string `json:"fields"` // owning field → source document ids
}

func NewRelationRedirected(p RelationRedirectedPayload) DomainEvent {
	refs := []activity.Ref{{ContentType: p.TargetType, DocumentID: p.TargetID, Role: "subject"}}
	names := make([]string, 0, len(p.Fields))
	for field := range p.Fields {
		names = append(names, field)
	}
	sort.Strings(names)
	seen := map[string]bool{}
	for _, field := range names {
		for _, id := range p.Fields[field] {
			if !seen[id] {
				seen[id] = true
				refs = append(refs, activity.Ref{ContentType: p.SourceType, DocumentID: id, Role: "related"})
			}
		}
	}
	return DomainEvent{
		ID:                newID(),
		EventType:         TypeRelationRedirected,
		OccurredAt:        time.Now(),
		AffectedDocuments: refs,
		Summary:           fmt.Sprintf("Relinked %s via %s", shortID(p.TargetID), strings.Join(names, ", ")),
		Category:          "relation",
		Payload:           mustJSON(p),
	}
}

// BulkUpdateAppliedPayload summarizes one batch.
type BulkUpdateAppliedPayload struct {
	ContentType string `json:"content_type"`
	Requested   int    `json:"requested"`
	Succeeded   int    `json:"succeeded"`
	Failed      int    `json:"failed"`
	Redirected  int    `json:"redirected"`
	Publish     *bool  `json:"publish,omitempty"`
}

// NewBulkUpdateApplied has no affected documents; per-document history is
// carried by the DocumentUpdated events of the batch.
func NewBulkUpdateApplied(p BulkUpdateAppliedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeBulkUpdateApplied,
		OccurredAt: time.Now(),
		Summary: fmt.Sprintf("Bulk update of %s: %d succeeded, %d failed, %d redirected",
			p.ContentType, p.Succeeded, p.Failed, p.Redirected),
		Category: "batch",
		Payload:  mustJSON(p),
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
