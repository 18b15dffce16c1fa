// Package activity stores the per-document edit history produced by bulk
// updates. One domain event fans out into one entry per document it
// touches.
package activity

import (
	"encoding/json"
	"time"
)

// Ref identifies a document referenced by a domain event.
type Ref struct {
	ContentType string `json:"content_type"`
	DocumentID  string `json:"document_id"`
	Role        string `json:"role"` // "subject", "related", "context"
}

// Entry is an index entry over the event log keyed by one document.
type Entry struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	OccurredAt  time.Time       `json:"occurred_at"`
	ContentType string          `json:"content_type"`
	DocumentID  string          `json:"document_id"`
	Role        string          `json:"role"`
	Refs        []Ref           `json:"refs"`
	Summary     string          `json:"summary"`
	Category    string          `json:"category"` // "edit", "publish", "relation"
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// QueryOptions controls filtering and pagination for document queries.
type QueryOptions struct {
	Since      *time.Time
	Until      *time.Time
	Categories []string
	Limit      int    // default 100, max 500
	Cursor     string // occurred_at of the last entry of the previous page
}

// SearchOptions controls filtering for summary search.
type SearchOptions struct {
	ContentType string
	Since       *time.Time
	Categories  []string
	Limit       int // default 20
}

// DefaultQueryOptions returns QueryOptions with sensible defaults.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{Limit: 100}
}

// DefaultSearchOptions returns SearchOptions with sensible defaults.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{Limit: 20}
}

func (o QueryOptions) limit() int {
	if o.Limit <= 0 || o.Limit > 500 {
		return 100
	}
	return o.Limit
}

func (o SearchOptions) limit() int {
	if o.Limit <= 0 {
		return 20
	}
	return o.Limit
}
