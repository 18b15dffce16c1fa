// Package grid implements the spreadsheet-style bulk editor: cell
// addressing, per-type value codecs, the edit buffer, the selection and
// drag-to-fill engine, the population gate and the save/close flow.
//
// Everything here is transport-agnostic. Collaborators (schema lookup,
// relation options, population re-fetch, saving, notifications) are
// injected through the interfaces in collaborators.go.
package grid

import (
	"encoding/json"
	"strconv"
)

// Record is one document as fetched from the content API: field name to
// JSON-shaped value.
type Record map[string]any

// ID returns the stable external identifier: documentId when present,
// otherwise the numeric id rendered as a string.
func (r Record) ID() string {
	if v, ok := r["documentId"].(string); ok && v != "" {
		return v
	}
	switch id := r["id"].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case json.Number:
		return id.String()
	}
	return ""
}

// Clone returns a copy of r whose top-level slices are not shared.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		return append([]any(nil), t...)
	case []int64:
		return append([]int64(nil), t...)
	default:
		return v
	}
}

// RecordIDs returns the ids of records in order, skipping records without one.
func RecordIDs(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		if id := r.ID(); id != "" {
			out = append(out, id)
		}
	}
	return out
}
