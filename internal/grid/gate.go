package grid

import (
	"context"

	"github.com/matthewbaird/gridedit/internal/contenttype"
	"github.com/matthewbaird/gridedit/internal/logger"
)

// IsCountPlaceholder reports whether v is the {count: n} stand-in list
// endpoints return for relations they did not populate.
func IsCountPlaceholder(v any) bool {
	var m map[string]any
	switch t := v.(type) {
	case map[string]any:
		m = t
	case Record:
		m = t
	default:
		return false
	}
	_, ok := m["count"]
	return ok
}

// UnderPopulated returns the ids of records holding a count placeholder in
// any relation field, in input order.
func UnderPopulated(records []Record, schema *contenttype.Schema) []string {
	relations := schema.RelationFields()
	if len(relations) == 0 {
		return nil
	}
	var ids []string
	for _, r := range records {
		for _, f := range relations {
			if IsCountPlaceholder(r[f.Name]) {
				if id := r.ID(); id != "" {
					ids = append(ids, id)
				}
				break
			}
		}
	}
	return ids
}

// Populate replaces under-populated records with fully populated ones from
// a single batch fetch. Records the fetch does not return, and every
// record when the fetch fails, are kept as they were.
func Populate(ctx context.Context, p Populator, contentType string, records []Record, schema *contenttype.Schema, log *logger.Logger) []Record {
	ids := UnderPopulated(records, schema)
	if len(ids) == 0 || p == nil {
		return records
	}
	populated, err := p.GetPopulated(ctx, contentType, ids)
	if err != nil {
		log.Warn("population fetch failed, keeping list data", "content_type", contentType, "records", len(ids), "error", err)
		return records
	}
	byID := make(map[string]Record, len(populated))
	for _, r := range populated {
		byID[r.ID()] = r
	}
	out := make([]Record, len(records))
	for i, r := range records {
		if full, ok := byID[r.ID()]; ok {
			out[i] = full
			continue
		}
		out[i] = r
	}
	log.Debug("records populated", "content_type", contentType, "requested", len(ids), "returned", len(populated))
	return out
}
