package grid

import (
	"encoding/json"
	"sort"

	"github.com/matthewbaird/gridedit/internal/contenttype"
)

// EditableFields returns the columns of the grid. They are derived from
// the keys of the first record: schema declaration order first, remaining
// keys sorted. Returns nil for an empty record set.
func EditableFields(records []Record, schema *contenttype.Schema) []string {
	if len(records) == 0 {
		return nil
	}
	first := records[0]
	seen := make(map[string]bool, len(first))
	var out []string
	if schema != nil {
		for _, name := range schema.FieldOrder {
			v, ok := first[name]
			if ok && fieldEditable(name, v, schema) {
				out = append(out, name)
				seen[name] = true
			}
		}
	}
	keys := make([]string, 0, len(first))
	for k := range first {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if fieldEditable(k, first[k], schema) {
			out = append(out, k)
		}
	}
	return out
}

func fieldEditable(name string, v any, schema *contenttype.Schema) bool {
	if contenttype.IsSystemField(name) {
		return false
	}
	if f := schema.Field(name); f != nil {
		return !f.Type.Structured()
	}
	return isScalar(v)
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, float64, float32, int, int32, int64, json.Number:
		return true
	default:
		return false
	}
}
