package grid

import "strings"

// keySep separates record id and field name inside a cell key. Neither
// document ids nor attribute names can contain it.
const keySep = "\x1f"

// Cell addresses one field of one record.
type Cell struct {
	RecordID string `json:"recordId"`
	Field    string `json:"field"`
}

// Key returns the lookup key for (recordID, field).
func Key(recordID, field string) string {
	return recordID + keySep + field
}

// Key returns the lookup key of c.
func (c Cell) Key() string {
	return Key(c.RecordID, c.Field)
}

// IsZero reports whether c addresses nothing.
func (c Cell) IsZero() bool {
	return c.RecordID == "" && c.Field == ""
}

// ParseKey reverses Key.
func ParseKey(key string) (Cell, bool) {
	id, field, ok := strings.Cut(key, keySep)
	if !ok {
		return Cell{}, false
	}
	return Cell{RecordID: id, Field: field}, true
}

func indexOf(rows []string, id string) int {
	for i, r := range rows {
		if r == id {
			return i
		}
	}
	return -1
}
