package grid

import (
	"fmt"

	"github.com/matthewbaird/gridedit/internal/contenttype"
)

// Update is one record's pending changes as sent to the bulk update
// endpoint.
type Update struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Buffer holds pending edits for the records of one grid. An entry is
// created on the first write to a record and is a full merge of the
// original and every edit applied since; reads fall back to the original
// until then.
type Buffer struct {
	schema    *contenttype.Schema
	fields    []string
	editable  map[string]bool
	rows      []string
	originals map[string]Record
	entries   map[string]Record
	edited    map[string]map[string]bool
	dirty     bool
}

// NewBuffer seeds a buffer from records. fields is the editable set, in
// column order.
func NewBuffer(records []Record, schema *contenttype.Schema, fields []string) *Buffer {
	b := &Buffer{
		schema:    schema,
		fields:    append([]string(nil), fields...),
		editable:  make(map[string]bool, len(fields)),
		originals: make(map[string]Record, len(records)),
		entries:   make(map[string]Record),
		edited:    make(map[string]map[string]bool),
	}
	for _, f := range fields {
		b.editable[f] = true
	}
	for _, r := range records {
		id := r.ID()
		if id == "" {
			continue
		}
		if _, dup := b.originals[id]; !dup {
			b.rows = append(b.rows, id)
		}
		b.originals[id] = seed(r, schema)
	}
	return b
}

// seed normalizes relation fields: count placeholders become empty lists
// and relation fields the record lacks are defaulted.
func seed(r Record, schema *contenttype.Schema) Record {
	out := r.Clone()
	for _, f := range schema.RelationFields() {
		v, ok := out[f.Name]
		switch {
		case ok && !IsCountPlaceholder(v):
			continue
		case f.IsToMany():
			out[f.Name] = []any{}
		default:
			out[f.Name] = nil
		}
	}
	return out
}

// Rows returns record ids in display order.
func (b *Buffer) Rows() []string {
	return append([]string(nil), b.rows...)
}

// Fields returns the editable fields in column order.
func (b *Buffer) Fields() []string {
	return append([]string(nil), b.fields...)
}

// Editable reports whether field is a grid column.
func (b *Buffer) Editable(field string) bool {
	return b.editable[field]
}

// Has reports whether id is one of the buffered records.
func (b *Buffer) Has(id string) bool {
	_, ok := b.originals[id]
	return ok
}

// Get returns the current merged record for id, or nil.
func (b *Buffer) Get(id string) Record {
	if e, ok := b.entries[id]; ok {
		return e
	}
	return b.originals[id]
}

// Value returns the editable representation of one cell.
func (b *Buffer) Value(id, field string) any {
	r := b.Get(id)
	if r == nil {
		return nil
	}
	return ToEditable(r[field], b.schema.Field(field))
}

// SetField writes value to field on every record in ids. Either all
// records are written or, when an id is unknown, none are.
func (b *Buffer) SetField(ids []string, field string, value any) error {
	values := make(map[string]any, len(ids))
	for _, id := range ids {
		values[id] = value
	}
	return b.SetValues(field, values)
}

// SetValues writes a per-record value to field atomically.
func (b *Buffer) SetValues(field string, values map[string]any) error {
	for id := range values {
		if !b.Has(id) {
			return fmt.Errorf("%w: %s", ErrUnknownRecord, id)
		}
	}
	for id, v := range values {
		entry, ok := b.entries[id]
		if !ok {
			entry = b.originals[id].Clone()
			b.entries[id] = entry
		}
		entry[field] = cloneValue(v)
		if b.edited[id] == nil {
			b.edited[id] = make(map[string]bool)
		}
		b.edited[id][field] = true
	}
	if len(values) > 0 {
		b.dirty = true
	}
	return nil
}

// Dirty reports whether any write happened since the last save or discard.
func (b *Buffer) Dirty() bool {
	return b.dirty
}

// Edited reports whether field of record id has been written.
func (b *Buffer) Edited(id, field string) bool {
	return b.edited[id][field]
}

// Flatten returns one update per edited record, in row order. Only fields
// that were written and are editable are included; media is never sent.
// Values go through the field codec's persisted form.
func (b *Buffer) Flatten() []Update {
	updates := []Update{}
	for _, id := range b.rows {
		edited := b.edited[id]
		if len(edited) == 0 {
			continue
		}
		entry := b.entries[id]
		data := make(map[string]any)
		for _, field := range b.fields {
			if !edited[field] {
				continue
			}
			f := b.schema.Field(field)
			if f != nil && f.Type == contenttype.TypeMedia {
				continue
			}
			data[field] = ToPersisted(entry[field], f)
		}
		if len(data) > 0 {
			updates = append(updates, Update{ID: id, Data: data})
		}
	}
	return updates
}

// MarkClean forgets which fields were written after a successful save.
// Entries are kept so the grid shows saved values until it is reloaded.
func (b *Buffer) MarkClean() {
	b.edited = make(map[string]map[string]bool)
	b.dirty = false
}

// Discard drops all pending edits.
func (b *Buffer) Discard() {
	b.entries = make(map[string]Record)
	b.edited = make(map[string]map[string]bool)
	b.dirty = false
}
