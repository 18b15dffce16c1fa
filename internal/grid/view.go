package grid

import "github.com/matthewbaird/gridedit/internal/contenttype"

// Snapshot is a render-ready view of the editor.
type Snapshot struct {
	ContentType  string       `json:"contentType"`
	Mode         string       `json:"mode"`
	Loading      bool         `json:"loading"`
	Saving       bool         `json:"saving"`
	Dirty        bool         `json:"dirty"`
	ConfirmClose bool         `json:"confirmClose"`
	Closed       bool         `json:"closed"`
	Selected     int          `json:"selected"`
	Columns      []ColumnView `json:"columns"`
	Rows         []RowView    `json:"rows"`
}

// ColumnView describes one editable column.
type ColumnView struct {
	Field    string           `json:"field"`
	Type     string           `json:"type"`
	Enum     []string         `json:"enum,omitempty"`
	ToMany   bool             `json:"toMany,omitempty"`
	ReadOnly bool             `json:"readOnly,omitempty"`
	Options  []RelationOption `json:"options,omitempty"`
}

// RowView is one record.
type RowView struct {
	ID    string     `json:"id"`
	Cells []CellView `json:"cells"`
}

// CellView is one cell with its interaction flags.
type CellView struct {
	Field    string `json:"field"`
	Value    any    `json:"value"`
	Edited   bool   `json:"edited,omitempty"`
	Selected bool   `json:"selected,omitempty"`
	InDrag   bool   `json:"inDrag,omitempty"`
	Hovered  bool   `json:"hovered,omitempty"`
}

// Snapshot renders the current state.
func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := Snapshot{
		ContentType:  e.contentType,
		Mode:         e.state.Mode().String(),
		Loading:      e.loading,
		Saving:       e.saving,
		Dirty:        e.buffer.Dirty(),
		ConfirmClose: e.confirming,
		Closed:       e.closed,
		Selected:     e.state.Selection.Len(),
	}
	fields := e.buffer.Fields()
	for _, name := range fields {
		col := ColumnView{Field: name, Type: string(contenttype.TypeString)}
		if f := e.schema.Field(name); f != nil {
			col.Type = string(f.Type)
			col.Enum = f.Enum
			col.ToMany = f.IsToMany()
			col.ReadOnly = f.Type == contenttype.TypeMedia
			col.Options = e.options[name]
		}
		snap.Columns = append(snap.Columns, col)
	}
	rows := e.buffer.rows
	for _, id := range rows {
		row := RowView{ID: id}
		for _, name := range fields {
			c := Cell{RecordID: id, Field: name}
			row.Cells = append(row.Cells, CellView{
				Field:    name,
				Value:    e.buffer.Value(id, name),
				Edited:   e.buffer.Edited(id, name),
				Selected: e.state.Selection.Contains(c),
				InDrag:   e.state.Drag.Contains(c, rows),
				Hovered:  e.state.Hover == c,
			})
		}
		snap.Rows = append(snap.Rows, row)
	}
	return snap
}
