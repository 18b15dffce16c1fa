package grid

// Drag is the immutable state of a drag-to-fill gesture. The anchor and
// current cell always share a column.
type Drag struct {
	active  bool
	anchor  Cell
	current Cell
}

// Active reports whether a drag is in progress.
func (d Drag) Active() bool {
	return d.active
}

// Anchor returns the cell the drag started on.
func (d Drag) Anchor() Cell {
	return d.anchor
}

// Current returns the cell the pointer is over.
func (d Drag) Current() Cell {
	return d.current
}

// Start begins a drag on c.
func (d Drag) Start(c Cell) Drag {
	return Drag{active: true, anchor: c, current: c}
}

// Over moves the drag to c. Cells outside the anchor's column are ignored.
func (d Drag) Over(c Cell) Drag {
	if !d.active || c.Field != d.anchor.Field {
		return d
	}
	d.current = c
	return d
}

// Span returns the record ids between anchor and current in row order.
func (d Drag) Span(rows []string) []string {
	if !d.active {
		return nil
	}
	i, j := indexOf(rows, d.anchor.RecordID), indexOf(rows, d.current.RecordID)
	if i < 0 || j < 0 {
		return nil
	}
	if i > j {
		i, j = j, i
	}
	return append([]string(nil), rows[i:j+1]...)
}

// Contains reports whether c lies inside the drag range.
func (d Drag) Contains(c Cell, rows []string) bool {
	if !d.active || c.Field != d.anchor.Field {
		return false
	}
	for _, id := range d.Span(rows) {
		if id == c.RecordID {
			return true
		}
	}
	return false
}
