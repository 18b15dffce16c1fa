package grid

import "sort"

// Selection is an immutable set of selected cells. Every cell in a
// non-empty selection belongs to the same column.
type Selection struct {
	field string
	cells map[string]Cell
}

// Click is a pointer click on a cell.
type Click struct {
	Cell Cell
	// Shift extends the selection as a contiguous range in the column.
	Shift bool
	// Toggle is ctrl on most platforms, cmd on macOS.
	Toggle bool
	// OnControl is set when the click landed on the cell's input control.
	OnControl bool
}

func singleSelection(c Cell) Selection {
	return Selection{field: c.Field, cells: map[string]Cell{c.Key(): c}}
}

// Field returns the column of the selection, or "" when empty.
func (s Selection) Field() string {
	return s.field
}

// Len returns the number of selected cells.
func (s Selection) Len() int {
	return len(s.cells)
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return len(s.cells) == 0
}

// Contains reports whether c is selected.
func (s Selection) Contains(c Cell) bool {
	_, ok := s.cells[c.Key()]
	return ok
}

// Keys returns the selected cell keys sorted.
func (s Selection) Keys() []string {
	out := make([]string, 0, len(s.cells))
	for k := range s.cells {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RecordIDs returns the ids of selected records in row order.
func (s Selection) RecordIDs(rows []string) []string {
	var out []string
	for _, id := range rows {
		if s.Contains(Cell{RecordID: id, Field: s.field}) {
			out = append(out, id)
		}
	}
	return out
}

// Apply returns the selection that results from click c. Precedence is
// shift, then toggle, then a plain click on the control of a selected cell
// (which keeps the selection), then a plain click.
func (s Selection) Apply(c Click, rows []string) Selection {
	switch {
	case c.Shift:
		return s.extend(c.Cell, rows)
	case c.Toggle:
		return s.toggle(c.Cell)
	case c.OnControl && s.Contains(c.Cell):
		return s
	default:
		return singleSelection(c.Cell)
	}
}

// extend selects the rows between the highest-index (bottom-most) selected
// row of the clicked column and the clicked cell, inclusive.
func (s Selection) extend(c Cell, rows []string) Selection {
	column := map[string]Cell{}
	anchor := -1
	if s.field == c.Field {
		for k, cell := range s.cells {
			column[k] = cell
			if i := indexOf(rows, cell.RecordID); i > anchor {
				anchor = i
			}
		}
	}
	column[c.Key()] = c
	if cur := indexOf(rows, c.RecordID); anchor >= 0 && cur >= 0 {
		lo, hi := anchor, cur
		if lo > hi {
			lo, hi = hi, lo
		}
		for _, id := range rows[lo : hi+1] {
			cell := Cell{RecordID: id, Field: c.Field}
			column[cell.Key()] = cell
		}
	}
	return Selection{field: c.Field, cells: column}
}

// toggle flips c in a column-restricted copy of the selection.
func (s Selection) toggle(c Cell) Selection {
	column := map[string]Cell{}
	if s.field == c.Field {
		for k, cell := range s.cells {
			column[k] = cell
		}
	}
	if _, ok := column[c.Key()]; ok {
		delete(column, c.Key())
	} else {
		column[c.Key()] = c
	}
	if len(column) == 0 {
		return Selection{}
	}
	return Selection{field: c.Field, cells: column}
}
