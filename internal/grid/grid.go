package grid

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Grid is an immutable, validated slot topology.
type Grid struct {
	slots     []Slot
	index     map[string]int
	errorSlot string
}

// Options controls how raw slot specs become a Grid.
type Options struct {
	// ErrorSlot names the Error Slot. Empty selects the last row of the last column.
	ErrorSlot string
	// SlotCapacity applies to assignable slots whose spec has no capacity.
	SlotCapacity int
}

// New validates specs and builds a Grid. Slots are kept in canonical
// (column, row) order regardless of the order the source produced them.
func New(specs []Slot, opts Options) (*Grid, error) {
	if len(specs) == 0 {
		return nil, errors.New("grid has no slots")
	}
	if opts.SlotCapacity <= 0 {
		return nil, errors.New("slot capacity must be positive")
	}

	slots := make([]Slot, 0, len(specs))
	index := make(map[string]int, len(specs))
	for _, spec := range specs {
		slot, err := canonicalSlot(spec)
		if err != nil {
			return nil, err
		}
		if _, dup := index[slot.ID]; dup {
			return nil, fmt.Errorf("duplicate slot id %q", slot.ID)
		}
		index[slot.ID] = len(slots)
		slots = append(slots, slot)
	}

	slices.SortStableFunc(slots, compareSlots)
	if err := checkColumns(slots); err != nil {
		return nil, err
	}

	errorSlot := strings.ToUpper(strings.TrimSpace(opts.ErrorSlot))
	if errorSlot == "" {
		errorSlot = slots[len(slots)-1].ID
	}

	g := &Grid{slots: slots, index: make(map[string]int, len(slots)), errorSlot: errorSlot}
	for i := range g.slots {
		g.index[g.slots[i].ID] = i
	}
	pos, ok := g.index[errorSlot]
	if !ok {
		return nil, fmt.Errorf("error slot %q is not part of the grid", errorSlot)
	}
	for i := range g.slots {
		switch {
		case i == pos:
			g.slots[i].Capacity = Unbounded
		case g.slots[i].Capacity <= 0:
			g.slots[i].Capacity = opts.SlotCapacity
		}
	}
	return g, nil
}

func canonicalSlot(spec Slot) (Slot, error) {
	column := strings.ToUpper(strings.TrimSpace(spec.Column))
	row := spec.Row
	id := strings.ToUpper(strings.TrimSpace(spec.ID))

	if id != "" {
		parsedColumn, parsedRow, err := ParseSlotID(id)
		if err != nil {
			return Slot{}, err
		}
		if column == "" {
			column = parsedColumn
		}
		if row == 0 {
			row = parsedRow
		}
		if column != parsedColumn || row != parsedRow {
			return Slot{}, fmt.Errorf("slot %q disagrees with column %q row %d", id, column, row)
		}
	}
	if column == "" || row <= 0 {
		return Slot{}, fmt.Errorf("slot %q: column and positive row are required", id)
	}
	if len(column) != 1 || column[0] < 'A' || column[0] > 'Z' {
		return Slot{}, fmt.Errorf("slot %q: column must be a single letter A-Z", id)
	}
	spec.ID = SlotID(column, row)
	spec.Column = column
	spec.Row = row
	return spec, nil
}

func compareSlots(a, b Slot) int {
	if c := strings.Compare(a.Column, b.Column); c != 0 {
		return c
	}
	return a.Row - b.Row
}

// checkColumns enforces a contiguous column set starting at A.
func checkColumns(sorted []Slot) error {
	want := byte('A')
	for _, slot := range sorted {
		col := slot.Column[0]
		switch {
		case col == want-1:
		case col == want:
			want++
		default:
			return fmt.Errorf("columns must be contiguous from A: missing column %q", string(want))
		}
	}
	return nil
}

// Slots returns a copy of the slots in canonical order.
func (g *Grid) Slots() []Slot {
	return slices.Clone(g.slots)
}

// Slot looks up a slot by identifier (case-insensitive).
func (g *Grid) Slot(id string) (Slot, bool) {
	pos, ok := g.index[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return Slot{}, false
	}
	return g.slots[pos], true
}

// ErrorSlot returns the slot that absorbs diverted and overflowing items.
func (g *Grid) ErrorSlot() Slot {
	return g.slots[g.index[g.errorSlot]]
}

// ErrorSlotID returns the Error Slot identifier.
func (g *Grid) ErrorSlotID() string {
	return g.errorSlot
}

// Len reports the number of slots including the Error Slot.
func (g *Grid) Len() int {
	return len(g.slots)
}

// Columns returns the distinct column letters in order.
func (g *Grid) Columns() []string {
	var out []string
	for _, slot := range g.slots {
		if len(out) == 0 || out[len(out)-1] != slot.Column {
			out = append(out, slot.Column)
		}
	}
	return out
}

// Rows returns the highest row number in the grid.
func (g *Grid) Rows() int {
	var rows int
	for _, slot := range g.slots {
		rows = max(rows, slot.Row)
	}
	return rows
}
