package grid

import (
	"fmt"
	"strconv"
	"strings"
)

// Unbounded marks a slot without a capacity ceiling (the Error Slot).
const Unbounded = -1

// Slot is one addressable storage location. Coordinates are carried for the
// motion collaborator and are otherwise opaque.
type Slot struct {
	ID       string  `json:"id" toml:"id"`
	Column   string  `json:"column" toml:"column"`
	Row      int     `json:"row" toml:"row"`
	X        float64 `json:"x" toml:"x"`
	Y        float64 `json:"y" toml:"y"`
	Z        float64 `json:"z" toml:"z"`
	Capacity int     `json:"capacity" toml:"capacity"`
}

// Bounded reports whether the slot enforces a capacity ceiling.
func (s Slot) Bounded() bool {
	return s.Capacity != Unbounded
}

// SlotID composes the canonical identifier for a column and row ("C2").
func SlotID(column string, row int) string {
	return strings.ToUpper(strings.TrimSpace(column)) + strconv.Itoa(row)
}

// ParseSlotID splits an identifier such as "K3" into column and row.
func ParseSlotID(id string) (string, int, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	split := strings.IndexFunc(id, func(r rune) bool { return r >= '0' && r <= '9' })
	if split <= 0 {
		return "", 0, fmt.Errorf("slot id %q: expected column letters followed by a row number", id)
	}
	column := id[:split]
	for _, r := range column {
		if r < 'A' || r > 'Z' {
			return "", 0, fmt.Errorf("slot id %q: column must be letters A-Z", id)
		}
	}
	row, err := strconv.Atoi(id[split:])
	if err != nil || row <= 0 {
		return "", 0, fmt.Errorf("slot id %q: row must be a positive integer", id)
	}
	return column, row, nil
}
