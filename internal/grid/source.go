package grid

import (
	"context"
	"fmt"

	"cardsorter/internal/config"
)

// Canonical layout used whenever no external topology is available.
const (
	DefaultColumns = 11
	DefaultRows    = 3
	// DefaultPitchX and DefaultPitchY are slot spacings in millimetres.
	DefaultPitchX = 70.0
	DefaultPitchY = 95.0
)

// Source yields raw slot specs. Capacity 0 means "use the configured default".
type Source interface {
	Name() string
	Slots(ctx context.Context) ([]Slot, error)
}

// DefaultSource produces the canonical A-K by 1-3 topology.
type DefaultSource struct{}

func (DefaultSource) Name() string { return config.GridSourceDefault }

func (DefaultSource) Slots(context.Context) ([]Slot, error) {
	return DefaultSlots(), nil
}

// DefaultSlots returns the canonical 33-slot layout in column-major order.
func DefaultSlots() []Slot {
	slots := make([]Slot, 0, DefaultColumns*DefaultRows)
	for c := 0; c < DefaultColumns; c++ {
		column := string(rune('A' + c))
		for row := 1; row <= DefaultRows; row++ {
			slots = append(slots, Slot{
				ID:     SlotID(column, row),
				Column: column,
				Row:    row,
				X:      float64(c) * DefaultPitchX,
				Y:      float64(row-1) * DefaultPitchY,
			})
		}
	}
	return slots
}

// Default builds the canonical grid with the given options.
func Default(opts Options) (*Grid, error) {
	return New(DefaultSlots(), opts)
}

// NewSource selects the configured topology provider.
func NewSource(cfg *config.Config) (Source, error) {
	switch cfg.Grid.Source {
	case config.GridSourceDefault, "":
		return DefaultSource{}, nil
	case config.GridSourceTOML:
		return TOMLSource{Path: cfg.Grid.Path}, nil
	case config.GridSourceSQLite:
		return SQLiteSource{Path: cfg.Grid.Path}, nil
	default:
		return nil, fmt.Errorf("grid source %q is not supported", cfg.Grid.Source)
	}
}

// OptionsFromConfig extracts grid construction options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{ErrorSlot: cfg.Grid.ErrorSlot, SlotCapacity: cfg.Grid.SlotCapacity}
}
