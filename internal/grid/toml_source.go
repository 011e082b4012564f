package grid

import (
	"context"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// TOMLSource reads slots from a file of [[slots]] tables:
//
//	[[slots]]
//	id = "A1"
//	x = 0.0
//	y = 0.0
//	capacity = 3
type TOMLSource struct {
	Path string
}

type tomlGrid struct {
	Slots []Slot `toml:"slots"`
}

func (s TOMLSource) Name() string { return "toml:" + s.Path }

func (s TOMLSource) Slots(ctx context.Context) ([]Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read grid file: %w", err)
	}
	var doc tomlGrid
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse grid file %s: %w", s.Path, err)
	}
	if len(doc.Slots) == 0 {
		return nil, fmt.Errorf("grid file %s defines no slots", s.Path)
	}
	return doc.Slots, nil
}
