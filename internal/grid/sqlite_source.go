package grid

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteSource reads slots from a table shaped
// slots(id TEXT, col TEXT, row INTEGER, x REAL, y REAL, z REAL, capacity INTEGER).
type SQLiteSource struct {
	Path string
}

func (s SQLiteSource) Name() string { return "sqlite:" + s.Path }

func (s SQLiteSource) Slots(ctx context.Context) ([]Slot, error) {
	db, err := sql.Open("sqlite", "file:"+s.Path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open grid database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT id, COALESCE(col, ''), COALESCE(row, 0),
		COALESCE(x, 0), COALESCE(y, 0), COALESCE(z, 0), COALESCE(capacity, 0)
		FROM slots ORDER BY col, row`)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		var slot Slot
		if err := rows.Scan(&slot.ID, &slot.Column, &slot.Row, &slot.X, &slot.Y, &slot.Z, &slot.Capacity); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("grid database %s has no slots", s.Path)
	}
	return slots, nil
}
