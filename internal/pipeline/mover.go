package pipeline

import (
	"context"
	"log/slog"

	"cardsorter/internal/logging"
)

// Mover carries an item to a slot.
type Mover interface {
	MoveTo(ctx context.Context, slotID string) error
}

// MoverFunc adapts a function to Mover.
type MoverFunc func(ctx context.Context, slotID string) error

// MoveTo implements Mover.
func (f MoverFunc) MoveTo(ctx context.Context, slotID string) error { return f(ctx, slotID) }

// LogMover records moves in the log without driving hardware.
type LogMover struct {
	logger *slog.Logger
}

// NewLogMover constructs a LogMover.
func NewLogMover(logger *slog.Logger) *LogMover {
	return &LogMover{logger: logging.NewComponentLogger(logger, "mover")}
}

// MoveTo implements Mover.
func (m *LogMover) MoveTo(ctx context.Context, slotID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.Info("move", logging.Slot(slotID))
	return nil
}
