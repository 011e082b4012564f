package grid

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"cardsorter/internal/logging"
)

// State is the topology currently in force.
type State struct {
	Grid        *Grid
	AlphabetMap AlphabetMap
	// Source names the provider the grid came from.
	Source string
	// Fallback is true when the canonical layout replaced a failing source.
	Fallback bool
	// FallbackReason is the source error behind a fallback.
	FallbackReason string
}

// ReloadObserver is notified after a reload swaps the topology.
type ReloadObserver func(State)

// Model owns the active grid and its alphabet map.
type Model struct {
	source Source
	opts   Options
	logger *slog.Logger

	mu        sync.RWMutex
	state     State
	observers []ReloadObserver
}

// NewModel constructs a model; call Load before use.
func NewModel(source Source, opts Options, logger *slog.Logger) *Model {
	if source == nil {
		source = DefaultSource{}
	}
	return &Model{
		source: source,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "grid"),
	}
}

// Load builds the grid from the source, substituting the canonical layout on
// failure. It never returns an error for source problems; the error return is
// reserved for options that make even the canonical layout impossible.
func (m *Model) Load(ctx context.Context) (State, error) {
	state, err := m.build(ctx)
	if err != nil {
		return State{}, err
	}
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	return state, nil
}

// Reload rebuilds the grid and alphabet map and notifies observers so
// dependent state (occupancy) is discarded.
func (m *Model) Reload(ctx context.Context) (State, error) {
	state, err := m.build(ctx)
	if err != nil {
		return State{}, err
	}
	m.mu.Lock()
	m.state = state
	observers := append([]ReloadObserver(nil), m.observers...)
	m.mu.Unlock()

	m.logger.Info("grid reloaded",
		logging.String("source", state.Source),
		logging.Int("slots", state.Grid.Len()),
		logging.String("error_slot", state.Grid.ErrorSlotID()),
		logging.Bool("fallback", state.Fallback),
		logging.EventType("grid_reloaded"),
	)
	for _, observer := range observers {
		observer(state)
	}
	return state, nil
}

// Current returns the topology in force. The zero State is returned before Load.
func (m *Model) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// OnReload registers an observer invoked after every Reload.
func (m *Model) OnReload(observer ReloadObserver) {
	if observer == nil {
		return
	}
	m.mu.Lock()
	m.observers = append(m.observers, observer)
	m.mu.Unlock()
}

func (m *Model) build(ctx context.Context) (State, error) {
	slots, err := m.source.Slots(ctx)
	if err == nil {
		g, buildErr := New(slots, m.opts)
		if buildErr == nil {
			return State{Grid: g, AlphabetMap: BuildAlphabetMap(g), Source: m.source.Name()}, nil
		}
		err = buildErr
	}

	logging.WarnWithContext(m.logger, "grid source unavailable; using default topology", "grid_fallback",
		logging.String("source", m.source.Name()),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check grid.source and grid.path in config.toml"),
		logging.String(logging.FieldImpact, "slots follow the canonical A-K by 1-3 layout"),
	)

	g, defErr := Default(m.opts)
	if defErr != nil && m.opts.ErrorSlot != "" {
		// The configured error slot may only exist in the failed source.
		opts := m.opts
		opts.ErrorSlot = ""
		g, defErr = Default(opts)
	}
	if defErr != nil {
		return State{}, errors.Join(err, defErr)
	}
	return State{
		Grid:           g,
		AlphabetMap:    BuildAlphabetMap(g),
		Source:         DefaultSource{}.Name(),
		Fallback:       true,
		FallbackReason: err.Error(),
	}, nil
}
