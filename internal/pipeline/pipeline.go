package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cardsorter/internal/assign"
	"cardsorter/internal/config"
	"cardsorter/internal/logging"
	"cardsorter/internal/services"
)

var (
	// ErrAutoActive is returned by Step while the auto loop owns processing.
	ErrAutoActive = fmt.Errorf("%w: auto processing is active", services.ErrConflict)
	// ErrStepInFlight is returned when another step has not finished.
	ErrStepInFlight = fmt.Errorf("%w: a step is already in progress", services.ErrConflict)
	// ErrNoPending is returned by Step when nothing is queued.
	ErrNoPending = fmt.Errorf("%w: no pending items", services.ErrNotFound)
	// ErrQueueFull is returned when an enqueue would exceed the pending limit.
	ErrQueueFull = fmt.Errorf("%w: pending queue is full", services.ErrConflict)
)

// Committer assigns an item to a slot. *assign.Tracker satisfies it.
type Committer interface {
	Commit(req assign.Request) (assign.Commit, error)
}

// Item is one identified card awaiting placement.
type Item struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Confidence float64   `json:"confidence"`
	Thumbnail  string    `json:"thumbnail,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// StepResult describes one processed item.
type StepResult struct {
	Item      Item          `json:"item"`
	Commit    assign.Commit `json:"commit"`
	MoveError string        `json:"moveError,omitempty"`
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	Pending      int    `json:"pending"`
	AutoActive   bool   `json:"autoActive"`
	Stepping     bool   `json:"stepping"`
	Processed    int    `json:"processed"`
	MoveFailures int    `json:"moveFailures"`
	LastError    string `json:"lastError,omitempty"`
}

// Options configures a Pipeline.
type Options struct {
	StepInterval time.Duration
	MaxPending   int
}

// OptionsFromConfig reads the pipeline section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{StepInterval: cfg.StepInterval(), MaxPending: cfg.Pipeline.MaxPending}
}

// Pipeline queues items and places them one at a time.
type Pipeline struct {
	committer Committer
	mover     Mover
	logger    *slog.Logger
	opts      Options

	mu         sync.Mutex
	pending    []Item
	active     bool
	manual     bool // a Step call owns an item
	autoBusy   bool // an auto loop, possibly a cancelled one, owns an item
	generation uint64
	cancel     context.CancelFunc
	processed  int
	failures   int
	lastErr    string
}

// New constructs a pipeline. A nil mover records moves in the log only.
func New(committer Committer, mover Mover, opts Options, logger *slog.Logger) *Pipeline {
	if opts.StepInterval <= 0 {
		opts.StepInterval = 500 * time.Millisecond
	}
	logger = logging.NewComponentLogger(logger, "pipeline")
	if mover == nil {
		mover = NewLogMover(logger)
	}
	return &Pipeline{committer: committer, mover: mover, logger: logger, opts: opts}
}

// Enqueue appends items in order and returns the pending count. Missing ids
// are generated; names are trimmed.
func (p *Pipeline) Enqueue(items ...Item) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opts.MaxPending > 0 && len(p.pending)+len(items) > p.opts.MaxPending {
		return len(p.pending), ErrQueueFull
	}
	now := time.Now()
	for _, item := range items {
		item.Name = strings.TrimSpace(item.Name)
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if item.EnqueuedAt.IsZero() {
			item.EnqueuedAt = now
		}
		p.pending = append(p.pending, item)
	}
	return len(p.pending), nil
}

// Pending returns the number of queued items.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Clear drops every pending item and returns how many were removed.
func (p *Pipeline) Clear() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.pending)
	p.pending = nil
	return n
}

// Status reports queue depth, mode flags, and counters.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Pending:      len(p.pending),
		AutoActive:   p.active,
		Stepping:     p.manual || p.autoBusy,
		Processed:    p.processed,
		MoveFailures: p.failures,
		LastError:    p.lastErr,
	}
}

// Step processes exactly one pending item.
func (p *Pipeline) Step(ctx context.Context) (StepResult, error) {
	p.mu.Lock()
	switch {
	case p.active:
		p.mu.Unlock()
		return StepResult{}, ErrAutoActive
	case p.manual || p.autoBusy:
		p.mu.Unlock()
		return StepResult{}, ErrStepInFlight
	}
	item, ok := p.popLocked()
	if !ok {
		p.mu.Unlock()
		return StepResult{}, ErrNoPending
	}
	p.manual = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.manual = false
		p.mu.Unlock()
	}()
	return p.process(ctx, item)
}

// StartAuto begins interval processing. It is a no-op returning false when
// the loop is already active or a manual step is in flight. An item still
// owned by a previously stopped loop does not block a restart; the new loop
// skips ticks until that item finishes.
func (p *Pipeline) StartAuto(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active || p.manual {
		return false
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.generation++
	p.active = true
	p.cancel = cancel
	go p.autoLoop(loopCtx, p.generation)
	p.logger.Info("auto processing started",
		logging.Duration("interval", p.opts.StepInterval),
		logging.Int("pending", len(p.pending)),
	)
	return true
}

// StopAuto cancels the auto loop without waiting for an in-flight item. It
// returns false when the loop was not running.
func (p *Pipeline) StopAuto() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return false
	}
	p.active = false
	p.generation++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.logger.Info("auto processing stopped", logging.Int("pending", len(p.pending)))
	return true
}

func (p *Pipeline) autoLoop(ctx context.Context, generation uint64) {
	ticker := time.NewTicker(p.opts.StepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		p.mu.Lock()
		if generation != p.generation {
			p.mu.Unlock()
			return
		}
		if p.manual || p.autoBusy {
			p.mu.Unlock()
			continue
		}
		item, ok := p.popLocked()
		if ok {
			p.autoBusy = true
		}
		p.mu.Unlock()
		if !ok {
			continue
		}

		if _, err := p.process(ctx, item); err != nil && !errors.Is(err, context.Canceled) {
			logging.WarnWithContext(p.logger, "auto step failed", "pipeline_step_failed",
				logging.Error(err),
				logging.Item(item.Name),
				logging.String(logging.FieldImpact, "item returned to the front of the queue"),
			)
		}
		p.mu.Lock()
		p.autoBusy = false
		p.mu.Unlock()
	}
}

func (p *Pipeline) popLocked() (Item, bool) {
	if len(p.pending) == 0 {
		return Item{}, false
	}
	item := p.pending[0]
	p.pending = p.pending[1:]
	return item, true
}

// process commits first so occupancy stays authoritative even when the move
// fails; a failed commit puts the item back at the head of the queue.
func (p *Pipeline) process(ctx context.Context, item Item) (StepResult, error) {
	result := StepResult{Item: item}
	commit, err := p.committer.Commit(assign.Request{Name: item.Name, Confidence: item.Confidence, Thumbnail: item.Thumbnail})
	if err != nil {
		p.mu.Lock()
		p.pending = append([]Item{item}, p.pending...)
		p.lastErr = err.Error()
		p.mu.Unlock()
		return result, err
	}
	result.Commit = commit

	logger := p.logger.With(logging.Slot(commit.Result.Cell))
	if moveErr := p.mover.MoveTo(ctx, commit.Result.Cell); moveErr != nil {
		result.MoveError = moveErr.Error()
		logging.ErrorWithContext(logger, "move failed", "move_failed",
			logging.Error(moveErr),
			logging.Item(item.Name),
			logging.String(logging.FieldErrorHint, "check the motion controller; the item stays committed"),
		)
	}

	p.mu.Lock()
	p.processed++
	if moveErr := result.MoveError; moveErr != "" {
		p.failures++
		p.lastErr = moveErr
	}
	p.mu.Unlock()

	logger.Info("item processed",
		logging.Item(item.Name),
		logging.Reason(commit.Result.Reason),
	)
	return result, nil
}
