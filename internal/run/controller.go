package run

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"cardsorter/internal/config"
	"cardsorter/internal/logging"
	"cardsorter/internal/services"
)

// Options configures a Controller.
type Options struct {
	TickInterval     time.Duration
	ThroughputWindow time.Duration
	RecentErrors     int
	// DefaultTotal applies when Start is called without an explicit total.
	DefaultTotal int
	// Clock overrides time.Now in tests.
	Clock func() time.Time
	// OnComplete runs once, outside the controller lock, when a tick brings
	// Completed up to Total.
	OnComplete func(Snapshot)
}

// OptionsFromConfig reads run settings, honouring demo cadence.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TickInterval:     cfg.TickInterval(),
		ThroughputWindow: cfg.ThroughputWindow(),
		RecentErrors:     cfg.Run.RecentErrors,
		DefaultTotal:     cfg.Run.TotalItems,
	}
}

// StartOptions parameterizes one run.
type StartOptions struct {
	// Total is the number of items expected. Zero falls back to
	// Options.DefaultTotal; a run with no total never completes on its own.
	Total  int
	Source Source
}

// Snapshot is the externally visible run state.
type Snapshot struct {
	State               State        `json:"state"`
	RunID               string       `json:"runId,omitempty"`
	Total               int          `json:"total"`
	Completed           int          `json:"completed"`
	Good                int          `json:"good"`
	Errors              int          `json:"err"`
	ThroughputPerMinute float64      `json:"throughputPerMinute"`
	ProgressPercent     float64      `json:"progressPercent"`
	CurrentItem         string       `json:"currentItemLabel,omitempty"`
	RecentErrors        []ErrorEntry `json:"recentErrors"`
	Ticking             bool         `json:"ticking"`
	LastTickError       string       `json:"lastTickError,omitempty"`
	StartedAt           time.Time    `json:"startedAt,omitzero"`
	UpdatedAt           time.Time    `json:"updatedAt,omitzero"`
	EndedAt             time.Time    `json:"endedAt,omitzero"`
}

// Controller runs the state machine and the progress tick loop.
type Controller struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	snap       Snapshot
	source     Source
	parent     context.Context
	active     bool
	generation uint64
	cancel     context.CancelFunc
	window     *throughputWindow
	sampler    *logging.ProgressSampler
	runLogger  *slog.Logger
}

// NewController constructs an idle controller.
func NewController(opts Options, logger *slog.Logger) *Controller {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.RecentErrors <= 0 {
		opts.RecentErrors = 8
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	component := logging.NewComponentLogger(logger, "run")
	return &Controller{
		opts:      opts,
		logger:    component,
		runLogger: component,
		now:       now,
		snap:      Snapshot{State: StateIdle, RecentErrors: []ErrorEntry{}},
		window:    newThroughputWindow(opts.ThroughputWindow),
		sampler:   logging.NewProgressSampler(10),
	}
}

// Start begins a new run from idle or ended. ctx bounds the lifetime of the
// tick loop across pause and resume, so callers pass a long-lived context
// rather than a request-scoped one.
func (c *Controller) Start(ctx context.Context, opts StartOptions) (Snapshot, error) {
	if opts.Source == nil {
		return Snapshot{}, services.Wrap(services.ErrValidation, "run", "start", "progress source is required", nil)
	}
	if opts.Total < 0 {
		return Snapshot{}, services.Wrap(services.ErrValidation, "run", "start", "total must not be negative", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := Next(c.snap.State, EventStart)
	if err != nil {
		return c.copyLocked(), err
	}

	total := opts.Total
	if total == 0 {
		total = c.opts.DefaultTotal
	}
	now := c.now()
	runID := uuid.NewString()
	c.snap = Snapshot{
		State:        next,
		RunID:        runID,
		Total:        total,
		RecentErrors: []ErrorEntry{},
		StartedAt:    now,
		UpdatedAt:    now,
	}
	if limiter, ok := opts.Source.(Limiter); ok {
		limiter.SetLimit(total)
	}
	c.source = opts.Source
	c.parent = ctx
	c.window.reset()
	c.sampler.Reset()
	c.runLogger = c.logger.With(logging.RunID(runID))
	c.runLogger.Info("run started",
		logging.EventType("run_started"),
		logging.Int("total", total),
		logging.Duration("tick_interval", c.opts.TickInterval),
	)
	c.startTickingLocked()
	return c.copyLocked(), nil
}

// Pause suspends ticking.
func (c *Controller) Pause() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := Next(c.snap.State, EventPause)
	if err != nil {
		return c.copyLocked(), err
	}
	c.stopTickingLocked()
	c.snap.State = next
	c.snap.UpdatedAt = c.now()
	c.runLogger.Info("run paused", logging.Int("completed", c.snap.Completed))
	return c.copyLocked(), nil
}

// Resume restarts ticking unless the run already reached its total.
func (c *Controller) Resume() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := Next(c.snap.State, EventResume)
	if err != nil {
		return c.copyLocked(), err
	}
	c.snap.State = next
	c.snap.UpdatedAt = c.now()
	if !c.finishedLocked() {
		c.startTickingLocked()
	}
	c.runLogger.Info("run resumed", logging.Int("completed", c.snap.Completed))
	return c.copyLocked(), nil
}

// End terminates ticking and freezes the counters.
func (c *Controller) End() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := Next(c.snap.State, EventEnd)
	if err != nil {
		return c.copyLocked(), err
	}
	c.stopTickingLocked()
	now := c.now()
	c.snap.State = next
	c.snap.UpdatedAt = now
	c.snap.EndedAt = now
	c.source = nil
	c.runLogger.Info("run ended",
		logging.EventType("run_ended"),
		logging.Int("completed", c.snap.Completed),
		logging.Int("good", c.snap.Good),
		logging.Int("errors", c.snap.Errors),
	)
	return c.copyLocked(), nil
}

// Apply dispatches a named event. Start is not accepted here because it
// needs StartOptions.
func (c *Controller) Apply(event Event) (Snapshot, error) {
	switch event {
	case EventPause:
		return c.Pause()
	case EventResume:
		return c.Resume()
	case EventEnd:
		return c.End()
	default:
		return c.Snapshot(), &TransitionError{From: c.Snapshot().State, Event: event}
	}
}

// Snapshot returns a copy of the current run state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

// Close stops the tick loop without changing state. Used at daemon shutdown.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTickingLocked()
}

func (c *Controller) copyLocked() Snapshot {
	out := c.snap
	out.RecentErrors = slices.Clone(c.snap.RecentErrors)
	if out.RecentErrors == nil {
		out.RecentErrors = []ErrorEntry{}
	}
	out.Ticking = c.active
	return out
}

func (c *Controller) finishedLocked() bool {
	return c.snap.Total > 0 && c.snap.Completed >= c.snap.Total
}

func (c *Controller) startTickingLocked() {
	if c.active {
		return
	}
	parent := c.parent
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	c.generation++
	c.active = true
	c.cancel = cancel
	go c.loop(ctx, c.generation, c.source)
}

// stopTickingLocked cancels the loop without waiting for an in-flight tick;
// the generation bump makes any late result stale.
func (c *Controller) stopTickingLocked() {
	if !c.active {
		return
	}
	c.generation++
	c.active = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) loop(ctx context.Context, generation uint64, source Source) {
	ticker := time.NewTicker(c.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx, generation, source)
		}
	}
}

// tick samples outside the lock and applies the result only if the loop
// that requested it is still current.
func (c *Controller) tick(ctx context.Context, generation uint64, source Source) {
	if source == nil {
		return
	}
	sample, err := source.Sample(ctx)

	c.mu.Lock()
	finished := c.tickLocked(generation, sample, err)
	snap := c.copyLocked()
	c.mu.Unlock()

	if finished && c.opts.OnComplete != nil {
		c.opts.OnComplete(snap)
	}
}

func (c *Controller) tickLocked(generation uint64, sample Sample, err error) bool {
	if generation != c.generation || !c.active || c.snap.State != StateRunning {
		return false
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false
		}
		c.snap.LastTickError = err.Error()
		logging.WarnWithContext(c.runLogger, "progress sample failed; retrying next tick", "run_tick_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the item completion source"),
			logging.String(logging.FieldImpact, "run counters are stale until the next successful tick"),
		)
		return false
	}
	return c.applyLocked(sample)
}

// applyLocked folds a sample into the snapshot and reports whether the run
// just reached its total.
func (c *Controller) applyLocked(sample Sample) bool {
	now := c.now()
	prev := c.snap.Completed

	completed := max(prev, sample.Completed)
	if c.snap.Total > 0 {
		completed = min(completed, c.snap.Total)
	}
	errCount := min(max(sample.Errors, 0), completed)

	c.snap.Completed = completed
	c.snap.Errors = errCount
	c.snap.Good = completed - errCount
	c.snap.LastTickError = ""
	c.snap.UpdatedAt = now
	if sample.CurrentItem != "" {
		c.snap.CurrentItem = sample.CurrentItem
	}
	if c.snap.Total > 0 {
		c.snap.ProgressPercent = float64(completed) / float64(c.snap.Total) * 100
	}

	c.window.add(now, completed-prev)
	c.snap.ThroughputPerMinute = c.window.perMinute(now, c.snap.StartedAt)

	for _, entry := range sample.NewErrors {
		c.snap.RecentErrors = append([]ErrorEntry{entry}, c.snap.RecentErrors...)
	}
	if len(c.snap.RecentErrors) > c.opts.RecentErrors {
		c.snap.RecentErrors = c.snap.RecentErrors[:c.opts.RecentErrors]
	}

	if c.snap.Total > 0 && c.sampler.ShouldLog(c.snap.ProgressPercent, "") {
		c.runLogger.Info("run progress",
			logging.Int("completed", completed),
			logging.Int("total", c.snap.Total),
			logging.Int("errors", errCount),
			logging.Float64("throughput_per_minute", c.snap.ThroughputPerMinute),
		)
	}
	if !c.finishedLocked() {
		return false
	}
	c.stopTickingLocked()
	c.runLogger.Info("run reached total; ticking stopped",
		logging.EventType("run_complete"),
		logging.Int("total", c.snap.Total),
	)
	return true
}
