package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"cardsorter/internal/assign"
	"cardsorter/internal/batch"
	"cardsorter/internal/catalog"
	"cardsorter/internal/config"
	"cardsorter/internal/grid"
	"cardsorter/internal/logging"
	"cardsorter/internal/notifications"
	"cardsorter/internal/pipeline"
	"cardsorter/internal/run"
	"cardsorter/internal/services"
)

// demoErrorRate is the share of simulated items routed to the Error Slot.
const demoErrorRate = 0.1

// ErrCatalogUnavailable is returned by Identify when no card list is loaded.
var ErrCatalogUnavailable = fmt.Errorf("%w: identification catalog not loaded", services.ErrUnavailable)

// Daemon owns the sorting state and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	logPath string
	logHub  *logging.StreamHub

	lockPath string
	lock     *flock.Flock

	model    *grid.Model
	tracker  *assign.Tracker
	runs     *run.Controller
	pipeline *pipeline.Pipeline
	api      *apiServer
	notify   *notifier

	catalogMu sync.RWMutex
	catalog   *catalog.Catalog

	startMu sync.Mutex
	running atomic.Bool
	liveRun atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Option customizes daemon construction.
type Option func(*options)

type options struct {
	logPath string
	logHub  *logging.StreamHub
	mover   pipeline.Mover
	source  grid.Source
	catalog *catalog.Catalog
	notify  notifications.Service
}

// WithLogStream attaches the daemon log file path and in-memory log hub.
func WithLogStream(path string, hub *logging.StreamHub) Option {
	return func(o *options) {
		o.logPath = path
		o.logHub = hub
	}
}

// WithMover replaces the logging mover with a motion collaborator.
func WithMover(m pipeline.Mover) Option {
	return func(o *options) { o.mover = m }
}

// WithGridSource overrides the configured topology provider.
func WithGridSource(src grid.Source) Option {
	return func(o *options) { o.source = src }
}

// WithCatalog supplies a preloaded catalog instead of reading catalog.path.
func WithCatalog(c *catalog.Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithNotifier replaces the ntfy service built from config.
func WithNotifier(svc notifications.Service) Option {
	return func(o *options) { o.notify = svc }
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LockFilePath string
	LogPath      string
	APIBind      string
	Grid         grid.State
	CatalogCards int
	Policy       assign.Policy
	Run          run.Snapshot
	Occupancy    assign.Occupancy
	Pipeline     pipeline.Status
}

// RunRequest parameterizes StartRun.
type RunRequest struct {
	Total int
	// Demo overrides run.demo for this run when set.
	Demo *bool
}

// IdentifyAction selects what Identify does with a recognised card.
type IdentifyAction string

const (
	ActionPreview IdentifyAction = "preview"
	ActionCommit  IdentifyAction = "commit"
	ActionEnqueue IdentifyAction = "enqueue"
)

// IdentifyRequest carries the OCR text for one card.
type IdentifyRequest struct {
	Name      string
	Oracle    string
	Collector string
	Thumbnail string
	Action    IdentifyAction
}

// IdentifyResult pairs the catalog match with the routing it produced.
type IdentifyResult struct {
	Identification catalog.Identification
	Name           string
	Confidence     float64
	Action         IdentifyAction
	Result         assign.Result
	// Occupancy is set for ActionCommit.
	Occupancy *assign.Occupancy
	// Pending is set for ActionEnqueue.
	Pending int
}

// New constructs a daemon with initialized collaborators. The grid is not
// loaded until Start.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	source := o.source
	if source == nil {
		var err error
		source, err = grid.NewSource(cfg)
		if err != nil {
			return nil, fmt.Errorf("grid source: %w", err)
		}
	}

	logPath := o.logPath
	if logPath == "" {
		logPath = filepath.Join(cfg.Paths.LogDir, "sorter.log")
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "sorter.lock")

	svc := o.notify
	if svc == nil {
		svc = notifications.NewService(cfg)
	}
	notify := newNotifier(svc, cfg.Grid.Source, time.Duration(cfg.Notifications.RequestTimeoutSeconds)*time.Second, logger)

	tracker := assign.NewTracker(assign.PolicyFromConfig(cfg), logger, assign.WithFullObserver(notify.slotFull))
	model := grid.NewModel(source, grid.OptionsFromConfig(cfg), logger)
	model.OnReload(tracker.Rebind)
	model.OnReload(notify.gridLoaded)

	runOpts := run.OptionsFromConfig(cfg)
	runOpts.OnComplete = notify.runCompleted

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		logPath:  logPath,
		logHub:   o.logHub,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		model:    model,
		tracker:  tracker,
		runs:     run.NewController(runOpts, logger),
		pipeline: pipeline.New(tracker, o.mover, pipeline.OptionsFromConfig(cfg), logger),
		catalog:  o.catalog,
		notify:   notify,
	}

	apiSrv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = apiSrv
	return d, nil
}

// Start acquires the daemon lock, loads the grid and catalog, and starts the
// HTTP API when configured.
func (d *Daemon) Start(ctx context.Context) error {
	d.startMu.Lock()
	defer d.startMu.Unlock()
	if d.running.Load() {
		return fmt.Errorf("%w: daemon already running", services.ErrConflict)
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another sorter daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	state, err := d.model.Load(d.ctx)
	if err != nil {
		d.abortStartLocked()
		return fmt.Errorf("load grid: %w", err)
	}
	d.tracker.Rebind(state)
	d.notify.gridLoaded(state)
	d.loadCatalog(d.ctx)

	if err := d.api.start(d.ctx); err != nil {
		d.abortStartLocked()
		return err
	}

	d.running.Store(true)
	d.logger.Info("sorter daemon started",
		logging.EventType("daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("grid_source", state.Source),
		logging.Int("slots", state.Grid.Len()),
		logging.String("error_slot", state.Grid.ErrorSlotID()),
	)
	return nil
}

func (d *Daemon) abortStartLocked() {
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx, d.cancel = nil, nil
	_ = d.lock.Unlock()
}

func (d *Daemon) loadCatalog(ctx context.Context) {
	d.catalogMu.RLock()
	preloaded := d.catalog != nil
	d.catalogMu.RUnlock()
	if preloaded || strings.TrimSpace(d.cfg.Catalog.Path) == "" {
		return
	}
	c, err := catalog.Load(ctx, &d.cfg.Catalog)
	if err != nil {
		logging.WarnWithContext(d.logger, "catalog load failed", "catalog_load_failed",
			logging.Error(err),
			logging.String("path", d.cfg.Catalog.Path),
			logging.String(logging.FieldErrorHint, "check catalog.path points at a JSON, NDJSON or SQLite card list"),
			logging.String(logging.FieldImpact, "identify requests are rejected until the catalog loads"),
		)
		return
	}
	d.catalogMu.Lock()
	d.catalog = c
	d.catalogMu.Unlock()
	d.logger.Info("catalog loaded", logging.String("path", d.cfg.Catalog.Path), logging.Int("cards", c.Len()))
}

// Stop halts the run loop and pipeline and releases the daemon lock.
func (d *Daemon) Stop() {
	d.startMu.Lock()
	defer d.startMu.Unlock()
	if !d.running.Load() {
		return
	}

	d.pipeline.StopAuto()
	d.runs.Close()
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("sorter daemon stopped", logging.EventType("daemon_stopped"))
}

// Close releases resources held by the daemon and waits for pending
// notifications.
func (d *Daemon) Close() error {
	d.Stop()
	d.notify.wait()
	return nil
}

// rootContext returns the context bounding background loops, or nil when
// the daemon is not started.
func (d *Daemon) rootContext() context.Context {
	d.startMu.Lock()
	defer d.startMu.Unlock()
	return d.ctx
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// LogStream returns the in-memory log hub, if any.
func (d *Daemon) LogStream() *logging.StreamHub {
	return d.logHub
}

// Preview computes an assignment without changing occupancy.
func (d *Daemon) Preview(_ context.Context, req assign.Request) (assign.Result, error) {
	return d.tracker.Preview(req)
}

// Commit places an item and returns the updated occupancy.
func (d *Daemon) Commit(ctx context.Context, req assign.Request) (assign.Commit, error) {
	commit, err := d.tracker.Commit(req)
	if err != nil {
		return assign.Commit{}, err
	}
	logging.WithContext(ctx, d.logger).Info("item committed",
		logging.Slot(commit.Result.Cell),
		logging.Item(req.Name),
		logging.Reason(commit.Result.Reason),
	)
	return commit, nil
}

// ResetCounts zeroes every slot counter.
func (d *Daemon) ResetCounts(context.Context) assign.Occupancy {
	d.tracker.Reset()
	return d.tracker.Snapshot()
}

// Occupancy returns the current slot counters.
func (d *Daemon) Occupancy() assign.Occupancy {
	return d.tracker.Snapshot()
}

// Grid returns the active topology and current counters.
func (d *Daemon) Grid() (grid.State, assign.Occupancy) {
	return d.model.Current(), d.tracker.Snapshot()
}

// AlphabetMap returns the letter routing table in force.
func (d *Daemon) AlphabetMap() (grid.AlphabetMap, error) {
	m := d.tracker.AlphabetMap()
	if m.IsZero() {
		return grid.AlphabetMap{}, assign.ErrNoGrid
	}
	return m, nil
}

// ReloadGrid rebuilds the topology from its source. Occupancy is discarded.
func (d *Daemon) ReloadGrid(ctx context.Context) (grid.State, error) {
	if !d.running.Load() {
		return grid.State{}, fmt.Errorf("%w: daemon not started", services.ErrUnavailable)
	}
	return d.model.Reload(ctx)
}

// StartRun begins a run. Demo runs tick a simulator; live runs follow the
// tracker and start the pipeline auto loop.
func (d *Daemon) StartRun(_ context.Context, req RunRequest) (run.Snapshot, error) {
	root := d.rootContext()
	if root == nil {
		return d.runs.Snapshot(), fmt.Errorf("%w: daemon not started", services.ErrUnavailable)
	}
	demo := d.cfg.Run.Demo
	if req.Demo != nil {
		demo = *req.Demo
	}

	total := req.Total
	var source run.Source
	if demo {
		errorSlot := d.tracker.AlphabetMap().ErrorSlot()
		source = run.NewSimulator(uint64(d.cfg.Run.DemoSeed), errorSlot, demoErrorRate)
	} else {
		source = run.NewTrackerSource(d.tracker)
		if total == 0 && d.cfg.Run.TotalItems == 0 {
			total = d.pipeline.Pending()
		}
	}

	snap, err := d.runs.Start(root, run.StartOptions{Total: total, Source: source})
	if err != nil {
		return snap, err
	}
	d.liveRun.Store(!demo)
	if !demo {
		d.pipeline.StartAuto(root)
	}
	return snap, nil
}

// PauseRun suspends ticking and the pipeline auto loop.
func (d *Daemon) PauseRun(context.Context) (run.Snapshot, error) {
	snap, err := d.runs.Pause()
	if err == nil {
		d.pipeline.StopAuto()
	}
	return snap, err
}

// ResumeRun restarts ticking and, for live runs, the pipeline. When auto
// processing cannot restart (a manual step is still in flight) the run is
// paused again and a conflict is returned.
func (d *Daemon) ResumeRun(context.Context) (run.Snapshot, error) {
	snap, err := d.runs.Resume()
	if err != nil || !d.liveRun.Load() {
		return snap, err
	}
	root := d.rootContext()
	if root != nil && (d.pipeline.StartAuto(root) || d.pipeline.Status().AutoActive) {
		return snap, nil
	}
	if paused, pauseErr := d.runs.Pause(); pauseErr == nil {
		snap = paused
	}
	return snap, services.Wrap(services.ErrConflict, "pipeline", "resume",
		"auto processing could not restart; retry once the current step finishes", nil)
}

// EndRun stops the run and the pipeline auto loop.
func (d *Daemon) EndRun(context.Context) (run.Snapshot, error) {
	snap, err := d.runs.End()
	if err == nil {
		d.pipeline.StopAuto()
		d.notify.runEnded(snap)
	}
	return snap, err
}

// RunStatus returns the latest run snapshot.
func (d *Daemon) RunStatus() run.Snapshot {
	return d.runs.Snapshot()
}

// Step processes one pending item.
func (d *Daemon) Step(ctx context.Context) (pipeline.StepResult, error) {
	return d.pipeline.Step(ctx)
}

// Enqueue appends identified items to the pipeline.
func (d *Daemon) Enqueue(_ context.Context, items ...pipeline.Item) (int, error) {
	for i, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return d.pipeline.Pending(), services.Wrap(services.ErrValidation, "pipeline", "enqueue",
				fmt.Sprintf("item %d has no name", i), nil)
		}
	}
	return d.pipeline.Enqueue(items...)
}

// PipelineStatus returns pipeline counters.
func (d *Daemon) PipelineStatus() pipeline.Status {
	return d.pipeline.Status()
}

// Identify matches OCR text against the catalog and routes the result.
func (d *Daemon) Identify(ctx context.Context, req IdentifyRequest) (IdentifyResult, error) {
	if strings.TrimSpace(req.Name) == "" && strings.TrimSpace(req.Collector) == "" {
		return IdentifyResult{}, services.Wrap(services.ErrValidation, "catalog", "identify", "name or collector number is required", nil)
	}
	action := req.Action
	if action == "" {
		action = ActionPreview
	}
	switch action {
	case ActionPreview, ActionCommit, ActionEnqueue:
	default:
		return IdentifyResult{}, services.Wrap(services.ErrValidation, "catalog", "identify",
			fmt.Sprintf("unknown action %q", action), nil)
	}

	d.catalogMu.RLock()
	c := d.catalog
	d.catalogMu.RUnlock()
	if c.Len() == 0 {
		return IdentifyResult{}, ErrCatalogUnavailable
	}

	id := c.Identify(catalog.Query{Name: req.Name, Oracle: req.Oracle, Collector: req.Collector})
	out := IdentifyResult{
		Identification: id,
		Name:           id.Name(req.Name),
		Confidence:     id.Confidence(),
		Action:         action,
	}
	assignReq := assign.Request{Name: out.Name, Confidence: out.Confidence, Thumbnail: req.Thumbnail}

	switch action {
	case ActionCommit:
		commit, err := d.Commit(ctx, assignReq)
		if err != nil {
			return IdentifyResult{}, err
		}
		out.Result = commit.Result
		out.Occupancy = &commit.Occupancy
	case ActionEnqueue:
		result, err := d.tracker.Preview(assignReq)
		if err != nil {
			return IdentifyResult{}, err
		}
		pending, err := d.pipeline.Enqueue(pipeline.Item{Name: out.Name, Confidence: out.Confidence, Thumbnail: req.Thumbnail})
		if err != nil {
			return IdentifyResult{}, err
		}
		out.Result = result
		out.Pending = pending
	default:
		result, err := d.tracker.Preview(assignReq)
		if err != nil {
			return IdentifyResult{}, err
		}
		out.Result = result
	}

	logging.WithContext(ctx, d.logger).Debug("card identified",
		logging.String("ocr_name", req.Name),
		logging.String("name", out.Name),
		logging.String("method", string(id.Method)),
		logging.Float64("score", id.Score),
		logging.Slot(out.Result.Cell),
	)
	return out, nil
}

// EvaluateBatch compares recorded identifications with expectations. When
// fill is set, records without an assigned cell are previewed against the
// active map.
func (d *Daemon) EvaluateBatch(_ context.Context, records []batch.Record, fill bool) (batch.Report, error) {
	if fill {
		alphabet := d.tracker.AlphabetMap()
		if alphabet.IsZero() {
			return batch.Report{}, assign.ErrNoGrid
		}
		records = batch.FillAssignments(records, alphabet, d.tracker.Policy())
	}
	return batch.Evaluate(records), nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) Status {
	d.catalogMu.RLock()
	cards := d.catalog.Len()
	d.catalogMu.RUnlock()
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		LogPath:      d.logPath,
		APIBind:      d.api.address(),
		Grid:         d.model.Current(),
		CatalogCards: cards,
		Policy:       d.tracker.Policy(),
		Run:          d.runs.Snapshot(),
		Occupancy:    d.tracker.Snapshot(),
		Pipeline:     d.pipeline.Status(),
	}
}
