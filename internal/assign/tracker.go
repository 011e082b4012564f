package assign

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"cardsorter/internal/grid"
	"cardsorter/internal/logging"
	"cardsorter/internal/services"
)

// ErrNoGrid is returned by Commit before a grid has been bound.
var ErrNoGrid = fmt.Errorf("%w: capacity tracker has no grid bound", services.ErrUnavailable)

const defaultJournalSize = 1024

// Placement is one committed assignment as recorded in the journal.
type Placement struct {
	Seq       uint64    `json:"seq"`
	Name      string    `json:"name"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	Result    Result    `json:"result"`
	ErrorSlot bool      `json:"errorSlot"`
	At        time.Time `json:"at"`
}

// Occupancy is a point-in-time copy of the slot counters.
type Occupancy struct {
	Counts     map[string]int `json:"counts"`
	NearFull   []string       `json:"nearFull,omitempty"`
	Full       []string       `json:"full,omitempty"`
	ErrorSlot  string         `json:"errorSlot"`
	ErrorCount int            `json:"errorCount"`
	Total      int            `json:"total"`
}

// Commit is the outcome of Tracker.Commit.
type Commit struct {
	Result    Result    `json:"result"`
	Occupancy Occupancy `json:"occupancy"`
	Seq       uint64    `json:"seq"`
}

// Totals are lifetime counters that survive Reset and Rebind.
type Totals struct {
	Commits      uint64 `json:"commits"`
	ErrorCommits uint64 `json:"errorCommits"`
	LastSeq      uint64 `json:"lastSeq"`
}

// Tracker owns per-slot occupancy and enforces capacity on commit.
type Tracker struct {
	policy Policy
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	grid     *grid.Grid
	alphabet grid.AlphabetMap
	counts   map[string]int
	journal  []Placement
	capacity int
	totals   Totals
	onFull   func(slotID string, occ Occupancy)
}

// TrackerOption customizes a Tracker.
type TrackerOption func(*Tracker)

// WithClock overrides the time source used to stamp placements.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithJournalSize bounds the placement journal.
func WithJournalSize(size int) TrackerOption {
	return func(t *Tracker) {
		if size > 0 {
			t.capacity = size
		}
	}
}

// WithFullObserver registers fn to run after a commit fills a bounded slot to
// capacity. It is called without the tracker lock held.
func WithFullObserver(fn func(slotID string, occ Occupancy)) TrackerOption {
	return func(t *Tracker) { t.onFull = fn }
}

// NewTracker constructs an unbound tracker. Call Rebind before committing.
func NewTracker(policy Policy, logger *slog.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		policy:   policy,
		logger:   logging.NewComponentLogger(logger, "tracker"),
		now:      time.Now,
		capacity: defaultJournalSize,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Rebind attaches a (new) grid and discards all occupancy.
func (t *Tracker) Rebind(state grid.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.grid = state.Grid
	t.alphabet = state.AlphabetMap
	t.counts = make(map[string]int, state.Grid.Len())
	for _, slot := range state.Grid.Slots() {
		t.counts[slot.ID] = 0
	}
	t.logger.Debug("tracker bound to grid",
		logging.Int("slots", state.Grid.Len()),
		logging.String("error_slot", state.Grid.ErrorSlotID()),
	)
}

// Policy returns the thresholds in force.
func (t *Tracker) Policy() Policy {
	return t.policy
}

// AlphabetMap returns the map the tracker routes with.
func (t *Tracker) AlphabetMap() grid.AlphabetMap {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alphabet
}

// Preview computes the would-be result against the bound map without
// changing occupancy.
func (t *Tracker) Preview(req Request) (Result, error) {
	alphabet := t.AlphabetMap()
	if alphabet.IsZero() {
		return Result{}, ErrNoGrid
	}
	return Preview(req.Name, req.Confidence, alphabet, t.policy), nil
}

// Commit assigns req to a slot and records the placement. A previewed
// target at capacity is rolled back and the item goes to the Error Slot
// with an overflow reason.
func (t *Tracker) Commit(req Request) (Commit, error) {
	commit, filled, err := t.commit(req)
	if err != nil {
		return Commit{}, err
	}
	if filled && t.onFull != nil {
		t.onFull(commit.Result.Cell, commit.Occupancy)
	}
	return commit, nil
}

func (t *Tracker) commit(req Request) (Commit, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.grid == nil {
		return Commit{}, false, ErrNoGrid
	}

	result := Preview(req.Name, req.Confidence, t.alphabet, t.policy)
	errorSlot := t.grid.ErrorSlotID()
	filled := false
	if result.Cell != errorSlot {
		t.counts[result.Cell]++
		slot, _ := t.grid.Slot(result.Cell)
		switch {
		case slot.Bounded() && t.counts[result.Cell] > slot.Capacity:
			t.counts[result.Cell]--
			result = Result{Cell: errorSlot, Reason: Overflow(result.FirstLetter), FirstLetter: result.FirstLetter}
		case slot.Bounded() && t.counts[result.Cell] == slot.Capacity:
			filled = true
		}
	}
	if result.Cell == errorSlot {
		t.counts[errorSlot]++
	}

	placement := t.recordLocked(req, result)
	t.logger.Debug("item placed",
		logging.Slot(result.Cell),
		logging.Item(req.Name),
		logging.Reason(result.Reason),
		logging.Float64("confidence", req.Confidence),
	)
	return Commit{Result: result, Occupancy: t.snapshotLocked(), Seq: placement.Seq}, filled, nil
}

func (t *Tracker) recordLocked(req Request, result Result) Placement {
	t.totals.LastSeq++
	t.totals.Commits++
	isError := result.Cell == t.grid.ErrorSlotID()
	if isError {
		t.totals.ErrorCommits++
	}
	placement := Placement{
		Seq:       t.totals.LastSeq,
		Name:      req.Name,
		Thumbnail: req.Thumbnail,
		Result:    result,
		ErrorSlot: isError,
		At:        t.now(),
	}
	if len(t.journal) == t.capacity {
		copy(t.journal, t.journal[1:])
		t.journal = t.journal[:t.capacity-1]
	}
	t.journal = append(t.journal, placement)
	return placement
}

// Reset zeroes every occupancy counter in one step. It is idempotent and
// leaves the journal and lifetime totals intact.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.counts {
		t.counts[id] = 0
	}
	t.logger.Info("occupancy reset", logging.EventType("counts_reset"))
}

// Snapshot returns a copy of the occupancy counters.
func (t *Tracker) Snapshot() Occupancy {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Occupancy {
	occ := Occupancy{Counts: make(map[string]int, len(t.counts))}
	if t.grid == nil {
		return occ
	}
	occ.ErrorSlot = t.grid.ErrorSlotID()
	for _, slot := range t.grid.Slots() {
		count := t.counts[slot.ID]
		occ.Counts[slot.ID] = count
		occ.Total += count
		if !slot.Bounded() {
			continue
		}
		switch {
		case count >= slot.Capacity:
			occ.Full = append(occ.Full, slot.ID)
		case t.policy.NearFull > 0 && float64(count) >= t.policy.NearFull*float64(slot.Capacity):
			occ.NearFull = append(occ.NearFull, slot.ID)
		}
	}
	occ.ErrorCount = t.counts[occ.ErrorSlot]
	return occ
}

// Totals returns lifetime commit counters.
func (t *Tracker) Totals() Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totals
}

// Since returns journaled placements with a sequence greater than seq, oldest
// first. Placements that have rolled out of the bounded journal are not
// returned; Totals still counts them.
func (t *Tracker) Since(seq uint64) []Placement {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sinceLocked(seq)
}

// Journal returns Since(seq) together with the totals read under the same
// lock, so placements that rolled out of the journal can be counted exactly.
func (t *Tracker) Journal(seq uint64) ([]Placement, Totals) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sinceLocked(seq), t.totals
}

func (t *Tracker) sinceLocked(seq uint64) []Placement {
	idx, _ := slices.BinarySearchFunc(t.journal, seq+1, func(p Placement, target uint64) int {
		switch {
		case p.Seq < target:
			return -1
		case p.Seq > target:
			return 1
		default:
			return 0
		}
	})
	return slices.Clone(t.journal[idx:])
}
