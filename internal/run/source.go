package run

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"cardsorter/internal/assign"
)

// ErrorEntry is one item routed to the Error Slot.
type ErrorEntry struct {
	SlotID    string `json:"id"`
	Reason    string `json:"reason"`
	Thumbnail string `json:"thumbnailRef,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Sample is a cumulative progress reading for the current run.
type Sample struct {
	// Completed counts items finished since the run started.
	Completed int
	// Errors counts completed items that landed in the Error Slot.
	Errors int
	// CurrentItem labels the most recent item, if any.
	CurrentItem string
	// NewErrors lists Error Slot placements observed since the previous sample,
	// oldest first.
	NewErrors []ErrorEntry
}

// Source reports run progress. Sample is called from the tick loop only.
type Source interface {
	Sample(ctx context.Context) (Sample, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Sample, error)

// Sample implements Source.
func (f SourceFunc) Sample(ctx context.Context) (Sample, error) { return f(ctx) }

// Limiter is implemented by sources that can stop counting once a run's
// total is reached. The controller calls SetLimit when the run starts.
type Limiter interface {
	SetLimit(total int)
}

// TrackerSource derives progress from the capacity tracker's placement
// journal. Counters are relative to the tracker totals observed at
// construction, so resetting occupancy mid-run does not rewind progress.
// With a limit set, placements beyond the run total are ignored.
type TrackerSource struct {
	tracker *assign.Tracker

	mu        sync.Mutex
	prev      assign.Totals
	lastSeq   uint64
	limit     int
	completed int
	errors    int
	current   string
}

// NewTrackerSource snapshots the tracker totals as the run baseline.
func NewTrackerSource(tracker *assign.Tracker) *TrackerSource {
	totals := tracker.Totals()
	return &TrackerSource{tracker: tracker, prev: totals, lastSeq: totals.LastSeq}
}

// SetLimit implements Limiter. Zero or less counts every placement.
func (s *TrackerSource) SetLimit(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = total
}

func (s *TrackerSource) room() int {
	if s.limit <= 0 {
		return math.MaxInt
	}
	return max(s.limit-s.completed, 0)
}

// Sample implements Source.
func (s *TrackerSource) Sample(context.Context) (Sample, error) {
	if s == nil || s.tracker == nil {
		return Sample{}, fmt.Errorf("tracker source not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	placements, totals := s.tracker.Journal(s.lastSeq)
	newCommits := int(totals.Commits - s.prev.Commits)
	newErrors := int(totals.ErrorCommits - s.prev.ErrorCommits)

	// Placements that rolled out of the journal are older than the ones
	// returned, so they are counted first.
	if missed := newCommits - len(placements); missed > 0 {
		missedErrors := newErrors
		for _, p := range placements {
			if p.ErrorSlot {
				missedErrors--
			}
		}
		take := min(missed, s.room())
		s.completed += take
		s.errors += min(max(missedErrors, 0), take)
	}

	var fresh []ErrorEntry
	for _, p := range placements {
		if s.room() == 0 {
			break
		}
		s.completed++
		s.current = p.Name
		if p.ErrorSlot {
			s.errors++
			fresh = append(fresh, ErrorEntry{
				SlotID:    p.Result.Cell,
				Reason:    p.Result.Reason,
				Thumbnail: p.Thumbnail,
				Name:      p.Name,
			})
		}
	}
	s.prev = totals
	s.lastSeq = totals.LastSeq
	return Sample{
		Completed:   s.completed,
		Errors:      s.errors,
		CurrentItem: s.current,
		NewErrors:   fresh,
	}, nil
}

var demoNames = []string{
	"Island", "Llanowar Elves", "Counterspell", "Serra Angel", "Lightning Bolt",
	"Dark Ritual", "Giant Growth", "Wrath of God", "Birds of Paradise", "Shivan Dragon",
	"Ornithopter", "Zombie Token", "Mox Pearl", "Kird Ape", "Hypnotic Specter",
}

// Simulator produces synthetic progress for demo mode. It advances by one
// item per sample and routes roughly ErrorRate of them to the Error Slot.
type Simulator struct {
	errorSlot string
	errorRate float64

	mu        sync.Mutex
	rng       *rand.Rand
	completed int
	errors    int
	current   string
}

// NewSimulator seeds a demo source. The same seed yields the same sequence.
func NewSimulator(seed uint64, errorSlot string, errorRate float64) *Simulator {
	if errorRate < 0 || errorRate > 1 {
		errorRate = 0.1
	}
	return &Simulator{
		errorSlot: errorSlot,
		errorRate: errorRate,
		rng:       rand.New(rand.NewPCG(seed, seed^0x5eed)),
	}
}

// Sample implements Source.
func (s *Simulator) Sample(context.Context) (Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completed++
	s.current = demoNames[s.rng.IntN(len(demoNames))]
	var fresh []ErrorEntry
	if s.rng.Float64() < s.errorRate {
		s.errors++
		reason := assign.ReasonDivertLowConfidence
		if s.rng.IntN(2) == 0 {
			reason = assign.Overflow(assign.FirstLetter(s.current))
		}
		fresh = append(fresh, ErrorEntry{SlotID: s.errorSlot, Reason: reason, Name: s.current})
	}
	return Sample{
		Completed:   s.completed,
		Errors:      s.errors,
		CurrentItem: s.current,
		NewErrors:   fresh,
	}, nil
}
