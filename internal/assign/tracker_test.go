package assign_test

import (
	"errors"
	"sync"
	"testing"

	"cardsorter/internal/assign"
	"cardsorter/internal/grid"
	"cardsorter/internal/services"
)

func boundTracker(t *testing.T, opts ...assign.TrackerOption) *assign.Tracker {
	t.Helper()
	tracker := assign.NewTracker(assign.DefaultPolicy(), nil, opts...)
	tracker.Rebind(defaultState(t))
	return tracker
}

func mustCommit(t *testing.T, tracker *assign.Tracker, name string, conf float64) assign.Commit {
	t.Helper()
	commit, err := tracker.Commit(assign.Request{Name: name, Confidence: conf})
	if err != nil {
		t.Fatalf("Commit(%q): %v", name, err)
	}
	return commit
}

func TestCommitOverflowsAfterCapacity(t *testing.T) {
	tracker := boundTracker(t)

	want := []assign.Result{
		{Cell: "A3", Reason: "alpha_exact:C", FirstLetter: "C"},
		{Cell: "A3", Reason: "alpha_exact:C", FirstLetter: "C"},
		{Cell: "K3", Reason: "overflow:C", FirstLetter: "C"},
	}
	for i, w := range want {
		got := mustCommit(t, tracker, "Counterspell", 0.9)
		if got.Result != w {
			t.Fatalf("commit %d: got %+v want %+v", i, got.Result, w)
		}
	}
	occ := tracker.Snapshot()
	if occ.Counts["A3"] != 2 || occ.Counts["K3"] != 1 || occ.ErrorCount != 1 || occ.Total != 3 {
		t.Fatalf("unexpected occupancy %+v", occ)
	}
	if len(occ.Full) != 1 || occ.Full[0] != "A3" {
		t.Fatalf("expected A3 reported full, got %+v", occ.Full)
	}
}

func TestFullObserverFiresOncePerFill(t *testing.T) {
	var filled []string
	tracker := boundTracker(t, assign.WithFullObserver(func(slotID string, occ assign.Occupancy) {
		if occ.Counts[slotID] != 2 {
			t.Errorf("observer saw count %d for %s", occ.Counts[slotID], slotID)
		}
		filled = append(filled, slotID)
	}))

	for range 4 {
		mustCommit(t, tracker, "Counterspell", 0.9)
	}
	mustCommit(t, tracker, "Island", 0.2)
	if len(filled) != 1 || filled[0] != "A3" {
		t.Fatalf("expected a single fill of A3, got %v", filled)
	}

	tracker.Reset()
	mustCommit(t, tracker, "Counterspell", 0.9)
	mustCommit(t, tracker, "Counterspell", 0.9)
	if len(filled) != 2 {
		t.Fatalf("expected refill after reset to notify again, got %v", filled)
	}
}

func TestCommitDivertDoesNotTouchTarget(t *testing.T) {
	tracker := boundTracker(t)
	commit := mustCommit(t, tracker, "Island", 0.2)
	if commit.Result.Cell != "K3" || !commit.Result.Diverted() {
		t.Fatalf("unexpected result %+v", commit.Result)
	}
	if commit.Occupancy.Counts["C3"] != 0 || commit.Occupancy.Counts["K3"] != 1 {
		t.Fatalf("unexpected occupancy %+v", commit.Occupancy.Counts)
	}
}

func TestErrorSlotHasNoCeiling(t *testing.T) {
	tracker := boundTracker(t)
	for i := 0; i < 50; i++ {
		mustCommit(t, tracker, "blurry", 0.1)
	}
	if occ := tracker.Snapshot(); occ.ErrorCount != 50 || len(occ.Full) != 0 {
		t.Fatalf("unexpected occupancy %+v", occ)
	}
}

func TestResetBehavesLikeFreshTracker(t *testing.T) {
	tracker := boundTracker(t)
	for i := 0; i < 3; i++ {
		mustCommit(t, tracker, "Counterspell", 1)
	}
	tracker.Reset()
	tracker.Reset()

	if occ := tracker.Snapshot(); occ.Total != 0 {
		t.Fatalf("expected zeroed occupancy, got %+v", occ)
	}
	if got := mustCommit(t, tracker, "Counterspell", 1); got.Result.Cell != "A3" || got.Result.Overflowed() {
		t.Fatalf("expected fresh commit after reset, got %+v", got.Result)
	}
	if totals := tracker.Totals(); totals.Commits != 4 || totals.ErrorCommits != 1 {
		t.Fatalf("expected lifetime totals to survive reset, got %+v", totals)
	}
}

func TestRebindDiscardsOccupancy(t *testing.T) {
	tracker := boundTracker(t)
	mustCommit(t, tracker, "Counterspell", 1)

	g, err := grid.New([]grid.Slot{{ID: "A1"}, {ID: "A2"}, {ID: "A3"}}, grid.Options{SlotCapacity: 1})
	if err != nil {
		t.Fatal(err)
	}
	tracker.Rebind(grid.State{Grid: g, AlphabetMap: grid.BuildAlphabetMap(g)})

	occ := tracker.Snapshot()
	if occ.Total != 0 || occ.ErrorSlot != "A3" || len(occ.Counts) != 3 {
		t.Fatalf("unexpected occupancy after rebind %+v", occ)
	}
	first := mustCommit(t, tracker, "Bolt", 1)
	second := mustCommit(t, tracker, "Bolt", 1)
	if first.Result.Cell != "A2" || second.Result.Reason != "overflow:B" {
		t.Fatalf("unexpected results %+v %+v", first.Result, second.Result)
	}
}

func TestCommitWithoutGrid(t *testing.T) {
	tracker := assign.NewTracker(assign.DefaultPolicy(), nil)
	_, err := tracker.Commit(assign.Request{Name: "x", Confidence: 1})
	if !errors.Is(err, assign.ErrNoGrid) || !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected ErrNoGrid, got %v", err)
	}
	if _, err := tracker.Preview(assign.Request{Name: "x"}); !errors.Is(err, assign.ErrNoGrid) {
		t.Fatalf("expected ErrNoGrid from preview, got %v", err)
	}
}

func TestNearFullReporting(t *testing.T) {
	tracker := assign.NewTracker(assign.Policy{Threshold: 0.8, NearFull: 0.5}, nil)
	g, err := grid.Default(grid.Options{SlotCapacity: 4})
	if err != nil {
		t.Fatal(err)
	}
	tracker.Rebind(grid.State{Grid: g, AlphabetMap: grid.BuildAlphabetMap(g)})
	mustCommit(t, tracker, "Angel", 1)
	mustCommit(t, tracker, "Angel", 1)

	occ := tracker.Snapshot()
	if len(occ.NearFull) != 1 || occ.NearFull[0] != "A1" || len(occ.Full) != 0 {
		t.Fatalf("unexpected near-full report %+v", occ)
	}
}

func TestSinceReturnsJournalInOrder(t *testing.T) {
	tracker := boundTracker(t, assign.WithJournalSize(3))
	for _, name := range []string{"Alpha", "Beta", "Gamma", "Delta"} {
		mustCommit(t, tracker, name, 1)
	}
	all := tracker.Since(0)
	if len(all) != 3 || all[0].Name != "Beta" || all[2].Seq != 4 {
		t.Fatalf("unexpected journal %+v", all)
	}
	tail := tracker.Since(3)
	if len(tail) != 1 || tail[0].Name != "Delta" {
		t.Fatalf("unexpected tail %+v", tail)
	}
	if none := tracker.Since(4); len(none) != 0 {
		t.Fatalf("expected empty result, got %+v", none)
	}
}

func TestConcurrentCommitsRespectCapacity(t *testing.T) {
	tracker := boundTracker(t)
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tracker.Commit(assign.Request{Name: "Serra Angel", Confidence: 1}); err != nil {
				t.Errorf("Commit: %v", err)
			}
		}()
		if i == 20 {
			tracker.Reset()
		}
	}
	wg.Wait()

	occ := tracker.Snapshot()
	if occ.Counts["F3"] > 2 {
		t.Fatalf("capacity exceeded: %d", occ.Counts["F3"])
	}
	for id, count := range occ.Counts {
		if id != occ.ErrorSlot && count > 2 {
			t.Fatalf("slot %s exceeded capacity: %d", id, count)
		}
	}
}
