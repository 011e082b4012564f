package run

import (
	"context"
	"reflect"
	"testing"

	"cardsorter/internal/assign"
	"cardsorter/internal/grid"
)

func TestTrackerSourceCountsRelativeToBaseline(t *testing.T) {
	g, err := grid.Default(grid.Options{SlotCapacity: 2})
	if err != nil {
		t.Fatal(err)
	}
	tracker := assign.NewTracker(assign.DefaultPolicy(), nil)
	tracker.Rebind(grid.State{Grid: g, AlphabetMap: grid.BuildAlphabetMap(g)})

	commit := func(name string, conf float64) {
		t.Helper()
		if _, err := tracker.Commit(assign.Request{Name: name, Confidence: conf, Thumbnail: name + ".png"}); err != nil {
			t.Fatal(err)
		}
	}
	commit("Before Run", 1)

	src := NewTrackerSource(tracker)
	commit("Island", 1)
	commit("Blurry", 0.3)

	sample, err := src.Sample(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sample.Completed != 2 || sample.Errors != 1 || sample.CurrentItem != "Blurry" {
		t.Fatalf("unexpected sample %+v", sample)
	}
	want := []ErrorEntry{{SlotID: "K3", Reason: "divert:low_confidence", Thumbnail: "Blurry.png", Name: "Blurry"}}
	if !reflect.DeepEqual(sample.NewErrors, want) {
		t.Fatalf("unexpected new errors %+v", sample.NewErrors)
	}

	tracker.Reset()
	commit("Island", 1)
	sample, err = src.Sample(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sample.Completed != 3 || len(sample.NewErrors) != 0 {
		t.Fatalf("reset must not rewind progress, got %+v", sample)
	}
}

func TestTrackerSourceIgnoresPlacementsPastLimit(t *testing.T) {
	g, err := grid.Default(grid.Options{SlotCapacity: 2})
	if err != nil {
		t.Fatal(err)
	}
	tracker := assign.NewTracker(assign.DefaultPolicy(), nil)
	tracker.Rebind(grid.State{Grid: g, AlphabetMap: grid.BuildAlphabetMap(g)})

	src := NewTrackerSource(tracker)
	src.SetLimit(2)
	for _, req := range []assign.Request{
		{Name: "Island", Confidence: 1},
		{Name: "Forest", Confidence: 1},
		{Name: "Smudged", Confidence: 0.1},
	} {
		if _, err := tracker.Commit(req); err != nil {
			t.Fatal(err)
		}
	}

	sample, err := src.Sample(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sample.Completed != 2 || sample.Errors != 0 {
		t.Fatalf("expected only in-run placements counted, got %+v", sample)
	}
	if len(sample.NewErrors) != 0 || sample.CurrentItem != "Forest" {
		t.Fatalf("error past the limit leaked into the run: %+v", sample)
	}
}

func TestTrackerSourceCountsPlacementsDroppedFromJournal(t *testing.T) {
	g, err := grid.Default(grid.Options{SlotCapacity: 2})
	if err != nil {
		t.Fatal(err)
	}
	tracker := assign.NewTracker(assign.DefaultPolicy(), nil, assign.WithJournalSize(2))
	tracker.Rebind(grid.State{Grid: g, AlphabetMap: grid.BuildAlphabetMap(g)})

	src := NewTrackerSource(tracker)
	for _, req := range []assign.Request{
		{Name: "Blurry", Confidence: 0.2},
		{Name: "Island", Confidence: 1},
		{Name: "Forest", Confidence: 1},
		{Name: "Swamp", Confidence: 1},
	} {
		if _, err := tracker.Commit(req); err != nil {
			t.Fatal(err)
		}
	}

	sample, err := src.Sample(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sample.Completed != 4 || sample.Errors != 1 {
		t.Fatalf("expected totals to cover rolled-out placements, got %+v", sample)
	}
	if sample.CurrentItem != "Swamp" {
		t.Fatalf("unexpected current item %q", sample.CurrentItem)
	}
}

func TestSimulatorIsDeterministic(t *testing.T) {
	a := NewSimulator(42, "K3", 0.3)
	b := NewSimulator(42, "K3", 0.3)
	for i := 0; i < 25; i++ {
		sa, _ := a.Sample(context.Background())
		sb, _ := b.Sample(context.Background())
		if !reflect.DeepEqual(sa, sb) {
			t.Fatalf("sample %d diverged: %+v vs %+v", i, sa, sb)
		}
		if sa.Completed != i+1 || sa.Errors > sa.Completed {
			t.Fatalf("unexpected counters %+v", sa)
		}
		for _, e := range sa.NewErrors {
			if e.SlotID != "K3" {
				t.Fatalf("simulated error outside error slot: %+v", e)
			}
		}
	}
}
