package grid_test

import (
	"testing"

	"cardsorter/internal/grid"
)

func TestBuildAlphabetMapDefaultTopology(t *testing.T) {
	m := grid.BuildAlphabetMap(defaultGrid(t))

	want := map[rune]string{
		'A': "A1", 'B': "A2", 'C': "A3", 'D': "B1", 'F': "B3",
		'I': "C3", 'Z': "I2",
	}
	for letter, slot := range want {
		got, ok := m.Slot(letter)
		if !ok || got != slot {
			t.Fatalf("letter %c: got %q (%v), want %q", letter, got, ok, slot)
		}
	}
	if m.ErrorSlot() != "K3" {
		t.Fatalf("unexpected error slot %q", m.ErrorSlot())
	}
}

func TestBuildAlphabetMapIsBijectionForLargeGrids(t *testing.T) {
	g := defaultGrid(t)
	m := grid.BuildAlphabetMap(g)
	seen := make(map[string]rune)
	for letter := 'A'; letter <= 'Z'; letter++ {
		id, ok := m.Slot(letter)
		if !ok {
			t.Fatalf("letter %c unmapped", letter)
		}
		if id == g.ErrorSlotID() {
			t.Fatalf("letter %c mapped to error slot", letter)
		}
		if prev, dup := seen[id]; dup {
			t.Fatalf("slot %s mapped by %c and %c", id, prev, letter)
		}
		seen[id] = letter
	}
	if len(m.Letters()) != 26 {
		t.Fatalf("expected 26 letters, got %d", len(m.Letters()))
	}
}

func TestBuildAlphabetMapSmallGridFallsBackToErrorSlot(t *testing.T) {
	g, err := grid.New([]grid.Slot{{ID: "A1"}, {ID: "A2"}, {ID: "B1"}, {ID: "B2"}}, grid.Options{SlotCapacity: 2})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	m := grid.BuildAlphabetMap(g)
	for letter, want := range map[rune]string{'A': "A1", 'B': "A2", 'C': "B1", 'D': "B2", 'E': "B2", 'Z': "B2"} {
		if got, _ := m.Slot(letter); got != want {
			t.Fatalf("letter %c: got %q want %q", letter, got, want)
		}
	}
	if letters := m.LettersFor("B2"); len(letters) != 23 {
		t.Fatalf("expected 23 letters on the error slot, got %d", len(letters))
	}
}

func TestBuildAlphabetMapDeterministic(t *testing.T) {
	a := grid.BuildAlphabetMap(defaultGrid(t))
	b := grid.BuildAlphabetMap(defaultGrid(t))
	if a != b {
		t.Fatal("expected identical maps for identical grids")
	}
}

func TestAlphabetMapSlotLookup(t *testing.T) {
	m := grid.BuildAlphabetMap(defaultGrid(t))
	if got, ok := m.Slot('i'); !ok || got != "C3" {
		t.Fatalf("lowercase lookup = %q %v", got, ok)
	}
	if _, ok := m.Slot('7'); ok {
		t.Fatal("expected non-letter lookup to fail")
	}
	var zero grid.AlphabetMap
	if !zero.IsZero() {
		t.Fatal("expected zero map to report IsZero")
	}
}
