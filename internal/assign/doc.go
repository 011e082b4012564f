// Package assign routes identified cards to grid slots.
//
// Preview is the pure assignment engine: it derives the first letter of a
// name, diverts low-confidence items to the Error Slot, and otherwise looks
// the letter up in the grid's alphabet map. Tracker wraps Preview with
// per-slot occupancy, redirecting items that would exceed a slot's capacity
// to the Error Slot. Tracker is the only mutable state in the sorting core;
// all of its operations are serialized by a single mutex.
package assign
