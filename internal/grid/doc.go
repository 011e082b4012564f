// Package grid models the sorter's slot topology and the letter routing
// derived from it.
//
// A Grid is an ordered, validated set of slots with exactly one Error Slot
// that has unbounded capacity. Slots come from a Source: the built-in
// canonical topology (columns A-K, rows 1-3), a TOML file, or a SQLite
// table. Model wraps a Source and guarantees a usable grid: when the source
// fails or yields an invalid topology it logs a warning and substitutes the
// canonical layout.
//
// BuildAlphabetMap derives the deterministic letter-to-slot routing used by
// the assignment engine. Maps are rebuilt only when Model.Reload swaps the
// topology, at which point registered observers (the capacity tracker) are
// told to discard their state.
package grid
