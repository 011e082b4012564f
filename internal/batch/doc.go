// Package batch compares recorded identification and assignment results
// against expected values for offline accuracy checks. Evaluation is a pure
// reduction over records and never touches live occupancy.
package batch
