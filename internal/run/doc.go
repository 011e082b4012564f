// Package run owns the sorting run lifecycle.
//
// A Controller moves through idle, running, paused, and ended states and,
// while running, samples a Source on a fixed interval to maintain progress
// counters, a throughput estimate, and a bounded feed of recent Error Slot
// placements. Sampling failures are recorded and retried on the next tick;
// they never end a run.
package run
