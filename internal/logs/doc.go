// Package logs reads daemon logs for the CLI.
//
// Tail follows the plain log file with bounded memory and negative offsets for
// "last N lines" reads; it backs the IPC LogTail call. StreamClient reads the
// structured event hub over /api/logs and supports component, run, level and
// text filters.
package logs
