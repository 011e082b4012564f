// Package logging assembles structured slog loggers and formatting helpers used
// across the sorter daemon and CLI.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers that tag log lines with run
// IDs, slot IDs, and correlation IDs. The StreamHub keeps a bounded buffer of
// recent records for the /api/logs endpoint. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging
