// Package services defines shared utilities consumed by the sorter's
// components and transports.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, slot IDs, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so HTTP, IPC, and CLI
//     layers can classify failures (validation, not found, unavailable)
//     without string matching.
package services
