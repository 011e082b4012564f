// Package api defines wire-format types and converters shared by the HTTP
// server and the IPC layer.
//
// DTOs use camelCase JSON tags. Timestamps are RFC3339 with milliseconds.
// Request decoding is lenient where callers are known to be sloppy: a
// missing or unparseable confidence is read as 1.0.
package api
