// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// Request and response types reuse the HTTP DTOs from package api so both
// transports stay in step. Errors cross the wire as "[kind] message" strings
// and the client turns them back into RemoteError values that match the
// services markers with errors.Is.
package ipc
