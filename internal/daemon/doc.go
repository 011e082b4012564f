// Package daemon coordinates the long-running sorter process.
//
// It owns the grid model, the capacity tracker, the run controller, the
// pending-item pipeline and the identification catalog, and ties them into a
// single lifecycle guarded by a flock so only one instance drives the
// hardware. The daemon exposes the sorting operations used by the IPC layer
// and serves the same operations over HTTP when an API bind is configured.
//
// Keep orchestration here: assignment rules live in assign, run bookkeeping
// in run, and the daemon only decides which collaborator handles a request.
package daemon
