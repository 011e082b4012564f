// Package main hosts the sorter CLI entrypoint and command graph.
//
// Commands talk to the daemon over the IPC socket. `preview`, `grid`,
// `alpha-map` and `batch evaluate` compute locally when the daemon is
// unreachable, and `preview` prints which path answered. `commit` and the run
// controls always require the daemon.
package main
