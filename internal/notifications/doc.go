// Package notifications pushes sorter events to ntfy.
//
// The daemon publishes when a slot reaches capacity, when a run reaches its
// total or is ended by the operator, and when a configured grid source fails
// and the built-in layout takes over. With no ntfy topic configured NewService
// returns a no-op implementation, so callers never check for nil.
package notifications
