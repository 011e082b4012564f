// Package preflight provides readiness checks for the filesystem paths the
// sorter depends on.
//
// These checks run in two contexts:
//   - The daemon process calls RunAll at startup and logs any failure so an
//     operator sees a broken grid file or catalog before the first request.
//   - The CLI "sorter status" command appends the same results to its
//     health rows.
//
// Each check is gated by its config toggle; unconfigured paths are skipped.
package preflight
