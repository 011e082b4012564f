package preflight

import (
	"strings"

	"cardsorter/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding path is configured.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Log directory (always checked; holds the socket, pid file and logs)
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	switch cfg.Grid.Source {
	case config.GridSourceTOML, config.GridSourceSQLite:
		results = append(results, CheckFileReadable("Grid file", cfg.Grid.Path))
	}

	if path := strings.TrimSpace(cfg.Catalog.Path); path != "" {
		results = append(results, CheckFileReadable("Catalog file", path))
	}

	return results
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
