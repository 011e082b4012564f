package daemonctl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cardsorter/internal/config"
	"cardsorter/internal/ipc"
	"cardsorter/internal/preflight"
)

// StatusLine is one labelled health row shown by `sorter status`.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// StatusSnapshot combines the daemon report with config-derived checks.
type StatusSnapshot struct {
	Reachable bool               `json:"reachable"`
	Daemon    ipc.StatusResponse `json:"daemon"`
	Checks    []StatusLine       `json:"checks"`
}

// BuildStatusSnapshot collects daemon status, filling grid and catalog details
// from local config when the daemon cannot be reached.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config, logger *slog.Logger) (StatusSnapshot, error) {
	if cfg == nil {
		return StatusSnapshot{}, fmt.Errorf("configuration not available")
	}
	var snap StatusSnapshot
	if client, err := ipc.Dial(cfg.SocketPath()); err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil {
			snap.Reachable = true
			snap.Daemon = *resp
		}
	}

	if !snap.Reachable || !snap.Daemon.Running {
		snap.Daemon.APIBind = cfg.Paths.APIBind
		snap.Daemon.Threshold = cfg.Sorting.LowConfidenceThreshold
		if state, err := LoadGrid(ctx, cfg, logger); err == nil {
			snap.Daemon.GridSource = state.Source
			snap.Daemon.GridFallback = state.Fallback
		}
	}
	snap.Checks = BuildChecks(cfg, snap)
	snap.Checks = append(snap.Checks, PreflightLines(preflight.RunAll(cfg))...)
	return snap, nil
}

// BuildChecks derives the health rows for a snapshot.
func BuildChecks(cfg *config.Config, snap StatusSnapshot) []StatusLine {
	lines := make([]StatusLine, 0, 6)
	switch {
	case snap.Daemon.Running:
		lines = append(lines, StatusLine{Label: "Sorter", Severity: "ok", Detail: fmt.Sprintf("Running (pid %d)", snap.Daemon.PID)})
	case snap.Reachable:
		lines = append(lines, StatusLine{Label: "Sorter", Severity: "warn", Detail: "Process up but stopped (run `sorter start`)"})
	default:
		lines = append(lines, StatusLine{Label: "Sorter", Severity: "warn", Detail: "Not running (run `sorter start`)"})
	}

	gridDetail := snap.Daemon.GridSource
	if gridDetail == "" {
		gridDetail = "unknown"
	}
	if snap.Daemon.GridFallback {
		lines = append(lines, StatusLine{Label: "Grid", Severity: "warn", Detail: "Canonical layout in use; " + cfg.Grid.Source + " source failed"})
	} else {
		lines = append(lines, StatusLine{Label: "Grid", Severity: "ok", Detail: gridDetail})
	}

	path := strings.TrimSpace(cfg.Catalog.Path)
	switch {
	case snap.Daemon.CatalogCards > 0:
		lines = append(lines, StatusLine{Label: "Catalog", Severity: "ok", Detail: fmt.Sprintf("%d cards", snap.Daemon.CatalogCards)})
	case path == "":
		lines = append(lines, StatusLine{Label: "Catalog", Severity: "info", Detail: "Not configured (identify disabled)"})
	default:
		if _, err := os.Stat(path); err != nil {
			lines = append(lines, StatusLine{Label: "Catalog", Severity: "error", Detail: "Missing: " + path})
		} else {
			lines = append(lines, StatusLine{Label: "Catalog", Severity: "info", Detail: "Present, not loaded"})
		}
	}

	if strings.TrimSpace(cfg.Paths.APIBind) == "" {
		lines = append(lines, StatusLine{Label: "HTTP API", Severity: "info", Detail: "Disabled"})
	} else {
		detail := cfg.Paths.APIBind
		if cfg.Paths.APIToken != "" {
			detail += " (token required)"
		}
		lines = append(lines, StatusLine{Label: "HTTP API", Severity: "ok", Detail: detail})
	}

	if cfg.Notifications.NtfyTopic == "" {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "info", Detail: "Disabled"})
	} else {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "ok", Detail: "ntfy"})
	}

	if cfg.Run.Demo {
		lines = append(lines, StatusLine{Label: "Run Source", Severity: "info", Detail: "Demo simulator"})
	} else {
		lines = append(lines, StatusLine{Label: "Run Source", Severity: "ok", Detail: "Live tracker"})
	}
	return lines
}

// PreflightLines converts filesystem readiness checks into health rows.
func PreflightLines(results []preflight.Result) []StatusLine {
	lines := make([]StatusLine, 0, len(results))
	for _, r := range results {
		severity := "ok"
		if !r.Passed {
			severity = "error"
		}
		lines = append(lines, StatusLine{Label: r.Name, Severity: severity, Detail: r.Detail})
	}
	return lines
}
