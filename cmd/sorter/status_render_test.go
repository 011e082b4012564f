package main

import (
	"bytes"
	"strings"
	"testing"

	"cardsorter/internal/api"
	"cardsorter/internal/daemonctl"
)

func TestRenderStatusLineFormatting(t *testing.T) {
	line := renderStatusLine("Grid", statusOK, "default", false)
	if !strings.HasPrefix(line, statusIndent+"Grid:") {
		t.Fatalf("unexpected prefix: %q", line)
	}
	if !strings.Contains(line, "[OK] default") {
		t.Fatalf("expected status label and message, got %q", line)
	}

	colored := renderStatusLine("Grid", statusError, "", true)
	if !strings.Contains(colored, ansiRed) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected colorized output, got %q", colored)
	}
}

func TestStatusKindFromSeverity(t *testing.T) {
	tests := map[string]statusKind{
		"ok":    statusOK,
		"warn":  statusWarn,
		"error": statusError,
		"info":  statusInfo,
		"":      statusInfo,
	}
	for severity, want := range tests {
		if got := statusKindFromSeverity(severity); got != want {
			t.Fatalf("severity %q: got %v want %v", severity, got, want)
		}
	}
}

func TestRenderStatusOfflineSkipsRunSections(t *testing.T) {
	snap := daemonctl.StatusSnapshot{
		Checks: []daemonctl.StatusLine{{Label: "Sorter", Severity: "warn", Detail: "Not running"}},
	}
	var buf bytes.Buffer
	renderStatus(&buf, snap, false)
	out := buf.String()
	if !strings.Contains(out, "System Status") || !strings.Contains(out, "[WARN] Not running") {
		t.Fatalf("unexpected offline status %q", out)
	}
	if strings.Contains(out, "Occupancy") {
		t.Fatalf("offline status should not show occupancy: %q", out)
	}
}

func TestRenderStatusFlagsFullSlots(t *testing.T) {
	snap := daemonctl.StatusSnapshot{
		Reachable: true,
		Daemon: api.DaemonStatus{
			Running: true,
			Run:     api.RunStatus{State: "running", Total: 10, Completed: 4, ProgressPercent: 40},
			Occupancy: api.Occupancy{
				Counts:    map[string]int{"A1": 2},
				Full:      []string{"A1"},
				ErrorSlot: "K3",
				Total:     2,
			},
		},
	}
	var buf bytes.Buffer
	renderStatus(&buf, snap, false)
	out := buf.String()
	for _, want := range []string{"4 / 10 (40.0%)", "[ERROR] A1", "Near full:", "[OK] -"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}
