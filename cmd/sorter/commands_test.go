package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"cardsorter/internal/api"
	"cardsorter/internal/testsupport"
)

func TestPreviewUsesDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"preview", "Island"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	requireContains(t, out, "C3")
	requireContains(t, out, "backend")
	if strings.Contains(out, "Fallback") {
		t.Fatalf("unexpected fallback in %q", out)
	}
}

func TestPreviewFallsBackOffline(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	configPath := filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"preview", "Island", "--json"}, filepath.Join(t.TempDir(), "none.sock"), configPath)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	var result api.AssignmentResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode preview json: %v\n%s", err, out)
	}
	if result.Cell != "C3" || result.Provenance != "local" || result.FallbackReason == "" {
		t.Fatalf("unexpected offline preview %+v", result)
	}
}

func TestPreviewLowConfidenceDiverts(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"preview", "Island", "--confidence", "0.2"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	requireContains(t, out, "K3")
}

func TestPreviewRejectsUnsupportedMode(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"preview", "Island", "--sorting-mode", "by_color"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected unsupported sorting mode to fail")
	}
}

func TestCommitCountsAndReset(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"commit", "Anger"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	requireContains(t, out, "Placed in A1")

	out, _, err = runCLI(t, []string{"counts", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	var occ api.Occupancy
	if err := json.Unmarshal([]byte(out), &occ); err != nil {
		t.Fatalf("decode counts: %v", err)
	}
	if occ.Counts["A1"] != 1 || occ.Total != 1 {
		t.Fatalf("unexpected occupancy %+v", occ)
	}

	out, _, err = runCLI(t, []string{"reset"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	requireContains(t, out, "Occupancy cleared")

	out, _, err = runCLI(t, []string{"counts"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	requireContains(t, out, "Total placed: 0")
}

func TestCommitRequiresDaemon(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, configPath, cfg)

	_, _, err := runCLI(t, []string{"commit", "Anger"}, filepath.Join(t.TempDir(), "none.sock"), configPath)
	if err == nil {
		t.Fatal("expected commit without daemon to fail")
	}
	requireContains(t, err.Error(), "sorter start")
}

func TestGridAndAlphabetMap(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"grid"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	requireContains(t, out, "K3")
	requireContains(t, out, "(error)")

	out, _, err = runCLI(t, []string{"alpha-map", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("alpha-map: %v", err)
	}
	var resp api.AlphabetMapResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode alpha-map: %v", err)
	}
	if resp.Letters["A"] != "A1" || resp.Letters["I"] != "C3" || resp.ErrorSlot != "K3" {
		t.Fatalf("unexpected alphabet map %+v", resp)
	}

	out, _, err = runCLI(t, []string{"grid", "reload"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("grid reload: %v", err)
	}
	requireContains(t, out, "33 slots")
}

func TestRunLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"run", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("run status: %v", err)
	}
	requireContains(t, out, "idle")

	if _, _, err := runCLI(t, []string{"run", "pause"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected pause while idle to fail")
	}

	out, _, err = runCLI(t, []string{"run", "start", "--demo", "--total", "1000", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("run start: %v", err)
	}
	var status api.RunStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode run status: %v", err)
	}
	if status.State != "running" || status.Total != 1000 || status.RunID == "" {
		t.Fatalf("unexpected run status %+v", status)
	}

	out, _, err = runCLI(t, []string{"run", "end"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("run end: %v", err)
	}
	requireContains(t, out, "ended")
}

func TestEnqueueAndStep(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"enqueue", "Zombie:0.95", "Anger"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	requireContains(t, out, "Queued 2 item(s); 2 pending")

	out, _, err = runCLI(t, []string{"run", "step"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	requireContains(t, out, "Zombie ->")
	requireContains(t, out, "Pending: 1")
}

func TestStepWithEmptyPipelineFails(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"run", "step"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected step on empty pipeline to fail")
	}
}

func TestParseItemArgs(t *testing.T) {
	tests := []struct {
		arg        string
		name       string
		confidence float64
	}{
		{arg: "Island", name: "Island", confidence: 1},
		{arg: "Island:0.4", name: "Island", confidence: 0.4},
		{arg: "Borrowing 100,000 Arrows", name: "Borrowing 100,000 Arrows", confidence: 1},
		{arg: "Circle of Protection: Red", name: "Circle of Protection: Red", confidence: 1},
		{arg: "Circle of Protection: Red:0.7", name: "Circle of Protection: Red", confidence: 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			items, err := parseItemArgs([]string{tt.arg})
			if err != nil {
				t.Fatalf("parseItemArgs: %v", err)
			}
			if items[0].Name != tt.name || items[0].Confidence.Float() != tt.confidence {
				t.Fatalf("got %+v", items[0])
			}
		})
	}

	if _, err := parseItemArgs([]string{":0.5"}); err == nil {
		t.Fatal("expected empty name to fail")
	}
}

func TestIdentifyWithoutCatalogFails(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"identify", "Islnad"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected identify without catalog to fail")
	}
}

func TestIdentifyMatchesCatalog(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithCatalogNDJSON(
		map[string]any{"name": "Island", "set": "lea", "collector_number": "288"},
		map[string]any{"name": "Anger", "set": "jud", "collector_number": "77"},
	))

	out, _, err := runCLI(t, []string{"identify", "island"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	requireContains(t, out, "Matched:    Island")
	requireContains(t, out, "C3")
}

func TestBatchEvaluate(t *testing.T) {
	env := setupCLITestEnv(t)

	path := filepath.Join(t.TempDir(), "results.json")
	payload := `[
  {"filename": "a.jpg", "expectedName": "Island", "expectedCell": "C3", "identifiedName": "Island", "score": 92, "assignedCell": "C3"},
  {"filename": "b.jpg", "expectedName": "Anger", "expectedCell": "A1", "identifiedName": "Angel", "score": 61, "assignedCell": "A1"},
  {"filename": "c.jpg", "expectedName": "Zombie", "error": "ocr failed"}
]`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	out, _, err := runCLI(t, []string{"batch", "evaluate", path, "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("batch evaluate: %v", err)
	}
	var resp api.BatchEvaluateResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	s := resp.Summary
	if s.Total != 3 || s.Errors != 1 || s.Evaluated != 2 || s.BothMatches != 1 || s.CellMatches != 2 {
		t.Fatalf("unexpected summary %+v", s)
	}

	out, _, err = runCLI(t, []string{"batch", "evaluate", path, "--rows"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("batch evaluate: %v", err)
	}
	requireContains(t, out, "Name accuracy")
	requireContains(t, out, "50.0%")
	requireContains(t, out, "b.jpg")
}

func TestBatchEvaluateFillsOffline(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, configPath, cfg)

	path := filepath.Join(t.TempDir(), "results.ndjson")
	payload := `{"filename": "a.jpg", "expectedName": "Island", "expectedCell": "C3", "identifiedName": "Island", "score": 0.95}` + "\n"
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	out, _, err := runCLI(t, []string{"batch", "evaluate", path, "--fill", "--json"}, filepath.Join(t.TempDir(), "none.sock"), configPath)
	if err != nil {
		t.Fatalf("batch evaluate: %v", err)
	}
	var resp api.BatchEvaluateResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	if len(resp.Rows) != 1 || resp.Rows[0].AssignedSlot != "C3" || resp.Summary.BothMatches != 1 {
		t.Fatalf("unexpected report %+v", resp)
	}
}

func TestLogsFallsBackToTail(t *testing.T) {
	env := setupCLITestEnv(t)
	for _, line := range []string{"first", "second", "third"} {
		if err := appendLine(env.logPath, line); err != nil {
			t.Fatalf("append log: %v", err)
		}
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "first") {
		t.Fatalf("expected only the last two lines, got %q", out)
	}
	requireContains(t, out, "second")
	requireContains(t, out, "third")

	if _, _, err := runCLI(t, []string{"logs", "--component", "tracker"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected filters without the HTTP API to fail")
	}
}

func TestStatusReportsRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Sorter:")
	requireContains(t, out, "Running")
	requireContains(t, out, "Occupancy")
	requireContains(t, out, "Pending:")
}

func TestTestNotifySendsToTopic(t *testing.T) {
	var got atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Title") == "Sorter - Test" {
			got.Add(1)
		}
	}))
	defer server.Close()

	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	configPath := filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"test-notify"}, filepath.Join(t.TempDir(), "none.sock"), configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if got.Load() != 1 {
		t.Fatalf("expected one test push, got %d", got.Load())
	}
}
