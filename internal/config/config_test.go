package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"cardsorter/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogDir := filepath.Join(tempHome, ".local", "share", "sorter", "logs")
	if cfg.Paths.LogDir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7488" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Grid.Source != config.GridSourceDefault {
		t.Fatalf("unexpected grid source: %q", cfg.Grid.Source)
	}
	if cfg.Grid.SlotCapacity != 2 {
		t.Fatalf("unexpected slot capacity: %d", cfg.Grid.SlotCapacity)
	}
	if cfg.Sorting.LowConfidenceThreshold != 0.80 {
		t.Fatalf("unexpected low confidence threshold: %v", cfg.Sorting.LowConfidenceThreshold)
	}
	if cfg.Sorting.NearFullThreshold != 0.90 {
		t.Fatalf("unexpected near full threshold: %v", cfg.Sorting.NearFullThreshold)
	}
	if cfg.TickInterval() != time.Second {
		t.Fatalf("unexpected tick interval: %s", cfg.TickInterval())
	}
	if cfg.ThroughputWindow() != time.Minute {
		t.Fatalf("unexpected throughput window: %s", cfg.ThroughputWindow())
	}
	if cfg.SocketPath() != filepath.Join(wantLogDir, "sorter.sock") {
		t.Fatalf("unexpected socket path: %q", cfg.SocketPath())
	}
}

func TestTickIntervalUsesDemoCadence(t *testing.T) {
	cfg := config.Default()
	cfg.Run.Demo = true
	if cfg.TickInterval() != 250*time.Millisecond {
		t.Fatalf("unexpected demo tick interval: %s", cfg.TickInterval())
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	payload := map[string]any{
		"paths": map[string]any{
			"log_dir":  "~/sorter-logs",
			"api_bind": "0.0.0.0:9000",
		},
		"grid": map[string]any{
			"source":        "TOML",
			"path":          "~/grid.toml",
			"error_slot":    "c2",
			"slot_capacity": 5,
		},
		"sorting": map[string]any{
			"low_confidence_threshold": 0.5,
		},
		"logging": map[string]any{
			"format": "JSON",
			"level":  "Debug",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.LogDir != filepath.Join(tempHome, "sorter-logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.Grid.Source != config.GridSourceTOML {
		t.Fatalf("expected normalized grid source, got %q", cfg.Grid.Source)
	}
	if cfg.Grid.Path != filepath.Join(tempHome, "grid.toml") {
		t.Fatalf("unexpected grid path: %q", cfg.Grid.Path)
	}
	if cfg.Grid.ErrorSlot != "C2" {
		t.Fatalf("expected upper-cased error slot, got %q", cfg.Grid.ErrorSlot)
	}
	if cfg.Grid.SlotCapacity != 5 {
		t.Fatalf("unexpected slot capacity: %d", cfg.Grid.SlotCapacity)
	}
	if cfg.Sorting.LowConfidenceThreshold != 0.5 {
		t.Fatalf("unexpected threshold: %v", cfg.Sorting.LowConfidenceThreshold)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SORTER_API_BIND", "127.0.0.1:9999")
	t.Setenv("SORTER_API_TOKEN", "secret")
	t.Setenv("SORTER_LOG_FORMAT", "json")
	t.Setenv("SORTER_DEMO", "true")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9999" {
		t.Fatalf("expected env api bind, got %q", cfg.Paths.APIBind)
	}
	if cfg.Paths.APIToken != "secret" {
		t.Fatalf("expected env api token, got %q", cfg.Paths.APIToken)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected env log format, got %q", cfg.Logging.Format)
	}
	if !cfg.Run.Demo {
		t.Fatal("expected demo mode from env")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[grid]\nbogus = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "unknown grid source",
			mutate: func(c *config.Config) { c.Grid.Source = "csv" },
			want:   "grid.source",
		},
		{
			name:   "toml source without path",
			mutate: func(c *config.Config) { c.Grid.Source = config.GridSourceTOML },
			want:   "grid.path",
		},
		{
			name:   "zero slot capacity",
			mutate: func(c *config.Config) { c.Grid.SlotCapacity = 0 },
			want:   "grid.slot_capacity",
		},
		{
			name:   "unsupported sorting mode",
			mutate: func(c *config.Config) { c.Sorting.Mode = "by_color" },
			want:   "sorting.mode",
		},
		{
			name:   "threshold above one",
			mutate: func(c *config.Config) { c.Sorting.LowConfidenceThreshold = 1.5 },
			want:   "sorting.low_confidence_threshold",
		},
		{
			name:   "zero tick interval",
			mutate: func(c *config.Config) { c.Run.TickIntervalMillis = 0 },
			want:   "run.tick_interval_ms",
		},
		{
			name:   "negative total",
			mutate: func(c *config.Config) { c.Run.TotalItems = -1 },
			want:   "run.total_items",
		},
		{
			name:   "unknown log format",
			mutate: func(c *config.Config) { c.Logging.Format = "xml" },
			want:   "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Sorting.Mode != config.SortingModeAlphaExact {
		t.Fatalf("unexpected sorting mode: %q", cfg.Sorting.Mode)
	}
}
