package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Grid describes where the slot topology comes from and how slots are sized.
type Grid struct {
	// Source selects the topology provider: "default", "toml", or "sqlite".
	Source string `toml:"source"`
	// Path points at the TOML or SQLite file for non-default sources.
	Path string `toml:"path"`
	// ErrorSlot names the slot that absorbs diverted and overflowing items.
	// Empty means the last row of the last column.
	ErrorSlot string `toml:"error_slot"`
	// SlotCapacity applies to every assignable slot without an explicit capacity.
	SlotCapacity int `toml:"slot_capacity"`
}

// Sorting contains assignment policy knobs.
type Sorting struct {
	Mode                   string  `toml:"mode"`
	LowConfidenceThreshold float64 `toml:"low_confidence_threshold"`
	NearFullThreshold      float64 `toml:"near_full_threshold"`
}

// Run contains run controller timing and reporting limits.
type Run struct {
	TotalItems              int   `toml:"total_items"`
	TickIntervalMillis      int   `toml:"tick_interval_ms"`
	Demo                    bool  `toml:"demo"`
	DemoTickIntervalMillis  int   `toml:"demo_tick_interval_ms"`
	DemoSeed                int64 `toml:"demo_seed"`
	RecentErrors            int   `toml:"recent_errors"`
	ThroughputWindowSeconds int   `toml:"throughput_window_seconds"`
}

// Pipeline contains settings for the pending-item processor.
type Pipeline struct {
	StepIntervalMillis int `toml:"step_interval_ms"`
	MaxPending         int `toml:"max_pending"`
}

// Catalog points at the local card list used for identification.
type Catalog struct {
	Path     string  `toml:"path"`
	MinScore float64 `toml:"min_score"`
}

// Notifications configures ntfy push messages for run and slot events.
type Notifications struct {
	// NtfyTopic is the full topic URL; empty disables notifications.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for the sorter.
//
// Configuration sections by subsystem:
//   - Paths: log/socket directory and API bind address
//   - Grid: slot topology source and per-slot capacity
//   - Sorting: confidence threshold and near-full warning level
//   - Run: tick intervals, demo mode, and status feed limits
//   - Pipeline: pending-item processing cadence
//   - Catalog: local card list for name identification
//   - Notifications: ntfy topic for slot-full and run-complete pushes
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Grid          Grid          `toml:"grid"`
	Sorting       Sorting       `toml:"sorting"`
	Run           Run           `toml:"run"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Catalog       Catalog       `toml:"catalog"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("sorter.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

// SocketPath returns the IPC socket location inside the log directory.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "sorter.sock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "sorter.pid")
}

// TickInterval returns the run controller tick cadence for the configured mode.
func (c *Config) TickInterval() time.Duration {
	if c.Run.Demo {
		return time.Duration(c.Run.DemoTickIntervalMillis) * time.Millisecond
	}
	return time.Duration(c.Run.TickIntervalMillis) * time.Millisecond
}

// ThroughputWindow returns the sliding window used for throughput estimates.
func (c *Config) ThroughputWindow() time.Duration {
	return time.Duration(c.Run.ThroughputWindowSeconds) * time.Second
}

// StepInterval returns the pipeline auto-loop cadence.
func (c *Config) StepInterval() time.Duration {
	return time.Duration(c.Pipeline.StepIntervalMillis) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
