package testsupport

import (
	"path/filepath"
	"testing"

	"cardsorter/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Run.TickIntervalMillis = 10
	cfgVal.Run.DemoTickIntervalMillis = 5
	cfgVal.Pipeline.StepIntervalMillis = 10

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSlotCapacity overrides the per-slot capacity.
func WithSlotCapacity(capacity int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Grid.SlotCapacity = capacity
	}
}

// WithThreshold overrides the low-confidence divert threshold.
func WithThreshold(threshold float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sorting.LowConfidenceThreshold = threshold
	}
}

// WithGridTOML writes content to a grid file and points the config at it.
func WithGridTOML(content string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "grid.toml")
		WriteFile(b.t, path, content)
		b.cfg.Grid.Source = config.GridSourceTOML
		b.cfg.Grid.Path = path
	}
}

// WithCatalogNDJSON writes one card object per line and points the config at it.
func WithCatalogNDJSON(cards ...map[string]any) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "cards.ndjson")
		WriteNDJSON(b.t, path, cards...)
		b.cfg.Catalog.Path = path
	}
}

// WithDemo enables the simulated run source.
func WithDemo() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Run.Demo = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
