package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateGrid(); err != nil {
		return err
	}
	if err := c.validateSorting(); err != nil {
		return err
	}
	if err := c.validateRun(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic: expected an http(s) URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateGrid() error {
	switch c.Grid.Source {
	case GridSourceDefault:
	case GridSourceTOML, GridSourceSQLite:
		if strings.TrimSpace(c.Grid.Path) == "" {
			return fmt.Errorf("grid.path must be set when grid.source is %q", c.Grid.Source)
		}
	default:
		return fmt.Errorf("grid.source: unsupported value %q (want default, toml, or sqlite)", c.Grid.Source)
	}
	if c.Grid.SlotCapacity <= 0 {
		return errors.New("grid.slot_capacity must be positive")
	}
	return nil
}

func (c *Config) validateSorting() error {
	if c.Sorting.Mode != SortingModeAlphaExact {
		return fmt.Errorf("sorting.mode: unsupported value %q", c.Sorting.Mode)
	}
	if c.Sorting.LowConfidenceThreshold < 0 || c.Sorting.LowConfidenceThreshold > 1 {
		return errors.New("sorting.low_confidence_threshold must be between 0 and 1")
	}
	if c.Sorting.NearFullThreshold <= 0 || c.Sorting.NearFullThreshold > 1 {
		return errors.New("sorting.near_full_threshold must be between 0 (exclusive) and 1")
	}
	return nil
}

func (c *Config) validateRun() error {
	if err := ensurePositiveMap(map[string]int{
		"run.tick_interval_ms":      c.Run.TickIntervalMillis,
		"run.demo_tick_interval_ms": c.Run.DemoTickIntervalMillis,
	}); err != nil {
		return err
	}
	if c.Run.TotalItems < 0 {
		return errors.New("run.total_items must be >= 0")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	return ensurePositiveMap(map[string]int{
		"pipeline.step_interval_ms": c.Pipeline.StepIntervalMillis,
		"pipeline.max_pending":      c.Pipeline.MaxPending,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
