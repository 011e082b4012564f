package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)

	c.Grid.Source = strings.ToLower(strings.TrimSpace(c.Grid.Source))
	if c.Grid.Source == "" {
		c.Grid.Source = defaultGridSource
	}
	if path := strings.TrimSpace(c.Grid.Path); path != "" {
		if c.Grid.Path, err = expandPath(path); err != nil {
			return fmt.Errorf("grid.path: %w", err)
		}
	}
	c.Grid.ErrorSlot = strings.ToUpper(strings.TrimSpace(c.Grid.ErrorSlot))

	c.Sorting.Mode = strings.ToLower(strings.TrimSpace(c.Sorting.Mode))
	if c.Sorting.Mode == "" {
		c.Sorting.Mode = defaultSortingMode
	}

	if path := strings.TrimSpace(c.Catalog.Path); path != "" {
		if c.Catalog.Path, err = expandPath(path); err != nil {
			return fmt.Errorf("catalog.path: %w", err)
		}
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	if c.Run.RecentErrors <= 0 {
		c.Run.RecentErrors = defaultRecentErrors
	}
	if c.Run.ThroughputWindowSeconds <= 0 {
		c.Run.ThroughputWindowSeconds = defaultThroughputWindowSeconds
	}

	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeoutSeconds
	}
	return nil
}
