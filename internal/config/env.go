package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists the settings operators commonly inject from the
// environment (systemd units, containers). Empty values leave the file or
// default value in place.
type envOverrides struct {
	APIBind     string `env:"SORTER_API_BIND"`
	APIToken    string `env:"SORTER_API_TOKEN"`
	LogDir      string `env:"SORTER_LOG_DIR"`
	LogLevel    string `env:"SORTER_LOG_LEVEL"`
	LogFormat   string `env:"SORTER_LOG_FORMAT"`
	GridSource  string `env:"SORTER_GRID_SOURCE"`
	GridPath    string `env:"SORTER_GRID_PATH"`
	CatalogPath string `env:"SORTER_CATALOG_PATH"`
	NtfyTopic   string `env:"SORTER_NTFY_TOPIC"`
	Demo        *bool  `env:"SORTER_DEMO"`
}

func (c *Config) applyEnv() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	setIfPresent(&c.Paths.APIBind, overrides.APIBind)
	setIfPresent(&c.Paths.APIToken, overrides.APIToken)
	setIfPresent(&c.Paths.LogDir, overrides.LogDir)
	setIfPresent(&c.Logging.Level, overrides.LogLevel)
	setIfPresent(&c.Logging.Format, overrides.LogFormat)
	setIfPresent(&c.Grid.Source, overrides.GridSource)
	setIfPresent(&c.Grid.Path, overrides.GridPath)
	setIfPresent(&c.Catalog.Path, overrides.CatalogPath)
	setIfPresent(&c.Notifications.NtfyTopic, overrides.NtfyTopic)
	if overrides.Demo != nil {
		c.Run.Demo = *overrides.Demo
	}
	return nil
}

func setIfPresent(dst *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*dst = trimmed
	}
}
