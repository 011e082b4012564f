// Package config loads, normalizes, and validates sorter configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours SORTER_* environment overrides.
// The Config type centralizes every knob the daemon and CLI need: grid
// source, assignment thresholds, run controller timing, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
