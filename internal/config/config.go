// Package config loads normware configuration from a YAML file and
// NORMWARE_* environment variables.
package config

import (
	"log/slog"
	"strings"
)

// Defaults for optional fields.
const (
	DefaultLogLevel = "warn"
	DefaultFormat   = "text"
)

// Config is the top-level configuration.
//
// Example normware.yaml:
//
//	schemas: ./schemas        # CUE schema directory
//	journal: ./actions.db     # optional SQLite action journal
//	log_level: info
//	format: json
type Config struct {
	// Schemas is the CUE directory schemas are compiled from.
	Schemas string `yaml:"schemas" mapstructure:"schemas" validate:"omitempty,dir"`

	// Journal is the SQLite journal path. Empty disables journaling.
	Journal string `yaml:"journal" mapstructure:"journal" validate:"omitempty,sqlite_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// Format selects CLI output: text or json.
	Format string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=text json"`
}

// SetDefaults fills optional fields left empty.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Format == "" {
		c.Format = DefaultFormat
	}
}

// SlogLevel maps LogLevel to a slog.Level. Unknown values map to warn.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
