// Package logstream carries log records to the terminal UI and the log
// file, and signals the UI when an operation finishes.
package logstream

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultCapacity is the number of lines the UI queue holds before dropping.
const DefaultCapacity = 1024

// DefaultFile is the persistent log file.
const DefaultFile = "/var/log/meshtastic_installer.log"

// FileDisabled as Config.File turns the log file off.
const FileDisabled = "-"

// Config holds the configuration for logging.
type Config struct {
	// Level is the minimum level: debug, info, warn, or error.
	// Default: info
	Level string `yaml:"level" env:"LEVEL"`

	// File is appended to when writable. Empty uses the default;
	// FileDisabled ("-") turns the file off.
	// Default: /var/log/meshtastic_installer.log
	File string `yaml:"file" env:"FILE"`

	// Capacity bounds the UI queue.
	// Default: 1024
	Capacity int `yaml:"capacity" env:"CAPACITY"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.File == "" {
		c.File = DefaultFile
	}
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return fmt.Errorf("logstream: config: %w", err)
	}
	if c.Capacity < 1 {
		return errors.New("logstream: config: Capacity must be at least 1")
	}
	return nil
}

// ParseLevel maps a level name to its slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
