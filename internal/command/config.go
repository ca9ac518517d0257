// Package command runs external programs with bounded time and captured output.
package command

import (
	"errors"
	"time"
)

// DefaultTimeout is the timeout applied to a Spec that does not set one.
const DefaultTimeout = 300 * time.Second

// DefaultMaxOutputBytes is the maximum captured size per output stream (1 MiB).
const DefaultMaxOutputBytes = 1 << 20

// DefaultSudoPath is the elevation helper used for privileged specs.
const DefaultSudoPath = "sudo"

// Config holds the configuration for an ExecRunner.
type Config struct {
	// DefaultTimeout bounds commands whose Spec has no timeout.
	// Default: 300s
	DefaultTimeout time.Duration `yaml:"default_timeout" env:"DEFAULT_TIMEOUT"`

	// MaxOutputBytes caps stdout and stderr capture independently.
	// Default: 1 MiB
	MaxOutputBytes int64 `yaml:"max_output_bytes" env:"MAX_OUTPUT_BYTES"`

	// SudoPath is the program used to elevate privileged commands when the
	// process is not already running as root.
	// Default: sudo
	SudoPath string `yaml:"sudo_path" env:"SUDO_PATH"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	if c.MaxOutputBytes == 0 {
		c.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if c.SudoPath == "" {
		c.SudoPath = DefaultSudoPath
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.DefaultTimeout < time.Second {
		return errors.New("command: config: DefaultTimeout must be at least 1s")
	}
	if c.MaxOutputBytes < 1024 {
		return errors.New("command: config: MaxOutputBytes must be at least 1024")
	}
	if c.SudoPath == "" {
		return errors.New("command: config: SudoPath is required")
	}
	return nil
}
