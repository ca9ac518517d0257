// Package aptlock detects and clears stale or contended apt/dpkg locks.
package aptlock

import (
	"errors"
	"time"
)

// DefaultLockFiles are the lock files apt and dpkg take while working.
var DefaultLockFiles = []string{
	"/var/lib/dpkg/lock",
	"/var/lib/dpkg/lock-frontend",
	"/var/cache/apt/archives/lock",
	"/var/lib/apt/lists/lock",
}

// DefaultProcessNames are the package-manager processes terminated when a
// lock is actively held.
var DefaultProcessNames = []string{"apt", "apt-get", "dpkg"}

// DefaultSettleDelay is the pause after killing package managers before
// locks are re-checked.
const DefaultSettleDelay = 2 * time.Second

// DefaultConfigureTimeout bounds "dpkg --configure -a".
const DefaultConfigureTimeout = 60 * time.Second

// Config holds the configuration for the lock recovery service.
type Config struct {
	// LockFiles lists the lock files to inspect.
	// Default: DefaultLockFiles
	LockFiles []string `yaml:"lock_files" env:"LOCK_FILES"`

	// ProcessNames lists the processes killed when a lock is held.
	// Default: apt, apt-get, dpkg
	ProcessNames []string `yaml:"process_names" env:"PROCESS_NAMES"`

	// SettleDelay is the wait after killing processes.
	// Default: 2s
	SettleDelay time.Duration `yaml:"settle_delay" env:"SETTLE_DELAY"`

	// ConfigureTimeout bounds the interrupted-install repair.
	// Default: 60s
	ConfigureTimeout time.Duration `yaml:"configure_timeout" env:"CONFIGURE_TIMEOUT"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if len(c.LockFiles) == 0 {
		c.LockFiles = append([]string(nil), DefaultLockFiles...)
	}
	if len(c.ProcessNames) == 0 {
		c.ProcessNames = append([]string(nil), DefaultProcessNames...)
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.ConfigureTimeout == 0 {
		c.ConfigureTimeout = DefaultConfigureTimeout
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if len(c.ProcessNames) == 0 {
		return errors.New("aptlock: config: ProcessNames is required")
	}
	if c.SettleDelay < 0 {
		return errors.New("aptlock: config: SettleDelay must not be negative")
	}
	if c.ConfigureTimeout < time.Second {
		return errors.New("aptlock: config: ConfigureTimeout must be at least 1s")
	}
	return nil
}
