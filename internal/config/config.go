// Package config aggregates the configuration of every meshcfg component.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/plexsphere/meshcfg/internal/aptlock"
	"github.com/plexsphere/meshcfg/internal/aptrepo"
	"github.com/plexsphere/meshcfg/internal/bootconfig"
	"github.com/plexsphere/meshcfg/internal/command"
	"github.com/plexsphere/meshcfg/internal/daemonconf"
	"github.com/plexsphere/meshcfg/internal/hardware"
	"github.com/plexsphere/meshcfg/internal/logstream"
	"github.com/plexsphere/meshcfg/internal/meshcli"
	"github.com/plexsphere/meshcfg/internal/orchestrator"
	"github.com/plexsphere/meshcfg/internal/procedures"
	"github.com/plexsphere/meshcfg/internal/status"
)

// DefaultPath is the default configuration file location.
const DefaultPath = "/etc/meshcfg/config.yaml"

// EnvPrefix prefixes every environment override, e.g. MESHCFG_LOG_LEVEL.
const EnvPrefix = "MESHCFG_"

// AppConfig is the top-level configuration. It aggregates all component
// configurations and is populated from a YAML file and environment
// variables via ParseConfig.
type AppConfig struct {
	// Package is the daemon's Debian package.
	// Default: meshtasticd
	Package string `yaml:"package" env:"PACKAGE"`

	// Service is the daemon's systemd unit.
	// Default: meshtasticd
	Service string `yaml:"service" env:"SERVICE"`

	// BootConfig is the firmware boot configuration file.
	// Default: /boot/firmware/config.txt
	BootConfig string `yaml:"boot_config" env:"BOOT_CONFIG"`

	// DaemonDir is the daemon's configuration directory.
	// Default: /etc/meshtasticd
	DaemonDir string `yaml:"daemon_dir" env:"DAEMON_DIR"`

	// DeviceTreeDir exposes the board model and HAT EEPROM.
	// Default: /proc/device-tree
	DeviceTreeDir string `yaml:"device_tree_dir" env:"DEVICE_TREE_DIR"`

	Log          logstream.Config    `yaml:"log" envPrefix:"LOG_"`
	Command      command.Config      `yaml:"command" envPrefix:"COMMAND_"`
	AptLock      aptlock.Config      `yaml:"apt_lock" envPrefix:"APT_LOCK_"`
	Repo         aptrepo.Config      `yaml:"repo" envPrefix:"REPO_"`
	CLI          meshcli.Config      `yaml:"cli" envPrefix:"CLI_"`
	Orchestrator orchestrator.Config `yaml:"orchestrator" envPrefix:"ORCHESTRATOR_"`
	Status       status.Config       `yaml:"status" envPrefix:"STATUS_"`
	Procedures   procedures.Config   `yaml:"procedures" envPrefix:"PROCEDURES_"`
}

// ApplyDefaults sets default values for zero-valued fields. The shared
// top-level settings flow into the component configurations that leave
// them unset.
func (c *AppConfig) ApplyDefaults() {
	if c.Package == "" {
		c.Package = status.DefaultPackage
	}
	if c.Service == "" {
		c.Service = status.DefaultService
	}
	if c.BootConfig == "" {
		c.BootConfig = bootconfig.DefaultPath
	}
	if c.DaemonDir == "" {
		c.DaemonDir = daemonconf.DefaultDir
	}
	if c.DeviceTreeDir == "" {
		c.DeviceTreeDir = hardware.DefaultDeviceTreeDir
	}

	inherit(&c.Status.Package, c.Package)
	inherit(&c.Status.Service, c.Service)
	inherit(&c.Status.BootConfig, c.BootConfig)
	inherit(&c.Procedures.Package, c.Package)
	inherit(&c.Procedures.Service, c.Service)
	inherit(&c.Procedures.BootConfig, c.BootConfig)
	inherit(&c.Procedures.AvahiServiceFile, c.Status.AvahiServiceFile)

	c.Log.ApplyDefaults()
	c.Command.ApplyDefaults()
	c.AptLock.ApplyDefaults()
	c.Repo.ApplyDefaults()
	c.CLI.ApplyDefaults()
	c.Orchestrator.ApplyDefaults()
	c.Status.ApplyDefaults()
	c.Procedures.ApplyDefaults()
}

func inherit(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// Validate checks that required fields are set and values are acceptable.
func (c *AppConfig) Validate() error {
	validators := []interface{ Validate() error }{
		&c.Log,
		&c.Command,
		&c.AptLock,
		&c.Repo,
		&c.CLI,
		&c.Orchestrator,
		&c.Status,
		&c.Procedures,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ParseConfig reads the YAML file at path, applies MESHCFG_* environment
// overrides, then defaults, and validates the result. A missing file
// yields the defaults.
func ParseConfig(path string) (*AppConfig, error) {
	return parse(path, nil)
}

// parse is ParseConfig with an explicit environment; nil uses the process
// environment.
func parse(path string, environ map[string]string) (*AppConfig, error) {
	var cfg AppConfig
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	opts := env.Options{Prefix: EnvPrefix, Environment: environ}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
