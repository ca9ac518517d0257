package procedures

import (
	"errors"
	"time"

	"github.com/plexsphere/meshcfg/internal/bootconfig"
	"github.com/plexsphere/meshcfg/internal/firewall"
	"github.com/plexsphere/meshcfg/internal/retry"
	"github.com/plexsphere/meshcfg/internal/status"
)

// Defaults for package and command handling.
const (
	DefaultAptTimeout        = 600 * time.Second
	DefaultCommandTimeout    = 300 * time.Second
	DefaultKeyFetchTimeout   = 60 * time.Second
	DefaultCLIInstallTimeout = 600 * time.Second
)

// Config holds the configuration of the operation catalog.
type Config struct {
	// Package is the daemon's Debian package.
	// Default: meshtasticd
	Package string `yaml:"package" env:"PACKAGE"`

	// Service is the daemon's systemd unit.
	// Default: meshtasticd
	Service string `yaml:"service" env:"SERVICE"`

	// BootConfig is the firmware boot configuration file.
	// Default: /boot/firmware/config.txt
	BootConfig string `yaml:"boot_config" env:"BOOT_CONFIG"`

	// AvahiServiceFile is the mDNS advertisement written by enable-avahi.
	// Default: /etc/avahi/services/meshtastic.service
	AvahiServiceFile string `yaml:"avahi_service_file" env:"AVAHI_SERVICE_FILE"`

	// APIPort is the daemon's TCP API port, advertised over mDNS and
	// restricted by the firewall.
	// Default: 4403
	APIPort int `yaml:"api_port" env:"API_PORT"`

	// AptTimeout bounds each apt invocation.
	// Default: 600s
	AptTimeout time.Duration `yaml:"apt_timeout" env:"APT_TIMEOUT"`

	// CommandTimeout bounds other system commands.
	// Default: 300s
	CommandTimeout time.Duration `yaml:"command_timeout" env:"COMMAND_TIMEOUT"`

	// KeyFetchTimeout bounds the repository key download.
	// Default: 60s
	KeyFetchTimeout time.Duration `yaml:"key_fetch_timeout" env:"KEY_FETCH_TIMEOUT"`

	// CLIInstallTimeout bounds "pipx install".
	// Default: 600s
	CLIInstallTimeout time.Duration `yaml:"cli_install_timeout" env:"CLI_INSTALL_TIMEOUT"`

	// Retry governs apt commands that may hit lock contention.
	Retry retry.Policy `yaml:"retry" envPrefix:"RETRY_"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Package == "" {
		c.Package = status.DefaultPackage
	}
	if c.Service == "" {
		c.Service = status.DefaultService
	}
	if c.BootConfig == "" {
		c.BootConfig = bootconfig.DefaultPath
	}
	if c.AvahiServiceFile == "" {
		c.AvahiServiceFile = status.DefaultAvahiServiceFile
	}
	if c.APIPort == 0 {
		c.APIPort = firewall.DefaultAPIPort
	}
	if c.AptTimeout == 0 {
		c.AptTimeout = DefaultAptTimeout
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.KeyFetchTimeout == 0 {
		c.KeyFetchTimeout = DefaultKeyFetchTimeout
	}
	if c.CLIInstallTimeout == 0 {
		c.CLIInstallTimeout = DefaultCLIInstallTimeout
	}
	c.Retry.ApplyDefaults()
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Package == "" {
		return errors.New("procedures: config: Package is required")
	}
	if c.Service == "" {
		return errors.New("procedures: config: Service is required")
	}
	if c.APIPort < 1 || c.APIPort > 65535 {
		return errors.New("procedures: config: APIPort must be between 1 and 65535")
	}
	if c.AptTimeout < time.Second {
		return errors.New("procedures: config: AptTimeout must be at least 1s")
	}
	if c.CommandTimeout < time.Second {
		return errors.New("procedures: config: CommandTimeout must be at least 1s")
	}
	if c.KeyFetchTimeout < time.Second {
		return errors.New("procedures: config: KeyFetchTimeout must be at least 1s")
	}
	if c.CLIInstallTimeout < time.Second {
		return errors.New("procedures: config: CLIInstallTimeout must be at least 1s")
	}
	return c.Retry.Validate()
}
