package status

import (
	"errors"

	"github.com/plexsphere/meshcfg/internal/bootconfig"
)

// Defaults for probe locations.
const (
	DefaultDevDir           = "/dev"
	DefaultPackage          = "meshtasticd"
	DefaultService          = "meshtasticd"
	DefaultAvahiPackage     = "avahi-daemon"
	DefaultAvahiServiceFile = "/etc/avahi/services/meshtastic.service"
)

// DefaultBinDirs are searched for the daemon binary.
var DefaultBinDirs = []string{"/usr/sbin", "/usr/bin"}

// Config holds the paths and names the probes inspect.
type Config struct {
	// DevDir is the device node directory.
	// Default: /dev
	DevDir string `yaml:"dev_dir" env:"DEV_DIR"`

	// BootConfig is the firmware boot configuration file.
	// Default: /boot/firmware/config.txt
	BootConfig string `yaml:"boot_config" env:"BOOT_CONFIG"`

	// Package is the daemon's Debian package name.
	// Default: meshtasticd
	Package string `yaml:"package" env:"PACKAGE"`

	// Service is the daemon's systemd unit name.
	// Default: meshtasticd
	Service string `yaml:"service" env:"SERVICE"`

	// BinDirs are searched for the daemon binary.
	// Default: /usr/sbin, /usr/bin
	BinDirs []string `yaml:"bin_dirs" env:"BIN_DIRS"`

	// AvahiServiceFile advertises the daemon API over mDNS.
	// Default: /etc/avahi/services/meshtastic.service
	AvahiServiceFile string `yaml:"avahi_service_file" env:"AVAHI_SERVICE_FILE"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.DevDir == "" {
		c.DevDir = DefaultDevDir
	}
	if c.BootConfig == "" {
		c.BootConfig = bootconfig.DefaultPath
	}
	if c.Package == "" {
		c.Package = DefaultPackage
	}
	if c.Service == "" {
		c.Service = DefaultService
	}
	if len(c.BinDirs) == 0 {
		c.BinDirs = append([]string(nil), DefaultBinDirs...)
	}
	if c.AvahiServiceFile == "" {
		c.AvahiServiceFile = DefaultAvahiServiceFile
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.BootConfig == "" {
		return errors.New("status: config: BootConfig is required")
	}
	if c.Package == "" {
		return errors.New("status: config: Package is required")
	}
	if c.Service == "" {
		return errors.New("status: config: Service is required")
	}
	return nil
}
