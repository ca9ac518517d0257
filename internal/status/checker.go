// Package status answers read-only questions about the system. Every probe
// reports false (or a placeholder string) when it cannot determine the
// answer; probe failures are logged at debug level and never returned.
package status

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/plexsphere/meshcfg/internal/bootconfig"
	"github.com/plexsphere/meshcfg/internal/command"
	"github.com/plexsphere/meshcfg/internal/daemonconf"
	"github.com/plexsphere/meshcfg/internal/firewall"
	"github.com/plexsphere/meshcfg/internal/hardware"
	"github.com/plexsphere/meshcfg/internal/meshcli"
	"github.com/plexsphere/meshcfg/internal/systemd"
)

// probeTimeout bounds each probe command.
const probeTimeout = 10 * time.Second

// snapshotLimit caps concurrent probes in Snapshot.
const snapshotLimit = 4

// Snapshot is the full system status shown on the main screen.
type Snapshot struct {
	DaemonInstalled       bool
	DaemonVersion         string
	SPIEnabled            bool
	I2CEnabled            bool
	UARTEnabled           bool
	MeshAdvMiniConfigured bool
	HATConfigPresent      bool
	ConfigExists          bool
	CLIInstalled          bool
	AvahiEnabled          bool
	BootEnabled           bool
	ServiceActive         bool
	APIRestricted         bool
	Region                string
	Hardware              hardware.Info
	TakenAt               time.Time
}

// Checker runs status probes.
type Checker struct {
	cfg      Config
	runner   command.Runner
	detector *hardware.Detector
	services systemd.ServiceManager
	cli      *meshcli.Client
	daemon   *daemonconf.Manager
	firewall firewall.Controller
	logger   *slog.Logger
	now      func() time.Time
}

// NewChecker creates a Checker. cfg must have defaults applied. fw may be nil
// when the firewall cannot be inspected; APIRestricted then reports false.
func NewChecker(
	cfg Config,
	runner command.Runner,
	detector *hardware.Detector,
	services systemd.ServiceManager,
	cli *meshcli.Client,
	daemon *daemonconf.Manager,
	fw firewall.Controller,
	logger *slog.Logger,
) *Checker {
	return &Checker{
		cfg:      cfg,
		runner:   runner,
		detector: detector,
		services: services,
		cli:      cli,
		daemon:   daemon,
		firewall: fw,
		logger:   logger.With("component", "status"),
		now:      time.Now,
	}
}

// DaemonInstalled reports whether the daemon package or binary is present.
func (c *Checker) DaemonInstalled(ctx context.Context) bool {
	if c.PackageInstalled(ctx, c.cfg.Package) {
		return true
	}
	for _, dir := range c.cfg.BinDirs {
		if fileExists(filepath.Join(dir, c.cfg.Package)) {
			return true
		}
	}
	res, err := c.probe(ctx, "which", c.cfg.Package)
	return err == nil && res.Success() && strings.TrimSpace(res.Stdout) != ""
}

// SPIEnabled requires the spidev node and both SPI directives.
func (c *Checker) SPIEnabled(ctx context.Context) bool {
	if !fileExists(filepath.Join(c.cfg.DevDir, "spidev0.0")) {
		return false
	}
	return c.bootHas(bootconfig.SPIDirectives()...)
}

// I2CEnabled requires an i2c-N node and the I2C directive.
func (c *Checker) I2CEnabled(ctx context.Context) bool {
	found := false
	for i := 0; i < 10; i++ {
		if fileExists(filepath.Join(c.cfg.DevDir, fmt.Sprintf("i2c-%d", i))) {
			found = true
			break
		}
	}
	return found && c.bootHas(bootconfig.I2CDirectives()...)
}

// UARTEnabled requires serial0 and the UART directives for this board.
func (c *Checker) UARTEnabled(ctx context.Context) bool {
	if !fileExists(filepath.Join(c.cfg.DevDir, "serial0")) {
		return false
	}
	return c.bootHas(bootconfig.UARTDirectives(c.detector.IsPi5())...)
}

// MeshAdvMiniConfigured requires a MeshAdv Mini HAT and its directives.
func (c *Checker) MeshAdvMiniConfigured(ctx context.Context) bool {
	return c.detector.IsMeshAdvMini() && c.bootHas(bootconfig.MeshAdvMiniDirectives()...)
}

// HATConfigPresent reports whether a fragment is active in config.d.
func (c *Checker) HATConfigPresent(ctx context.Context) bool {
	return len(c.daemon.Active()) > 0
}

// ConfigExists reports whether the daemon's main config file exists.
func (c *Checker) ConfigExists(ctx context.Context) bool {
	return c.daemon.ConfigExists()
}

// CLIInstalled reports whether the mesh CLI runs or pipx lists it.
func (c *Checker) CLIInstalled(ctx context.Context) bool {
	if c.cli.Installed(ctx) {
		return true
	}
	res, err := c.probe(ctx, "pipx", "list")
	return err == nil && res.Success() && strings.Contains(res.Stdout, "meshtastic")
}

// AvahiEnabled requires the avahi package and the service advertisement.
func (c *Checker) AvahiEnabled(ctx context.Context) bool {
	return c.PackageInstalled(ctx, DefaultAvahiPackage) && fileExists(c.cfg.AvahiServiceFile)
}

// BootEnabled reports whether the daemon starts on boot.
func (c *Checker) BootEnabled(ctx context.Context) bool {
	return c.services.IsEnabled(ctx, c.cfg.Service)
}

// ServiceActive reports whether the daemon is running.
func (c *Checker) ServiceActive(ctx context.Context) bool {
	return c.services.IsActive(ctx, c.cfg.Service)
}

// APIRestricted reports whether the API port firewall table is present.
func (c *Checker) APIRestricted(ctx context.Context) bool {
	if c.firewall == nil {
		return false
	}
	ok, err := c.firewall.IsRestricted()
	if err != nil {
		c.logger.Debug("firewall probe failed", "error", err)
		return false
	}
	return ok
}

// Region returns the configured LoRa region or a placeholder.
func (c *Checker) Region(ctx context.Context) string {
	return c.cli.Region(ctx)
}

// Snapshot runs every probe, at most snapshotLimit at a time.
func (c *Checker) Snapshot(ctx context.Context) Snapshot {
	var s Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(snapshotLimit)

	bools := []struct {
		dst   *bool
		probe func(context.Context) bool
	}{
		{&s.DaemonInstalled, c.DaemonInstalled},
		{&s.SPIEnabled, c.SPIEnabled},
		{&s.I2CEnabled, c.I2CEnabled},
		{&s.UARTEnabled, c.UARTEnabled},
		{&s.MeshAdvMiniConfigured, c.MeshAdvMiniConfigured},
		{&s.HATConfigPresent, c.HATConfigPresent},
		{&s.ConfigExists, c.ConfigExists},
		{&s.CLIInstalled, c.CLIInstalled},
		{&s.AvahiEnabled, c.AvahiEnabled},
		{&s.BootEnabled, c.BootEnabled},
		{&s.ServiceActive, c.ServiceActive},
		{&s.APIRestricted, c.APIRestricted},
	}
	for _, b := range bools {
		g.Go(func() error {
			*b.dst = b.probe(gctx)
			return nil
		})
	}
	g.Go(func() error {
		s.Region = c.Region(gctx)
		return nil
	})
	g.Go(func() error {
		s.Hardware = c.detector.Detect(gctx)
		return nil
	})
	_ = g.Wait()

	s.DaemonVersion = s.Hardware.DaemonVersion
	s.TakenAt = c.now()
	return s
}

// PackageInstalled reports whether dpkg lists pkg as installed ("ii").
func (c *Checker) PackageInstalled(ctx context.Context, pkg string) bool {
	res, err := c.probe(ctx, "dpkg", "-l", pkg)
	if err != nil || !res.Success() {
		return false
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "ii" && (fields[1] == pkg || strings.HasPrefix(fields[1], pkg+":")) {
			return true
		}
	}
	return false
}

// bootHas reads the boot configuration directly; it is world-readable.
func (c *Checker) bootHas(directives ...bootconfig.Directive) bool {
	data, err := os.ReadFile(c.cfg.BootConfig)
	if err != nil {
		c.logger.Debug("boot config unreadable", "path", c.cfg.BootConfig, "error", err)
		return false
	}
	return bootconfig.Present(string(data), directives...)
}

func (c *Checker) probe(ctx context.Context, argv ...string) (command.Result, error) {
	res, err := c.runner.Run(ctx, command.Spec{Argv: argv, Timeout: probeTimeout})
	if err != nil {
		c.logger.Debug("probe failed", "command", strings.Join(argv, " "), "error", err)
	}
	return res, err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
