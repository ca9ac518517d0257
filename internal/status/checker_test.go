package status

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/plexsphere/meshcfg/internal/command/commandtest"
	"github.com/plexsphere/meshcfg/internal/daemonconf"
	"github.com/plexsphere/meshcfg/internal/hardware"
	"github.com/plexsphere/meshcfg/internal/meshcli"
	"github.com/plexsphere/meshcfg/internal/privfs"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockServices struct {
	mu      sync.Mutex
	enabled map[string]bool
	active  map[string]bool
}

func (m *mockServices) IsAvailable() bool                     { return true }
func (m *mockServices) Enable(context.Context, string) error  { return nil }
func (m *mockServices) Disable(context.Context, string) error { return nil }
func (m *mockServices) Start(context.Context, string) error   { return nil }
func (m *mockServices) Stop(context.Context, string) error    { return nil }
func (m *mockServices) IsEnabled(_ context.Context, s string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled[s]
}
func (m *mockServices) IsActive(_ context.Context, s string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[s]
}

type mockFirewall struct {
	restricted bool
	err        error
}

func (m *mockFirewall) Restrict(int, []*net.IPNet) error { return nil }
func (m *mockFirewall) Unrestrict() error                { return nil }
func (m *mockFirewall) IsRestricted() (bool, error)      { return m.restricted, m.err }

type fixture struct {
	root     string
	dev      string
	dt       string
	boot     string
	etc      string
	runner   *commandtest.FakeRunner
	services *mockServices
	firewall *mockFirewall
	checker  *Checker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		root:     root,
		dev:      filepath.Join(root, "dev"),
		dt:       filepath.Join(root, "device-tree"),
		boot:     filepath.Join(root, "config.txt"),
		etc:      filepath.Join(root, "meshtasticd"),
		runner:   commandtest.New(),
		services: &mockServices{enabled: map[string]bool{}, active: map[string]bool{}},
		firewall: &mockFirewall{},
	}
	for _, d := range []string{f.dev, f.dt, f.etc} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	writeFile(t, f.boot, "# boot\n")

	cfg := Config{
		DevDir:           f.dev,
		BootConfig:       f.boot,
		BinDirs:          []string{filepath.Join(root, "bin")},
		AvahiServiceFile: filepath.Join(root, "meshtastic.service"),
	}
	cfg.ApplyDefaults()

	cliCfg := meshcli.Config{}
	cliCfg.ApplyDefaults()
	logger := testLogger()
	f.checker = NewChecker(
		cfg,
		f.runner,
		hardware.NewDetector(f.dt, cfg.Package, f.runner, logger),
		f.services,
		meshcli.NewClient(cliCfg, f.runner, logger),
		daemonconf.NewManager(f.etc, privfs.Local{}, logger),
		f.firewall,
		logger,
	)
	// Unmatched commands succeed with empty output; make the CLI absent.
	f.runner.On("which", commandtest.Exit(1, "", ""))
	f.runner.On("meshtastic --version", commandtest.Exit(127, "", "not found"))
	f.runner.On("pipx list", commandtest.Exit(127, "", "not found"))
	return f
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSPIEnabled_RequiresDeviceAndBothDirectives(t *testing.T) {
	tests := []struct {
		name   string
		device bool
		boot   string
		want   bool
	}{
		{"device and directives", true, "dtparam=spi=on\ndtoverlay=spi0-0cs\n", true},
		{"directives without device", false, "dtparam=spi=on\ndtoverlay=spi0-0cs\n", false},
		{"device with one directive", true, "dtparam=spi=on\n", false},
		{"device without directives", true, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.device {
				writeFile(t, filepath.Join(f.dev, "spidev0.0"), "")
			}
			writeFile(t, f.boot, tt.boot)
			if got := f.checker.SPIEnabled(context.Background()); got != tt.want {
				t.Errorf("SPIEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestI2CEnabled(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.boot, "dtparam=i2c_arm=on\n")
	if f.checker.I2CEnabled(context.Background()) {
		t.Error("I2CEnabled() = true without a device node")
	}
	writeFile(t, filepath.Join(f.dev, "i2c-1"), "")
	if !f.checker.I2CEnabled(context.Background()) {
		t.Error("I2CEnabled() = false with i2c-1 and directive")
	}
}

func TestUARTEnabled_Pi5NeedsOverlay(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.dev, "serial0"), "")
	writeFile(t, filepath.Join(f.dt, "model"), "Raspberry Pi 5 Model B Rev 1.0\x00")
	writeFile(t, f.boot, "enable_uart=1\n")

	if f.checker.UARTEnabled(context.Background()) {
		t.Error("UARTEnabled() = true on Pi 5 without dtoverlay=uart0")
	}
	writeFile(t, f.boot, "enable_uart=1\ndtoverlay=uart0\n")
	if !f.checker.UARTEnabled(context.Background()) {
		t.Error("UARTEnabled() = false with both directives")
	}
}

func TestMeshAdvMiniConfigured(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.boot, "gpio=4=op,dh\ndtoverlay=pps-gpio,gpiopin=17\n")
	if f.checker.MeshAdvMiniConfigured(context.Background()) {
		t.Error("configured without a HAT")
	}
	writeFile(t, filepath.Join(f.dt, "hat", "product"), "MeshAdv Mini\x00")
	if !f.checker.MeshAdvMiniConfigured(context.Background()) {
		t.Error("not configured with HAT and directives")
	}
}

func TestDaemonInstalled(t *testing.T) {
	t.Run("dpkg row", func(t *testing.T) {
		f := newFixture(t)
		f.runner.On("dpkg -l meshtasticd", commandtest.Exit(0,
			"Desired=Unknown\n||/ Name  Version\nii  meshtasticd:arm64  2.5.0  arm64  daemon\n", ""))
		if !f.checker.DaemonInstalled(context.Background()) {
			t.Error("DaemonInstalled() = false with ii row")
		}
	})
	t.Run("removed package row", func(t *testing.T) {
		f := newFixture(t)
		f.runner.On("dpkg -l meshtasticd", commandtest.Exit(0, "rc  meshtasticd  2.5.0  arm64  daemon\n", ""))
		if f.checker.DaemonInstalled(context.Background()) {
			t.Error("DaemonInstalled() = true with rc row")
		}
	})
	t.Run("binary", func(t *testing.T) {
		f := newFixture(t)
		f.runner.On("dpkg -l", commandtest.Exit(1, "", "no packages found"))
		writeFile(t, filepath.Join(f.root, "bin", "meshtasticd"), "")
		if !f.checker.DaemonInstalled(context.Background()) {
			t.Error("DaemonInstalled() = false with binary present")
		}
	})
}

func TestCLIInstalled_PipxFallback(t *testing.T) {
	f := newFixture(t)
	if f.checker.CLIInstalled(context.Background()) {
		t.Error("CLIInstalled() = true with no CLI")
	}
	f.runner.On("pipx list", commandtest.Exit(0, "package meshtastic 2.5.0, installed using Python 3.11\n", ""))
	if !f.checker.CLIInstalled(context.Background()) {
		t.Error("CLIInstalled() = false when pipx lists meshtastic")
	}
}

func TestAvahiEnabled(t *testing.T) {
	f := newFixture(t)
	f.runner.On("dpkg -l avahi-daemon", commandtest.Exit(0, "ii  avahi-daemon  0.8  arm64  mDNS\n", ""))
	if f.checker.AvahiEnabled(context.Background()) {
		t.Error("AvahiEnabled() = true without service file")
	}
	writeFile(t, filepath.Join(f.root, "meshtastic.service"), "<service-group/>")
	if !f.checker.AvahiEnabled(context.Background()) {
		t.Error("AvahiEnabled() = false with package and service file")
	}
}

func TestAPIRestricted_ErrorIsFalse(t *testing.T) {
	f := newFixture(t)
	f.firewall.restricted = true
	f.firewall.err = errors.New("netlink: permission denied")
	if f.checker.APIRestricted(context.Background()) {
		t.Error("APIRestricted() = true on probe error")
	}
	f.firewall.err = nil
	if !f.checker.APIRestricted(context.Background()) {
		t.Error("APIRestricted() = false with table present")
	}
}

func TestRegion_CLIUnavailable(t *testing.T) {
	f := newFixture(t)
	if got := f.checker.Region(context.Background()); got != meshcli.RegionCLIUnavailable {
		t.Errorf("Region() = %q, want %q", got, meshcli.RegionCLIUnavailable)
	}
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.dev, "spidev0.0"), "")
	writeFile(t, f.boot, "dtparam=spi=on\ndtoverlay=spi0-0cs\n")
	writeFile(t, filepath.Join(f.etc, "config.yaml"), "General: {}\n")
	writeFile(t, filepath.Join(f.etc, "config.d", "hat.yaml"), "Lora: {}\n")
	f.runner.On("meshtastic --version", commandtest.Exit(0, "2.5.0\n", ""))
	f.runner.On("meshtastic --host localhost --get lora.region", commandtest.Exit(0, "Connected to radio\nlora.region: EU_868\n", ""))
	f.runner.On("dpkg-query", commandtest.Exit(0, "2.5.0", ""))
	f.services.enabled["meshtasticd"] = true
	f.firewall.restricted = true

	s := f.checker.Snapshot(context.Background())
	if !s.SPIEnabled || !s.ConfigExists || !s.HATConfigPresent || !s.CLIInstalled || !s.BootEnabled || !s.APIRestricted {
		t.Errorf("snapshot missing expected true fields: %+v", s)
	}
	if s.I2CEnabled || s.UARTEnabled || s.ServiceActive || s.AvahiEnabled {
		t.Errorf("snapshot has unexpected true fields: %+v", s)
	}
	if s.Region != "EU_868" {
		t.Errorf("Region = %q, want EU_868", s.Region)
	}
	if s.DaemonVersion != "2.5.0" {
		t.Errorf("DaemonVersion = %q, want 2.5.0", s.DaemonVersion)
	}
	if s.TakenAt.IsZero() {
		t.Error("TakenAt not set")
	}
}
