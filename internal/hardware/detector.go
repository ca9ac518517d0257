// Package hardware reports facts about the board, attached HAT, and
// installed daemon.
package hardware

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/plexsphere/meshcfg/internal/command"
)

// DefaultDeviceTreeDir is where the kernel exposes the device tree.
const DefaultDeviceTreeDir = "/proc/device-tree"

// MeshAdvMiniProduct is the HAT EEPROM product string of the MeshAdv Mini.
const MeshAdvMiniProduct = "MeshAdv Mini"

// Unknown is reported for facts that could not be read.
const Unknown = "Unknown"

// NotInstalled is reported as the daemon version when the package is absent.
const NotInstalled = "Not installed"

// queryTimeout bounds dpkg-query.
const queryTimeout = 10 * time.Second

// HardwareError reports an unreadable device-tree entry. Callers log it and
// fall back to Unknown.
type HardwareError struct {
	Path string
	Err  error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("hardware: read %s: %v", e.Path, e.Err)
}

func (e *HardwareError) Unwrap() error { return e.Err }

// HAT identifies an attached add-on board from its EEPROM.
type HAT struct {
	Product string
	Vendor  string
}

// Info is a snapshot of detected hardware facts.
type Info struct {
	Model         string
	Pi5           bool
	HAT           HAT
	HATPresent    bool
	DaemonVersion string
	Addresses     []*net.IPNet
}

// Detector reads hardware facts.
type Detector struct {
	dtDir   string
	pkg     string
	runner  command.Runner
	logger  *slog.Logger
	addrsFn func() ([]*net.IPNet, error)
}

// NewDetector creates a Detector. dtDir defaults to DefaultDeviceTreeDir.
func NewDetector(dtDir, pkg string, runner command.Runner, logger *slog.Logger) *Detector {
	if dtDir == "" {
		dtDir = DefaultDeviceTreeDir
	}
	return &Detector{
		dtDir:   dtDir,
		pkg:     pkg,
		runner:  runner,
		logger:  logger.With("component", "hardware"),
		addrsFn: LANPrefixes,
	}
}

// Model returns the board model string, e.g. "Raspberry Pi 5 Model B Rev 1.0".
func (d *Detector) Model() (string, error) {
	return d.readString("model")
}

// IsPi5 reports whether the board is a Raspberry Pi 5.
func (d *Detector) IsPi5() bool {
	model, err := d.Model()
	if err != nil {
		return false
	}
	return strings.Contains(model, "Raspberry Pi 5")
}

// HAT returns the attached HAT, if its EEPROM was read by the firmware.
func (d *Detector) HAT() (HAT, bool) {
	product, err := d.readString(filepath.Join("hat", "product"))
	if err != nil {
		return HAT{}, false
	}
	vendor, _ := d.readString(filepath.Join("hat", "vendor"))
	return HAT{Product: product, Vendor: vendor}, true
}

// IsMeshAdvMini reports whether the attached HAT is a MeshAdv Mini.
func (d *Detector) IsMeshAdvMini() bool {
	hat, ok := d.HAT()
	return ok && hat.Product == MeshAdvMiniProduct
}

// DaemonVersion returns the installed package version or NotInstalled.
func (d *Detector) DaemonVersion(ctx context.Context) string {
	res, err := d.runner.Run(ctx, command.Spec{
		Argv:    []string{"dpkg-query", "-W", "-f=${Version}", d.pkg},
		Timeout: queryTimeout,
	})
	if err != nil || !res.Success() {
		return NotInstalled
	}
	if v := strings.TrimSpace(res.Stdout); v != "" {
		return v
	}
	return NotInstalled
}

// Detect gathers every fact. Unreadable facts degrade to Unknown.
func (d *Detector) Detect(ctx context.Context) Info {
	info := Info{Model: Unknown}
	if model, err := d.Model(); err != nil {
		d.logger.Debug("board model unavailable", "error", err)
	} else {
		info.Model = model
		info.Pi5 = strings.Contains(model, "Raspberry Pi 5")
	}
	info.HAT, info.HATPresent = d.HAT()
	info.DaemonVersion = d.DaemonVersion(ctx)

	addrs, err := d.addrsFn()
	if err != nil {
		d.logger.Debug("address listing failed", "error", err)
	}
	info.Addresses = addrs
	return info
}

// readString reads a device-tree property, dropping the NUL terminators.
func (d *Detector) readString(name string) (string, error) {
	path := filepath.Join(d.dtDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &HardwareError{Path: path, Err: err}
	}
	return strings.TrimSpace(string(bytes.ReplaceAll(data, []byte{0}, nil))), nil
}
