package cmd

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/plexsphere/meshcfg/internal/aptlock"
	"github.com/plexsphere/meshcfg/internal/hardware"
	"github.com/plexsphere/meshcfg/internal/orchestrator"
	"github.com/plexsphere/meshcfg/internal/procedures"
	"github.com/plexsphere/meshcfg/internal/status"
)

func TestPrintResult_Success(t *testing.T) {
	var buf bytes.Buffer
	err := printResult(&buf, orchestrator.Result{
		OperationID: "enable-spi",
		Success:     true,
		Message:     "SPI enabled, reboot required",
		BackupPath:  "/boot/firmware/config.txt.backup_20250101_120000",
		Warnings:    []string{"raspi-config failed"},
		Duration:    1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("printResult: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"OK: SPI enabled", "backup: /boot/firmware/config.txt.backup_", "warning: raspi-config failed", "1.5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintResult_Failure(t *testing.T) {
	var buf bytes.Buffer
	err := printResult(&buf, orchestrator.Result{
		OperationID: "install-daemon:beta",
		Message:     "installation failed",
		Detail:      "E: Could not get lock",
	})
	if !errors.Is(err, errOperationFailed) {
		t.Fatalf("err = %v, want errOperationFailed", err)
	}
	out := buf.String()
	if !strings.Contains(out, "FAILED: installation failed") || !strings.Contains(out, "E: Could not get lock") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestPrintEntries(t *testing.T) {
	var buf bytes.Buffer
	printEntries(&buf, []procedures.Entry{
		{Name: "install-daemon", Description: "Install", Arg: "channel", Choices: []string{"beta", "alpha", "daily"}},
		{Name: "set-region", Description: "Region", Arg: "region", Choices: []string{"US", "EU_433", "EU_868", "CN", "JP"}},
		{Name: "apply-hat-config", Description: "HAT", Arg: "fragment"},
		{Name: "send-text", Description: "Send", Params: []string{"message"}},
	})
	out := buf.String()
	for _, want := range []string{
		"install-daemon:<beta|alpha|daily>",
		"set-region:<region>",
		"apply-hat-config[:fragment]",
		"send-text --param message=...",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintSnapshot(t *testing.T) {
	var buf bytes.Buffer
	printSnapshot(&buf, status.Snapshot{
		DaemonVersion: "2.5.0",
		SPIEnabled:    true,
		Region:        "EU_868",
		Hardware: hardware.Info{
			Model:      "Raspberry Pi 5 Model B Rev 1.0",
			HATPresent: true,
			HAT:        hardware.HAT{Product: "MeshAdv Mini"},
		},
	})
	out := buf.String()
	for _, want := range []string{"Raspberry Pi 5", "MeshAdv Mini", "2.5.0", "SPI:            enabled", "I2C:            disabled", "EU_868"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintLocks(t *testing.T) {
	var buf bytes.Buffer
	printLocks(&buf, []aptlock.LockState{
		{Path: "/var/lib/dpkg/lock"},
		{Path: "/var/lib/dpkg/lock-frontend", Exists: true, Held: true, PID: 4242},
		{Path: "/var/lib/apt/lists/lock", Exists: true},
	})
	out := buf.String()
	for _, want := range []string{"lock-frontend (held by pid 4242)", "/var/lib/apt/lists/lock (stale)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "/var/lib/dpkg/lock\n") || strings.Contains(out, "/var/lib/dpkg/lock (") {
		t.Errorf("absent lock listed:\n%s", out)
	}

	buf.Reset()
	printLocks(&buf, nil)
	if !strings.Contains(buf.String(), "none") {
		t.Errorf("empty output = %q", buf.String())
	}
}

func TestListCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MESHCFG_LOG_FILE", filepath.Join(dir, "meshcfg.log"))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"list", "--config", filepath.Join(dir, "missing.yaml")})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"install-daemon", "enable-spi", "set-region", "send-text"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("list output missing %q:\n%s", want, buf.String())
		}
	}
}
