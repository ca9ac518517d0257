package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/plexsphere/meshcfg/internal/aptrepo"
	"github.com/plexsphere/meshcfg/internal/logstream"
	"github.com/plexsphere/meshcfg/internal/orchestrator"
	"github.com/plexsphere/meshcfg/internal/retry"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := parse(filepath.Join(t.TempDir(), "absent.yaml"), map[string]string{})
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	if cfg.Package != "meshtasticd" || cfg.BootConfig != "/boot/firmware/config.txt" {
		t.Errorf("top-level defaults = %+v", cfg)
	}
	if cfg.Log.File != logstream.DefaultFile {
		t.Errorf("Log.File = %q", cfg.Log.File)
	}
	if cfg.Repo.OSVersion != aptrepo.DefaultOSVersion {
		t.Errorf("Repo.OSVersion = %q", cfg.Repo.OSVersion)
	}
	if cfg.Orchestrator.Workers != orchestrator.DefaultWorkers {
		t.Errorf("Orchestrator.Workers = %d", cfg.Orchestrator.Workers)
	}
	if cfg.Procedures.Retry.MaxAttempts != retry.DefaultMaxAttempts || cfg.Procedures.Retry.Delay != retry.DefaultDelay {
		t.Errorf("Procedures.Retry = %+v", cfg.Procedures.Retry)
	}
	if cfg.Command.DefaultTimeout != 300*time.Second {
		t.Errorf("Command.DefaultTimeout = %v", cfg.Command.DefaultTimeout)
	}
}

func TestParseConfig_YAML(t *testing.T) {
	path := writeConfig(t, `
boot_config: /boot/config.txt
log:
  level: debug
repo:
  os_version: Raspbian_13
orchestrator:
  workers: 2
procedures:
  apt_timeout: 15m
  retry:
    max_attempts: 5
    delay: 3s
`)
	cfg, err := parse(path, map[string]string{})
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	if cfg.Status.BootConfig != "/boot/config.txt" || cfg.Procedures.BootConfig != "/boot/config.txt" {
		t.Errorf("boot config not inherited: status=%q procedures=%q", cfg.Status.BootConfig, cfg.Procedures.BootConfig)
	}
	if cfg.Log.Level != "debug" || cfg.Repo.OSVersion != "Raspbian_13" || cfg.Orchestrator.Workers != 2 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Procedures.AptTimeout != 15*time.Minute {
		t.Errorf("AptTimeout = %v", cfg.Procedures.AptTimeout)
	}
	if cfg.Procedures.Retry.MaxAttempts != 5 || cfg.Procedures.Retry.Delay != 3*time.Second {
		t.Errorf("Retry = %+v", cfg.Procedures.Retry)
	}
}

func TestParseConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")
	cfg, err := parse(path, map[string]string{
		"MESHCFG_LOG_LEVEL":                     "warn",
		"MESHCFG_PROCEDURES_RETRY_MAX_ATTEMPTS": "4",
		"MESHCFG_APT_LOCK_LOCK_FILES":           "/tmp/a,/tmp/b",
		"MESHCFG_STATUS_DEV_DIR":                "/tmp/dev",
	})
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Procedures.Retry.MaxAttempts != 4 {
		t.Errorf("MaxAttempts = %d, want 4", cfg.Procedures.Retry.MaxAttempts)
	}
	if len(cfg.AptLock.LockFiles) != 2 || cfg.AptLock.LockFiles[1] != "/tmp/b" {
		t.Errorf("LockFiles = %v", cfg.AptLock.LockFiles)
	}
	if cfg.Status.DevDir != "/tmp/dev" {
		t.Errorf("DevDir = %q", cfg.Status.DevDir)
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad yaml", "log: [", "config: parse"},
		{"bad level", "log:\n  level: loud\n", "logstream: config"},
		{"zero attempts", "procedures:\n  retry:\n    max_attempts: -1\n", "retry: policy"},
		{"bad repo url", "repo:\n  base_url: ftp://example.org\n", "aptrepo: config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(writeConfig(t, tt.yaml), map[string]string{})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
