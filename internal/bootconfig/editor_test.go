package bootconfig

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/plexsphere/meshcfg/internal/privfs"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const baseConfig = "# For more options see config.txt docs\narm_64bit=1\ncamera_auto_detect=1\n"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func newTestEditor(fsys privfs.FS) *Editor {
	e := NewEditor(fsys, testLogger())
	e.now = func() time.Time { return time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC) }
	return e
}

func TestApplyDirectives_AppendsOnceAndBacksUp(t *testing.T) {
	path := writeConfig(t, baseConfig)
	e := newTestEditor(privfs.Local{})

	backup, changed, err := e.ApplyDirectives(context.Background(), path, SPIDirectives())
	if err != nil {
		t.Fatalf("ApplyDirectives: %v", err)
	}
	if !changed {
		t.Error("changed = false, want true")
	}

	want := baseConfig + "\n# SPI Configuration\ndtparam=spi=on\ndtoverlay=spi0-0cs\n"
	if got := readFile(t, path); got != want {
		t.Errorf("content =\n%q\nwant\n%q", got, want)
	}
	if got := readFile(t, backup); got != baseConfig {
		t.Errorf("backup content = %q, want pre-edit content", got)
	}
	if !strings.HasSuffix(backup, ".backup_20261018_093000") {
		t.Errorf("backup path = %q", backup)
	}
}

func TestApplyDirectives_PresentLeavesFileIdentical(t *testing.T) {
	content := baseConfig + "dtparam=spi=on\ndtoverlay=spi0-0cs\n"
	path := writeConfig(t, content)
	e := newTestEditor(privfs.Local{})

	_, changed, err := e.ApplyDirectives(context.Background(), path, SPIDirectives())
	if err != nil {
		t.Fatalf("ApplyDirectives: %v", err)
	}
	if changed {
		t.Error("changed = true, want false")
	}
	if got := readFile(t, path); got != content {
		t.Errorf("file modified: %q", got)
	}
}

func TestApplyDirectives_Idempotent(t *testing.T) {
	path := writeConfig(t, baseConfig)
	e := newTestEditor(privfs.Local{})
	ctx := context.Background()

	if _, _, err := e.ApplyDirectives(ctx, path, UARTDirectives(true)); err != nil {
		t.Fatal(err)
	}
	once := readFile(t, path)

	backup2, changed, err := e.ApplyDirectives(ctx, path, UARTDirectives(true))
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("second application reported changed")
	}
	if got := readFile(t, path); got != once {
		t.Errorf("second application altered file:\n%q\nvs\n%q", got, once)
	}
	if !strings.HasSuffix(backup2, "_1") {
		t.Errorf("second backup in the same second should get a suffix, got %q", backup2)
	}
	if strings.Count(once, "# GPS/UART Configuration") != 1 {
		t.Errorf("header should appear once:\n%s", once)
	}
}

func TestApplyDirectives_PartiallyPresent(t *testing.T) {
	path := writeConfig(t, "dtparam=spi=on")
	e := newTestEditor(privfs.Local{})

	_, changed, err := e.ApplyDirectives(context.Background(), path, SPIDirectives())
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("changed = false, want true")
	}
	want := "dtparam=spi=on\n\n# SPI Configuration\ndtoverlay=spi0-0cs\n"
	if got := readFile(t, path); got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
}

func TestApplyDirectives_MultipleGroups(t *testing.T) {
	path := writeConfig(t, "")
	e := newTestEditor(privfs.Local{})

	directives := append(I2CDirectives(), MeshAdvMiniDirectives()...)
	if _, _, err := e.ApplyDirectives(context.Background(), path, directives); err != nil {
		t.Fatal(err)
	}
	want := "\n# I2C Configuration\ndtparam=i2c_arm=on\n" +
		"\n# MeshAdv Mini Configuration\ngpio=4=op,dh\ndtoverlay=pps-gpio,gpiopin=17\n"
	if got := readFile(t, path); got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
}

// failingWriteFS rejects every write.
type failingWriteFS struct{ privfs.Local }

func (failingWriteFS) WriteFile(context.Context, string, []byte, os.FileMode) error {
	return errors.New("read-only file system")
}

func TestApplyDirectives_WriteFailureLeavesOriginal(t *testing.T) {
	path := writeConfig(t, baseConfig)
	e := newTestEditor(failingWriteFS{})

	_, changed, err := e.ApplyDirectives(context.Background(), path, SPIDirectives())
	var cwe *ConfigWriteError
	if !errors.As(err, &cwe) {
		t.Fatalf("err = %v, want *ConfigWriteError", err)
	}
	if cwe.Op != "write" {
		t.Errorf("Op = %q, want write", cwe.Op)
	}
	if changed {
		t.Error("changed = true on failure")
	}
	if got := readFile(t, path); got != baseConfig {
		t.Errorf("original modified: %q", got)
	}
}

func TestApplyDirectives_MissingFile(t *testing.T) {
	e := newTestEditor(privfs.Local{})
	_, _, err := e.ApplyDirectives(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), SPIDirectives())
	var cwe *ConfigWriteError
	if !errors.As(err, &cwe) || cwe.Op != "backup" {
		t.Fatalf("err = %v, want backup ConfigWriteError", err)
	}
}

func TestApplyDirectives_ConcurrentFeatures(t *testing.T) {
	path := writeConfig(t, baseConfig)
	e := newTestEditor(privfs.Local{})
	ctx := context.Background()

	sets := [][]Directive{SPIDirectives(), I2CDirectives(), UARTDirectives(false), MeshAdvMiniDirectives()}
	var wg sync.WaitGroup
	for _, ds := range sets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := e.ApplyDirectives(ctx, path, ds); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got := readFile(t, path)
	for _, ds := range sets {
		for _, d := range ds {
			if strings.Count(got, d.Marker) != 1 {
				t.Errorf("marker %q appears %d times", d.Marker, strings.Count(got, d.Marker))
			}
		}
	}
	if !strings.HasPrefix(got, baseConfig) {
		t.Error("original content not preserved as prefix")
	}
}

func TestPresent(t *testing.T) {
	if !Present("dtparam=spi=on\ndtoverlay=spi0-0cs\n", SPIDirectives()...) {
		t.Error("Present = false for complete set")
	}
	if Present("dtparam=spi=on\n", SPIDirectives()...) {
		t.Error("Present = true for partial set")
	}
}
