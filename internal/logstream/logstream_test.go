package logstream

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/plexsphere/meshcfg/internal/orchestrator"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Compile-time check that Queue implements orchestrator.Notifier.
var _ orchestrator.Notifier = (*Queue)(nil)

func TestQueue_DropsNewestWhenFull(t *testing.T) {
	q := NewQueue(2)
	for i := range 3 {
		q.Post(Entry{Message: string(rune('a' + i))})
	}
	if q.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", q.Dropped())
	}
	got := q.Drain(10)
	if len(got) != 2 || got[0].Message != "a" || got[1].Message != "b" {
		t.Errorf("Drain() = %+v, want a, b", got)
	}
}

func TestQueue_DrainRespectsMax(t *testing.T) {
	q := NewQueue(10)
	for range 5 {
		q.Post(Entry{Message: "x"})
	}
	if n := len(q.Drain(3)); n != 3 {
		t.Errorf("first Drain = %d entries, want 3", n)
	}
	if n := len(q.Drain(3)); n != 2 {
		t.Errorf("second Drain = %d entries, want 2", n)
	}
	if n := len(q.Drain(3)); n != 0 {
		t.Errorf("third Drain = %d entries, want 0", n)
	}
}

func TestQueue_PerProducerOrder(t *testing.T) {
	q := NewQueue(1000)
	var wg sync.WaitGroup
	for p := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				q.Post(Entry{Message: string(rune('A' + p)), Attrs: strings.Repeat("i", i)})
			}
		}()
	}
	wg.Wait()

	last := map[string]int{}
	for _, e := range q.Drain(1000) {
		n := len(e.Attrs)
		if prev, ok := last[e.Message]; ok && n <= prev {
			t.Fatalf("producer %s out of order: %d after %d", e.Message, n, prev)
		}
		last[e.Message] = n
	}
	if len(last) != 4 {
		t.Errorf("saw %d producers, want 4", len(last))
	}
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue(4)
	q.Post(Entry{Message: "before"})
	q.Close()
	if q.Post(Entry{Message: "after"}) {
		t.Error("Post succeeded after Close")
	}
	if got := q.Drain(4); len(got) != 1 || got[0].Message != "before" {
		t.Errorf("Drain() = %+v", got)
	}
}

func TestQueue_RefreshCoalesces(t *testing.T) {
	q := NewQueue(4)
	q.OperationFinished(orchestrator.Result{OperationID: "enable-spi"})
	q.OperationFinished(orchestrator.Result{OperationID: "enable-i2c"})
	if !q.TakeRefresh() {
		t.Fatal("refresh not requested")
	}
	if q.TakeRefresh() {
		t.Error("refresh requests did not coalesce")
	}
}

func TestHandler_FormatsAttrs(t *testing.T) {
	q := NewQueue(4)
	logger := slog.New(NewHandler(q, slog.LevelInfo)).With("component", "bootconfig")
	logger.Debug("hidden")
	logger.WithGroup("edit").Info("configuration updated", "path", "/boot/firmware/config.txt", "added", "dtparam=spi=on, dtoverlay=spi0-0cs")

	got := q.Drain(4)
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	e := got[0]
	if e.Level != slog.LevelInfo || e.Message != "configuration updated" {
		t.Errorf("entry = %+v", e)
	}
	want := `component=bootconfig edit.path=/boot/firmware/config.txt edit.added="dtparam=spi=on, dtoverlay=spi0-0cs"`
	if e.Attrs != want {
		t.Errorf("Attrs = %s\nwant    %s", e.Attrs, want)
	}
}

func TestEntry_String(t *testing.T) {
	e := Entry{
		Time:    time.Date(2026, 1, 2, 13, 4, 5, 0, time.UTC),
		Level:   slog.LevelWarn,
		Message: "lock file is held",
		Attrs:   "pid=42",
	}
	if got, want := e.String(), "13:04:05 WARN  lock file is held pid=42"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestNewLogger_FansOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "installer.log")
	q := NewQueue(8)
	var console bytes.Buffer

	logger, closer, err := NewLogger(Config{Level: "info", File: path}, q, &console)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("operation started", "operation", "enable-spi")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	if got := q.Drain(8); len(got) != 1 || got[0].Attrs != "operation=enable-spi" {
		t.Errorf("queue = %+v", got)
	}
	if !strings.Contains(console.String(), "operation started") {
		t.Errorf("console = %q", console.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "operation=enable-spi") {
		t.Errorf("file = %q", data)
	}
}

func TestNewLogger_UnwritableFile(t *testing.T) {
	q := NewQueue(8)
	logger, closer, err := NewLogger(Config{File: filepath.Join(t.TempDir(), "missing", "x.log")}, q, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()
	logger.Info("still works")

	got := q.Drain(8)
	if len(got) != 2 || got[0].Level != slog.LevelWarn || got[1].Message != "still works" {
		t.Errorf("queue = %+v", got)
	}
}

func TestNewLogger_FileDisabled(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg := Config{File: FileDisabled}
	cfg.ApplyDefaults()
	if cfg.File != FileDisabled {
		t.Fatalf("File = %q after defaults, want %q", cfg.File, FileDisabled)
	}

	q := NewQueue(8)
	logger, closer, err := NewLogger(cfg, q, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()
	logger.Info("no file")

	if got := q.Drain(8); len(got) != 1 || got[0].Message != "no file" {
		t.Errorf("queue = %+v", got)
	}
	if _, err := os.Stat(filepath.Join(dir, FileDisabled)); !os.IsNotExist(err) {
		t.Errorf("log file created: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("unknown level accepted")
	}
}
