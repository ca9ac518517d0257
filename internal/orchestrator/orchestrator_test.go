package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/plexsphere/meshcfg/internal/command"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockNotifier struct {
	mu      sync.Mutex
	results []Result
}

func (m *mockNotifier) OperationFinished(res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

func newTestOrchestrator(t *testing.T, cfg Config, n Notifier) *Orchestrator {
	t.Helper()
	cfg.ApplyDefaults()
	o := New(cfg, n, testLogger())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
	return o
}

func waitResult(t *testing.T, h *Handle) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return res
}

func waitFor(t *testing.T, timeout time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("waitFor: timed out")
}

func step(name string, fn func(context.Context, *Report) error) Step {
	return Step{Name: name, Run: fn}
}

func ok(context.Context, *Report) error { return nil }

func TestSubmit_RunsStepsInOrder(t *testing.T) {
	notifier := &mockNotifier{}
	o := newTestOrchestrator(t, Config{}, notifier)

	var order []string
	record := func(name string) func(context.Context, *Report) error {
		return func(context.Context, *Report) error {
			order = append(order, name)
			return nil
		}
	}
	h, err := o.Submit(Operation{
		ID:             "enable-spi",
		Steps:          []Step{step("a", record("a")), step("b", record("b")), step("c", record("c"))},
		SuccessMessage: "SPI enabled",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	res := waitResult(t, h)
	if !res.Success || res.State != StateSucceeded {
		t.Fatalf("result = %+v, want success", res)
	}
	if res.Message != "SPI enabled" {
		t.Errorf("Message = %q", res.Message)
	}
	if res.RunID != h.RunID || res.OperationID != "enable-spi" {
		t.Errorf("ids = %q/%q", res.OperationID, res.RunID)
	}
	if strings.Join(order, ",") != "a,b,c" {
		t.Errorf("order = %v", order)
	}
	waitFor(t, time.Second, func() bool { return notifier.count() == 1 })
}

func TestSubmit_AlreadyRunningThenResubmit(t *testing.T) {
	o := newTestOrchestrator(t, Config{}, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	blocking := Operation{
		ID: "install-daemon:beta",
		Steps: []Step{step("install", func(context.Context, *Report) error {
			close(started)
			<-release
			return nil
		})},
	}

	h1, err := o.Submit(blocking)
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	<-started

	_, err = o.Submit(Operation{ID: "install-daemon:beta", Steps: []Step{step("x", ok)}})
	var are *AlreadyRunningError
	if !errors.As(err, &are) {
		t.Fatalf("second Submit err = %v, want *AlreadyRunningError", err)
	}
	if are.State != StateRunning || are.RunID != h1.RunID {
		t.Errorf("AlreadyRunningError = %+v", are)
	}

	close(release)
	if res := waitResult(t, h1); !res.Success {
		t.Fatalf("first run failed: %+v", res)
	}

	h3, err := o.Submit(Operation{ID: "install-daemon:beta", Steps: []Step{step("x", ok)}})
	if err != nil {
		t.Fatalf("resubmit after completion: %v", err)
	}
	if res := waitResult(t, h3); !res.Success {
		t.Errorf("resubmitted run failed: %+v", res)
	}
}

func TestSubmit_DifferentOperationsRunConcurrently(t *testing.T) {
	o := newTestOrchestrator(t, Config{Workers: 2}, nil)

	var running atomic.Int32
	var peak atomic.Int32
	release := make(chan struct{})
	body := func(context.Context, *Report) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return nil
	}

	h1, err := o.Submit(Operation{ID: "enable-spi", Steps: []Step{step("s", body)}})
	if err != nil {
		t.Fatal(err)
	}
	h2, err := o.Submit(Operation{ID: "enable-i2c", Steps: []Step{step("s", body)}})
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, func() bool { return running.Load() == 2 })
	close(release)
	waitResult(t, h1)
	waitResult(t, h2)
	if peak.Load() != 2 {
		t.Errorf("peak concurrency = %d, want 2", peak.Load())
	}
}

func TestRun_RequiredStepFailureAborts(t *testing.T) {
	o := newTestOrchestrator(t, Config{}, nil)

	var ranAfter bool
	h, err := o.Submit(Operation{
		ID:          "install-daemon:beta",
		FailureKind: ErrInstallation,
		Steps: []Step{
			step("write-backup", func(_ context.Context, r *Report) error {
				r.SetBackupPath("/tmp/config.txt.backup_1")
				return nil
			}),
			step("apt-install", func(context.Context, *Report) error {
				return (command.Result{Argv: []string{"apt"}, ExitCode: 100, Stderr: "E: Unable to locate package meshtasticd"}).Err()
			}),
			step("after", func(context.Context, *Report) error {
				ranAfter = true
				return nil
			}),
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	res := waitResult(t, h)
	if res.Success || res.State != StateFailed {
		t.Fatalf("result = %+v, want failure", res)
	}
	if ranAfter {
		t.Error("step after a failed required step ran")
	}
	if !errors.Is(res.Err, ErrInstallation) {
		t.Errorf("Err = %v, want ErrInstallation", res.Err)
	}
	var exitErr *command.ExitError
	if !errors.As(res.Err, &exitErr) {
		t.Errorf("Err = %v, want wrapped *command.ExitError", res.Err)
	}
	if res.Detail != "E: Unable to locate package meshtasticd" {
		t.Errorf("Detail = %q", res.Detail)
	}
	if res.BackupPath != "/tmp/config.txt.backup_1" {
		t.Errorf("BackupPath = %q", res.BackupPath)
	}
}

func TestRun_OptionalStepFailureContinues(t *testing.T) {
	o := newTestOrchestrator(t, Config{}, nil)

	var ranAfter bool
	h, err := o.Submit(Operation{
		ID: "install-cli",
		Steps: []Step{
			{Name: "ensurepath", Optional: true, Run: func(context.Context, *Report) error {
				return Detailed(errors.New("pipx ensurepath failed"), "PATH not updated")
			}},
			step("verify", func(context.Context, *Report) error {
				ranAfter = true
				return nil
			}),
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	res := waitResult(t, h)
	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
	if !ranAfter {
		t.Error("step after optional failure did not run")
	}
	if len(res.Warnings) != 1 || res.Warnings[0] != "ensurepath: PATH not updated" {
		t.Errorf("Warnings = %v", res.Warnings)
	}
}

func TestRun_DoneSkipsSteps(t *testing.T) {
	o := newTestOrchestrator(t, Config{}, nil)

	var ran bool
	h, err := o.Submit(Operation{
		ID:                 "enable-boot",
		Done:               func(context.Context) bool { return true },
		AlreadyDoneMessage: "already enabled",
		Steps: []Step{step("enable", func(context.Context, *Report) error {
			ran = true
			return nil
		})},
	})
	if err != nil {
		t.Fatal(err)
	}

	res := waitResult(t, h)
	if !res.Success || res.Message != "already enabled" {
		t.Errorf("result = %+v", res)
	}
	if ran {
		t.Error("step ran although the operation was already done")
	}
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	o := newTestOrchestrator(t, Config{}, nil)

	h, err := o.Submit(Operation{
		ID:    "send-text",
		Steps: []Step{step("boom", func(context.Context, *Report) error { panic("nil map") })},
	})
	if err != nil {
		t.Fatal(err)
	}

	res := waitResult(t, h)
	if res.Success || res.State != StateFailed {
		t.Fatalf("result = %+v, want failure", res)
	}
	if !errors.Is(res.Err, ErrOperationFailed) {
		t.Errorf("Err = %v, want ErrOperationFailed", res.Err)
	}
	if !strings.Contains(res.Detail, "nil map") {
		t.Errorf("Detail = %q", res.Detail)
	}
	// The ID is free again after a panic.
	if _, ok := o.State("send-text"); ok {
		t.Error("operation still tracked after panic")
	}
}

func TestRun_TimeoutReachesSteps(t *testing.T) {
	o := newTestOrchestrator(t, Config{}, nil)

	h, err := o.Submit(Operation{
		ID:      "slow",
		Timeout: 50 * time.Millisecond,
		Steps: []Step{step("wait", func(ctx context.Context, _ *Report) error {
			<-ctx.Done()
			return ctx.Err()
		})},
	})
	if err != nil {
		t.Fatal(err)
	}
	res := waitResult(t, h)
	if res.Success || !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("result = %+v, want deadline failure", res)
	}
}

func TestSubmit_QueueFull(t *testing.T) {
	o := newTestOrchestrator(t, Config{Workers: 1, QueueSize: 1}, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	h1, err := o.Submit(Operation{ID: "a", Steps: []Step{step("s", func(context.Context, *Report) error {
		close(started)
		<-release
		return nil
	})}})
	if err != nil {
		t.Fatal(err)
	}
	<-started

	h2, err := o.Submit(Operation{ID: "b", Steps: []Step{step("s", ok)}})
	if err != nil {
		t.Fatalf("queued Submit: %v", err)
	}
	if st, _ := o.State("b"); st != StateQueued {
		t.Errorf("State(b) = %q, want queued", st)
	}
	if _, err := o.Submit(Operation{ID: "c", Steps: []Step{step("s", ok)}}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}

	close(release)
	waitResult(t, h1)
	waitResult(t, h2)
}

func TestSubmit_AfterShutdown(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	o := New(cfg, nil, testLogger())
	if err := o.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Submit(Operation{ID: "a"}); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("err = %v, want ErrShuttingDown", err)
	}
	// Second Shutdown is a no-op.
	if err := o.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestSubmit_RequiresID(t *testing.T) {
	o := newTestOrchestrator(t, Config{}, nil)
	if _, err := o.Submit(Operation{}); err == nil {
		t.Error("expected error for empty ID")
	}
}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateQueued, StateRunning, true},
		{StateRunning, StateSucceeded, true},
		{StateRunning, StateFailed, true},
		{StateQueued, StateSucceeded, false},
		{StateSucceeded, StateRunning, false},
		{StateFailed, StateQueued, false},
	}
	for _, tt := range tests {
		err := validateTransition(tt.from, tt.to)
		if (err == nil) != tt.ok {
			t.Errorf("validateTransition(%s, %s) = %v, want ok=%v", tt.from, tt.to, err, tt.ok)
		}
	}
}
