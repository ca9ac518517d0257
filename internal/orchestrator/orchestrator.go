package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notifier is told when a run reaches a terminal state, so observers can
// refresh derived status. It must not block.
type Notifier interface {
	OperationFinished(res Result)
}

// Handle identifies one accepted submission.
type Handle struct {
	ID    string
	RunID string

	done chan Result
}

// Done yields the run's Result exactly once.
func (h *Handle) Done() <-chan Result {
	return h.done
}

// Wait blocks until the result is available or ctx ends.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case res := <-h.done:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

type job struct {
	op     Operation
	handle *Handle
}

type runEntry struct {
	runID string
	state State
}

// Orchestrator executes operations on a fixed pool of workers. At most one
// run per operation ID is queued or running at any time.
type Orchestrator struct {
	cfg      Config
	notifier Notifier
	logger   *slog.Logger

	jobs chan job
	wg   sync.WaitGroup

	mu           sync.Mutex
	active       map[string]*runEntry // operation ID → in-flight run
	shuttingDown bool
}

// New creates an Orchestrator and starts its workers. cfg must have
// defaults applied. notifier may be nil.
func New(cfg Config, notifier Notifier, logger *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		notifier: notifier,
		logger:   logger.With("component", "orchestrator"),
		jobs:     make(chan job, cfg.QueueSize),
		active:   make(map[string]*runEntry),
	}
	for range cfg.Workers {
		o.wg.Add(1)
		go o.worker()
	}
	return o
}

// Submit queues op. It fails with *AlreadyRunningError when a run of the
// same ID is queued or running, ErrQueueFull when no slot is free, and
// ErrShuttingDown after Shutdown.
func (o *Orchestrator) Submit(op Operation) (*Handle, error) {
	if op.ID == "" {
		return nil, errors.New("orchestrator: operation ID is required")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.shuttingDown {
		return nil, ErrShuttingDown
	}
	if entry, exists := o.active[op.ID]; exists {
		o.logger.Warn("operation rejected", "operation", op.ID, "reason", "already_running", "state", entry.state)
		return nil, &AlreadyRunningError{ID: op.ID, RunID: entry.runID, State: entry.state}
	}

	h := &Handle{ID: op.ID, RunID: uuid.NewString(), done: make(chan Result, 1)}
	select {
	case o.jobs <- job{op: op, handle: h}:
	default:
		o.logger.Warn("operation rejected", "operation", op.ID, "reason", "queue_full")
		return nil, ErrQueueFull
	}
	o.active[op.ID] = &runEntry{runID: h.RunID, state: StateQueued}

	o.logger.Info("operation queued", "operation", op.ID, "run_id", h.RunID)
	return h, nil
}

// State returns the state of the in-flight run of id, if any.
func (o *Orchestrator) State(id string) (State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.active[id]
	if !ok {
		return "", false
	}
	return entry.state, true
}

// ActiveCount returns the number of queued or running operations.
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// Shutdown stops accepting submissions and waits for queued and running
// operations to finish, or for ctx to end.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if !o.shuttingDown {
		o.shuttingDown = true
		close(o.jobs)
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("orchestrator: shutdown: %w", ctx.Err())
	}
}

func (o *Orchestrator) worker() {
	defer o.wg.Done()
	for j := range o.jobs {
		o.execute(j)
	}
}

func (o *Orchestrator) transition(id string, to State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.active[id]
	if !ok {
		return
	}
	if err := validateTransition(entry.state, to); err != nil {
		o.logger.Error("state transition rejected", "operation", id, "error", err)
		return
	}
	entry.state = to
	if to.Terminal() {
		delete(o.active, id)
	}
}

func (o *Orchestrator) execute(j job) {
	op, h := j.op, j.handle
	logger := o.logger.With("operation", op.ID, "run_id", h.RunID)

	o.transition(op.ID, StateRunning)
	logger.Info("operation started")

	start := time.Now()
	res := o.run(op, logger)
	res.OperationID = op.ID
	res.RunID = h.RunID
	res.Duration = time.Since(start)
	if res.Success {
		res.State = StateSucceeded
	} else {
		res.State = StateFailed
	}

	o.transition(op.ID, res.State)
	if res.Success {
		logger.Info("operation succeeded", "message", res.Message, "duration", res.Duration)
	} else {
		logger.Error("operation failed", "message", res.Message, "error", res.Err, "duration", res.Duration)
	}

	h.done <- res
	if o.notifier != nil {
		o.notifier.OperationFinished(res)
	}
}

// run executes the steps of op, converting a panic into a failed result.
func (o *Orchestrator) run(op Operation, logger *slog.Logger) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in operation", "panic", fmt.Sprintf("%v", r))
			res = Result{
				Message: fmt.Sprintf("%s failed unexpectedly", op.ID),
				Detail:  fmt.Sprintf("panic: %v", r),
				Err:     fmt.Errorf("%w: panic: %v", failureKind(op), r),
			}
		}
	}()

	timeout := op.Timeout
	if timeout <= 0 {
		timeout = o.cfg.OperationTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if op.Done != nil && op.Done(ctx) {
		msg := op.AlreadyDoneMessage
		if msg == "" {
			msg = fmt.Sprintf("%s: nothing to do", op.ID)
		}
		logger.Info("desired state already present, skipping")
		return Result{Success: true, Message: msg}
	}

	report := &Report{Log: logger}
	for _, step := range op.Steps {
		logger.Info("step started", "step", step.Name)
		err := step.Run(ctx, report)
		if err == nil {
			continue
		}
		if step.Optional {
			logger.Warn("optional step failed, continuing", "step", step.Name, "error", err)
			report.Warn(fmt.Sprintf("%s: %s", step.Name, errorDetail(err)))
			continue
		}
		stepErr := &StepError{Kind: failureKind(op), Step: step.Name, Err: err}
		return Result{
			Message:    fmt.Sprintf("%s failed at step %q", op.ID, step.Name),
			Detail:     errorDetail(err),
			BackupPath: report.backupPath,
			Warnings:   report.warnings,
			Err:        stepErr,
		}
	}

	msg := report.message
	if msg == "" {
		msg = op.SuccessMessage
	}
	if msg == "" {
		msg = fmt.Sprintf("%s completed", op.ID)
	}
	return Result{
		Success:    true,
		Message:    msg,
		BackupPath: report.backupPath,
		Warnings:   report.warnings,
	}
}

func failureKind(op Operation) error {
	if op.FailureKind != nil {
		return op.FailureKind
	}
	return ErrOperationFailed
}
