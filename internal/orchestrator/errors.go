package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrOperationFailed is the default failure kind of an operation.
	ErrOperationFailed = errors.New("operation failed")

	// ErrInstallation classifies failed package installs.
	ErrInstallation = errors.New("installation failed")

	// ErrRemoval classifies failed package removals.
	ErrRemoval = errors.New("removal failed")

	// ErrQueueFull is returned by Submit when every queue slot is taken.
	ErrQueueFull = errors.New("orchestrator: queue is full")

	// ErrShuttingDown is returned by Submit after Shutdown has begun.
	ErrShuttingDown = errors.New("orchestrator: shutting down")
)

// AlreadyRunningError rejects a submission whose operation is queued or running.
type AlreadyRunningError struct {
	ID    string
	RunID string
	State State
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("orchestrator: operation %q is already %s (run %s)", e.ID, e.State, e.RunID)
}

// StepError reports the failure of a required step, wrapping the
// operation's failure kind and the step's own error.
type StepError struct {
	Kind error
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%v: step %s: %v", e.Kind, e.Step, e.Err)
}

func (e *StepError) Unwrap() []error { return []error{e.Kind, e.Err} }

// detailer is implemented by errors that carry a human-readable detail blob,
// such as captured stderr.
type detailer interface {
	Detail() string
}

// Detailed attaches detail text to err for result reporting.
func Detailed(err error, detail string) error {
	return &detailError{err: err, detail: detail}
}

type detailError struct {
	err    error
	detail string
}

func (e *detailError) Error() string  { return e.err.Error() }
func (e *detailError) Unwrap() error  { return e.err }
func (e *detailError) Detail() string { return e.detail }

// errorDetail returns the first detail found in err's chain, or its message.
func errorDetail(err error) string {
	var d detailer
	if errors.As(err, &d) {
		if s := d.Detail(); s != "" {
			return s
		}
	}
	return err.Error()
}
