package orchestrator

import (
	"context"
	"log/slog"
	"time"
)

// Step is one unit of work within an Operation.
type Step struct {
	Name string

	// Optional steps log a warning on failure and the operation continues.
	Optional bool

	Run func(ctx context.Context, r *Report) error
}

// Operation is a named, user-triggered sequence of steps.
type Operation struct {
	// ID identifies the operation for exclusivity, e.g. "install-daemon". Operations
	// that touch the same files share an ID whatever their argument.
	ID string

	Steps []Step

	// Done, when set, reports that the desired state already holds; the
	// operation then succeeds without running any step.
	Done func(ctx context.Context) bool

	// Timeout bounds the whole operation. Zero uses the configured default.
	Timeout time.Duration

	// SuccessMessage is reported when every required step succeeds.
	SuccessMessage string

	// AlreadyDoneMessage is reported when Done short-circuits the run.
	AlreadyDoneMessage string

	// FailureKind classifies required-step failures. Default: ErrOperationFailed.
	FailureKind error
}

// Report collects step output for the operation's Result.
type Report struct {
	// Log is scoped to the operation and run.
	Log *slog.Logger

	message    string
	backupPath string
	warnings   []string
}

// SetMessage overrides the success message.
func (r *Report) SetMessage(msg string) { r.message = msg }

// SetBackupPath records the backup created by a configuration edit.
func (r *Report) SetBackupPath(path string) { r.backupPath = path }

// Warn records a non-fatal problem that is reported with the result.
func (r *Report) Warn(msg string) {
	r.warnings = append(r.warnings, msg)
}

// Result is the terminal outcome of one run. It is delivered exactly once.
type Result struct {
	OperationID string
	RunID       string
	State       State
	Success     bool
	Message     string
	Detail      string
	BackupPath  string
	Warnings    []string
	Err         error
	Duration    time.Duration
}
