package command

import (
	"fmt"
	"strings"
	"time"
)

// ExecutionError is returned by Run when the executable could not be launched
// at all (not found, permission denied at launch).
type ExecutionError struct {
	Argv []string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("command: launch %q: %v", strings.Join(e.Argv, " "), e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TimeoutError reports a process that exceeded its allotted time and was killed.
type TimeoutError struct {
	Argv  []string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command: %q timed out after %s", strings.Join(e.Argv, " "), e.After.Round(time.Millisecond))
}

// Detail returns a short human-readable explanation for result reporting.
func (e *TimeoutError) Detail() string {
	return fmt.Sprintf("timed out after %s and was killed", e.After.Round(time.Second))
}

// ExitError reports a process that ran to completion with a non-zero exit code.
type ExitError struct {
	Argv   []string
	Code   int
	Stderr string
	Stdout string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command: %q exited with code %d", strings.Join(e.Argv, " "), e.Code)
}

// Detail returns the captured stderr, falling back to stdout when stderr is empty.
func (e *ExitError) Detail() string {
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(e.Stdout)
}
