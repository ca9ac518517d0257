package command

import (
	"strings"
	"time"
)

// Spec describes a single external process invocation. It is a value type;
// callers build one per invocation and never mutate it after submission.
type Spec struct {
	// Argv is the program and its arguments. Argv[0] is resolved via PATH.
	Argv []string

	// Stdin is written to the process standard input when non-empty.
	// Used to answer interactive prompts (e.g. "n\n" to keep local configuration).
	Stdin string

	// Timeout bounds the process lifetime. Zero means the runner default.
	Timeout time.Duration

	// Privileged requests elevation through the configured sudo helper.
	Privileged bool

	// Env holds extra KEY=VALUE entries added to the inherited environment.
	Env []string
}

// String returns the command line for logging.
func (s Spec) String() string {
	return strings.Join(s.Argv, " ")
}

// Result is the outcome of a process that was started. A non-zero exit code is
// carried here and is not an error of Run.
type Result struct {
	Argv     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration

	// TimedOut is set when the process group was killed because the timeout
	// elapsed or the caller's context ended.
	TimedOut bool

	// Truncated is set when stdout or stderr exceeded MaxOutputBytes and
	// the captured text ends in a truncation marker.
	Truncated bool
}

// Success reports whether the process exited with code 0 before its deadline.
func (r Result) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// Err classifies the result: nil on success, *TimeoutError when the process
// was killed, *ExitError for a non-zero exit.
func (r Result) Err() error {
	switch {
	case r.TimedOut:
		return &TimeoutError{Argv: r.Argv, After: r.Duration}
	case r.ExitCode != 0:
		return &ExitError{Argv: r.Argv, Code: r.ExitCode, Stderr: r.Stderr, Stdout: r.Stdout}
	default:
		return nil
	}
}

// Combined returns stdout and stderr joined, trimmed of surrounding space.
func (r Result) Combined() string {
	out := strings.TrimSpace(r.Stdout)
	errOut := strings.TrimSpace(r.Stderr)
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}
