package command

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelayAfterKill is how long Run waits for output pipes to close after the
// process group has been killed.
const waitDelayAfterKill = 500 * time.Millisecond

// Runner executes a single process invocation. Implementations never retry.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// ExecRunner implements Runner with os/exec.
type ExecRunner struct {
	cfg    Config
	root   RootChecker
	logger *slog.Logger
}

// NewExecRunner creates an ExecRunner. cfg must have defaults applied.
func NewExecRunner(cfg Config, root RootChecker, logger *slog.Logger) *ExecRunner {
	return &ExecRunner{
		cfg:    cfg,
		root:   root,
		logger: logger.With("component", "command"),
	}
}

// Run starts the process described by spec and blocks until it exits, the
// timeout elapses, or ctx ends. In the latter two cases the whole process
// group is killed and the result is marked TimedOut. Run returns an error
// only when the executable cannot be launched.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	if len(spec.Argv) == 0 {
		return Result{}, &ExecutionError{Err: errors.New("empty argv")}
	}

	argv := r.commandLine(spec)
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = r.cfg.DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	setProcessGroup(cmd)
	cmd.WaitDelay = waitDelayAfterKill
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	if spec.Stdin != "" {
		cmd.Stdin = strings.NewReader(spec.Stdin)
	}

	stdoutW := newLimitedWriter(r.cfg.MaxOutputBytes)
	stderrW := newLimitedWriter(r.cfg.MaxOutputBytes)
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	r.logger.Debug("running command", "argv", argv, "timeout", timeout)

	start := time.Now()
	runErr := cmd.Run()
	res := Result{
		Argv:     argv,
		Stdout:   stdoutW.String(),
		Stderr:   stderrW.String(),
		Duration: time.Since(start),

		Truncated: stdoutW.truncated() || stderrW.truncated(),
	}

	if runErr != nil {
		if cmd.Process == nil && runCtx.Err() == nil {
			return res, &ExecutionError{Argv: argv, Err: runErr}
		}
		var exitErr *exec.ExitError
		switch {
		case runCtx.Err() != nil:
			res.TimedOut = true
			res.ExitCode = -1
		case errors.As(runErr, &exitErr):
			res.ExitCode = exitErr.ExitCode()
		case cmd.ProcessState != nil:
			res.ExitCode = cmd.ProcessState.ExitCode()
		default:
			res.ExitCode = -1
		}
	}

	r.logger.Debug("command finished",
		"argv", argv,
		"exit_code", res.ExitCode,
		"timed_out", res.TimedOut,
		"duration", res.Duration,
	)
	return res, nil
}

// commandLine returns the argv actually executed, prefixed with the sudo
// helper for privileged specs when the process is not root. Extra env entries
// are passed through env(1) so they survive sudo's environment reset.
func (r *ExecRunner) commandLine(spec Spec) []string {
	if !spec.Privileged || r.root.IsRoot() {
		return append([]string(nil), spec.Argv...)
	}
	argv := []string{r.cfg.SudoPath, "-n"}
	if len(spec.Env) > 0 {
		argv = append(argv, "env")
		argv = append(argv, spec.Env...)
	}
	return append(argv, spec.Argv...)
}
