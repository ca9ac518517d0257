package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/plexsphere/meshcfg/internal/command"
)

// Recoverer clears package-manager obstructions between attempts.
type Recoverer interface {
	DetectAndClear(ctx context.Context) bool
	KillPackageManagers(ctx context.Context)
}

// Executor runs a command.Spec under a Policy. It is the only component that
// retries.
type Executor struct {
	runner    command.Runner
	recoverer Recoverer
	logger    *slog.Logger

	sleep func(ctx context.Context, d time.Duration)
}

// NewExecutor creates an Executor.
func NewExecutor(runner command.Runner, recoverer Recoverer, logger *slog.Logger) *Executor {
	return &Executor{
		runner:    runner,
		recoverer: recoverer,
		logger:    logger.With("component", "retry"),
		sleep:     sleepContext,
	}
}

// Execute runs spec until it succeeds, fails for a reason the policy does
// not retry, or attempts run out. The last attempt's result is returned as
// is. The only error is a *command.ExecutionError from a launch failure,
// which is not retried.
func (e *Executor) Execute(ctx context.Context, spec command.Spec, policy Policy) (command.Result, error) {
	policy.ApplyDefaults()
	if err := policy.Validate(); err != nil {
		return command.Result{}, err
	}

	var res command.Result
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		var err error
		res, err = e.runner.Run(ctx, spec)
		if err != nil {
			return res, err
		}
		if res.Success() {
			if attempt > 1 {
				e.logger.Info("command succeeded after retry", "command", spec.String(), "attempt", attempt)
			}
			return res, nil
		}

		if !res.TimedOut && !policy.matches(res) {
			return res, nil
		}
		if attempt == policy.MaxAttempts {
			if !res.TimedOut {
				e.logger.Error("lock contention persisted through all attempts",
					"command", spec.String(),
					"attempts", attempt,
					"error", fmt.Errorf("%w: %s", ErrLockContention, spec.String()),
				)
			}
			return res, nil
		}

		if res.TimedOut {
			e.logger.Warn("command timed out, killing package managers before retry",
				"command", spec.String(),
				"attempt", attempt,
				"max_attempts", policy.MaxAttempts,
			)
			e.recoverer.KillPackageManagers(ctx)
		} else {
			e.logger.Warn("package manager lock detected, attempting recovery",
				"command", spec.String(),
				"attempt", attempt,
				"max_attempts", policy.MaxAttempts,
			)
			e.recoverer.DetectAndClear(ctx)
		}

		e.logger.Info("retrying command", "command", spec.String(), "delay", policy.pause())
		e.sleep(ctx, policy.pause())
		if ctx.Err() != nil {
			return res, nil
		}
	}
	return res, nil
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
