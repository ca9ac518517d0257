package aptlock

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/plexsphere/meshcfg/internal/command"
	"github.com/plexsphere/meshcfg/internal/privfs"
)

// auditTimeout bounds "dpkg --audit".
const auditTimeout = 30 * time.Second

// killTimeout bounds the killall invocation.
const killTimeout = 15 * time.Second

// LockState describes one lock file at the time of a check.
type LockState struct {
	Path   string
	Exists bool
	Held   bool
	PID    int
}

// Service clears package-manager lock contention. It never deletes a lock
// file that a live process holds.
type Service struct {
	cfg    Config
	runner command.Runner
	fs     privfs.FS
	probe  HolderProbe
	logger *slog.Logger

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration)
}

// NewService creates a Service. cfg must have defaults applied.
func NewService(cfg Config, runner command.Runner, fsys privfs.FS, probe HolderProbe, logger *slog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		runner: runner,
		fs:     fsys,
		probe:  probe,
		logger: logger.With("component", "aptlock"),
		sleep:  sleepContext,
	}
}

// Check inspects every configured lock file.
func (s *Service) Check(ctx context.Context) []LockState {
	states := make([]LockState, 0, len(s.cfg.LockFiles))
	for _, path := range s.cfg.LockFiles {
		states = append(states, s.inspect(ctx, path))
	}
	return states
}

// DetectAndClear repairs an interrupted dpkg run, reclaims stale lock files
// and, when a lock is actively held, kills the package managers and
// re-checks before deleting. It reports whether any corrective action was
// taken. Failures are logged, never returned.
func (s *Service) DetectAndClear(ctx context.Context) bool {
	acted := s.repairInterrupted(ctx)

	killed := false
	for _, path := range s.cfg.LockFiles {
		state := s.inspect(ctx, path)
		if !state.Exists {
			continue
		}

		if state.Held {
			s.logger.Warn("lock file is held", "path", path, "pid", state.PID)
			if !killed {
				s.KillPackageManagers(ctx)
				killed = true
				acted = true
				s.sleep(ctx, s.cfg.SettleDelay)
			}
			state = s.inspect(ctx, path)
			if state.Held {
				s.logger.Error("lock file still held after killing package managers, leaving it in place",
					"path", path,
					"pid", state.PID,
				)
				continue
			}
		}

		if err := s.fs.Remove(ctx, path); err != nil {
			s.logger.Error("failed to remove stale lock file", "path", path, "error", err)
			continue
		}
		s.logger.Info("removed stale lock file", "path", path)
		acted = true
	}

	if !acted {
		s.logger.Debug("no apt lock problems detected")
	}
	return acted
}

// KillPackageManagers forcibly terminates running package-manager processes.
func (s *Service) KillPackageManagers(ctx context.Context) {
	argv := append([]string{"killall", "-9"}, s.cfg.ProcessNames...)
	res, err := s.runner.Run(ctx, command.Spec{
		Argv:       argv,
		Timeout:    killTimeout,
		Privileged: true,
	})
	if err != nil {
		s.logger.Warn("failed to kill package managers", "error", err)
		return
	}
	// killall exits 1 when nothing matched.
	s.logger.Info("killed package manager processes",
		"processes", strings.Join(s.cfg.ProcessNames, ","),
		"matched", res.ExitCode == 0,
	)
}

// repairInterrupted runs "dpkg --audit" and, when it reports an inconsistent
// package database, "dpkg --configure -a" answering "keep local" to prompts.
func (s *Service) repairInterrupted(ctx context.Context) bool {
	res, err := s.runner.Run(ctx, command.Spec{
		Argv:       []string{"dpkg", "--audit"},
		Timeout:    auditTimeout,
		Privileged: true,
	})
	if err != nil {
		s.logger.Warn("dpkg audit could not run", "error", err)
		return false
	}
	if res.TimedOut {
		s.logger.Warn("dpkg audit timed out")
		return false
	}
	if res.ExitCode == 0 && strings.TrimSpace(res.Stdout) == "" {
		return false
	}

	s.logger.Warn("dpkg reports an interrupted or inconsistent state, running configure",
		"audit", strings.TrimSpace(res.Combined()),
	)
	res, err = s.runner.Run(ctx, command.Spec{
		Argv:       []string{"dpkg", "--configure", "-a"},
		Stdin:      "n\n",
		Env:        []string{"DEBIAN_FRONTEND=noninteractive"},
		Timeout:    s.cfg.ConfigureTimeout,
		Privileged: true,
	})
	switch {
	case err != nil:
		s.logger.Error("dpkg configure could not run", "error", err)
	case !res.Success():
		s.logger.Error("dpkg configure failed", "error", res.Err(), "detail", strings.TrimSpace(res.Stderr))
	default:
		s.logger.Info("dpkg configure completed")
	}
	return true
}

func (s *Service) inspect(ctx context.Context, path string) LockState {
	state := LockState{Path: path}
	if !s.fs.Exists(path) {
		return state
	}
	state.Exists = true

	held, pid, err := s.probe.Holder(ctx, path)
	if err != nil {
		s.logger.Warn("lock holder probe failed, assuming held", "path", path, "error", err)
		held = true
	}
	state.Held = held
	state.PID = pid
	return state
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
