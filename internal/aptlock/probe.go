package aptlock

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/plexsphere/meshcfg/internal/command"
)

// probeTimeout bounds a single holder probe.
const probeTimeout = 10 * time.Second

// HolderProbe reports whether a live process holds a lock file.
type HolderProbe interface {
	// Holder returns held=true and the holder PID (0 when unknown) if a
	// process holds path. Callers treat an error as held.
	Holder(ctx context.Context, path string) (held bool, pid int, err error)
}

// NewProbe returns the fcntl probe when running as root, where the lock
// files can be opened directly, and the fuser probe otherwise.
func NewProbe(root command.RootChecker, runner command.Runner) HolderProbe {
	if root.IsRoot() {
		return fcntlProbe{}
	}
	return &fuserProbe{runner: runner}
}

// fuserProbe asks fuser(1), run privileged, whether any process uses the file.
type fuserProbe struct {
	runner command.Runner
}

func (p *fuserProbe) Holder(ctx context.Context, path string) (bool, int, error) {
	res, err := p.runner.Run(ctx, command.Spec{
		Argv:       []string{"fuser", path},
		Timeout:    probeTimeout,
		Privileged: true,
	})
	if err != nil {
		return true, 0, err
	}
	if res.TimedOut {
		return true, 0, res.Err()
	}
	// fuser exits 1 silently when no process accesses the file. Any other
	// failure, such as a missing fuser or sudo refusing, leaves the holder
	// unknown.
	if res.ExitCode == 1 && strings.TrimSpace(res.Stdout) == "" && strings.TrimSpace(res.Stderr) == "" {
		return false, 0, nil
	}
	if res.ExitCode != 0 {
		return true, 0, fmt.Errorf("aptlock: fuser %s: %w", path, res.Err())
	}
	return true, firstPID(res.Stdout), nil
}

// firstPID extracts the first numeric PID from fuser output such as " 1234 5678".
func firstPID(out string) int {
	for _, field := range strings.Fields(out) {
		field = strings.TrimRight(field, "cefFrm")
		if pid, err := strconv.Atoi(field); err == nil {
			return pid
		}
	}
	return 0
}
