//go:build linux

package aptlock

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// fcntlProbe tests for a conflicting POSIX record lock with F_GETLK, the
// same locking dpkg and apt use.
type fcntlProbe struct{}

func (fcntlProbe) Holder(_ context.Context, path string) (bool, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return true, 0, fmt.Errorf("aptlock: probe %s: %w", path, err)
	}
	defer f.Close()

	lk := unix.Flock_t{Type: unix.F_WRLCK}
	if err := unix.FcntlFlock(f.Fd(), unix.F_GETLK, &lk); err != nil {
		return true, 0, fmt.Errorf("aptlock: probe %s: %w", path, err)
	}
	if lk.Type == unix.F_UNLCK {
		return false, 0, nil
	}
	// Open file description locks report pid -1.
	return true, max(int(lk.Pid), 0), nil
}
