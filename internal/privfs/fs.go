// Package privfs performs file operations on root-owned paths, either
// directly when the process is root or through privileged commands.
package privfs

import (
	"context"
	"errors"
	"os"

	"github.com/plexsphere/meshcfg/internal/command"
	"github.com/plexsphere/meshcfg/internal/fsutil"
)

// ErrTooLarge is returned when a privileged read produced more output than
// the command runner captures.
var ErrTooLarge = errors.New("file exceeds capture limit")

// FS abstracts the file operations the editors need on system paths.
type FS interface {
	// ReadFile returns the content of path.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile replaces path atomically with data. On failure the previous
	// content is left untouched.
	WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error

	// Copy copies src to dst byte for byte.
	Copy(ctx context.Context, src, dst string) error

	// Remove deletes path. A missing path is not an error.
	Remove(ctx context.Context, path string) error

	// MkdirAll creates path and any missing parents.
	MkdirAll(ctx context.Context, path string) error

	// Exists reports whether path exists.
	Exists(path string) bool
}

// New returns Local when root reports root privileges and a Sudo FS over
// runner otherwise.
func New(root command.RootChecker, runner command.Runner) FS {
	if root.IsRoot() {
		return Local{}
	}
	return NewSudo(runner)
}

// Local implements FS with direct os calls.
type Local struct{}

func (Local) ReadFile(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (Local) WriteFile(_ context.Context, path string, data []byte, perm os.FileMode) error {
	return fsutil.WriteFileAtomic(path, data, perm)
}

func (Local) Copy(_ context.Context, src, dst string) error {
	return fsutil.CopyFile(src, dst)
}

func (Local) Remove(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (Local) MkdirAll(_ context.Context, path string) error {
	return os.MkdirAll(path, 0o755)
}

func (Local) Exists(path string) bool {
	return fsutil.Exists(path)
}
