package privfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/plexsphere/meshcfg/internal/command"
	"github.com/plexsphere/meshcfg/internal/fsutil"
)

// sudoTimeout bounds each privileged file command.
const sudoTimeout = 30 * time.Second

// stagedSuffix names the file staged next to the target before the final rename.
const stagedSuffix = ".meshcfg-new"

// Sudo implements FS with privileged coreutils invocations through a
// command.Runner. Reads are attempted directly first.
type Sudo struct {
	runner command.Runner
}

// NewSudo returns a Sudo FS.
func NewSudo(runner command.Runner) *Sudo {
	return &Sudo{runner: runner}
}

func (s *Sudo) ReadFile(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil || !errors.Is(err, fs.ErrPermission) {
		return data, err
	}
	return s.cat(ctx, path)
}

// cat reads path through a privileged cat. Output cut at the capture
// limit is rejected so a caller never writes the marker back.
func (s *Sudo) cat(ctx context.Context, path string) ([]byte, error) {
	res, err := s.run(ctx, "cat", path)
	if err != nil {
		return nil, fmt.Errorf("privfs: read %s: %w", path, err)
	}
	if res.Truncated {
		return nil, fmt.Errorf("privfs: read %s: %w", path, ErrTooLarge)
	}
	return []byte(res.Stdout), nil
}

// WriteFile stages data in a private temp file, installs it next to path
// with the requested mode, then renames it over path.
func (s *Sudo) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp("", "meshcfg-*")
	if err != nil {
		return fmt.Errorf("privfs: write %s: stage: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("privfs: write %s: stage: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("privfs: write %s: stage: %w", path, err)
	}

	staged := path + stagedSuffix
	if _, err := s.run(ctx, "install", "-m", fmt.Sprintf("%04o", perm.Perm()), tmpPath, staged); err != nil {
		return fmt.Errorf("privfs: write %s: %w", path, err)
	}
	if _, err := s.run(ctx, "mv", "-f", staged, path); err != nil {
		_, _ = s.run(ctx, "rm", "-f", staged)
		return fmt.Errorf("privfs: write %s: %w", path, err)
	}
	return nil
}

func (s *Sudo) Copy(ctx context.Context, src, dst string) error {
	if _, err := s.run(ctx, "cp", "-p", src, dst); err != nil {
		return fmt.Errorf("privfs: copy %s to %s: %w", src, dst, err)
	}
	return nil
}

func (s *Sudo) Remove(ctx context.Context, path string) error {
	if _, err := s.run(ctx, "rm", "-f", path); err != nil {
		return fmt.Errorf("privfs: remove %s: %w", path, err)
	}
	return nil
}

func (s *Sudo) MkdirAll(ctx context.Context, path string) error {
	if _, err := s.run(ctx, "mkdir", "-p", path); err != nil {
		return fmt.Errorf("privfs: mkdir %s: %w", path, err)
	}
	return nil
}

func (s *Sudo) Exists(path string) bool {
	return fsutil.Exists(path)
}

func (s *Sudo) run(ctx context.Context, argv ...string) (command.Result, error) {
	res, err := s.runner.Run(ctx, command.Spec{
		Argv:       argv,
		Timeout:    sudoTimeout,
		Privileged: true,
	})
	if err != nil {
		return res, err
	}
	return res, res.Err()
}
