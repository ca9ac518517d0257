package bootconfig

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/plexsphere/meshcfg/internal/privfs"
)

// backupTimeFormat is the timestamp layout of backup file names.
const backupTimeFormat = "20060102_150405"

// defaultMode is used when the target's mode cannot be read.
const defaultMode os.FileMode = 0o644

// Editor applies directives to configuration files. Edits to the same path
// are serialised; a single Editor should be shared by all workers.
type Editor struct {
	fs     privfs.FS
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEditor creates an Editor writing through fsys.
func NewEditor(fsys privfs.FS, logger *slog.Logger) *Editor {
	return &Editor{
		fs:     fsys,
		logger: logger.With("component", "bootconfig"),
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// ApplyDirectives backs up path, then appends the text of every directive
// whose marker is absent, each group under one comment header, and writes
// the file back atomically. It never removes or reorders existing content.
// changed is false when every marker was already present.
func (e *Editor) ApplyDirectives(ctx context.Context, path string, directives []Directive) (backupPath string, changed bool, err error) {
	lock := e.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	backupPath = e.nextBackupPath(path)
	if err := e.fs.Copy(ctx, path, backupPath); err != nil {
		return "", false, &ConfigWriteError{Path: path, Op: "backup", Err: err}
	}
	e.logger.Info("backed up configuration", "path", path, "backup", backupPath)

	data, err := e.fs.ReadFile(ctx, path)
	if err != nil {
		return backupPath, false, &ConfigWriteError{Path: path, Op: "read", Err: err}
	}
	content := string(data)

	updated, added := appendMissing(content, directives)
	if len(added) == 0 {
		e.logger.Info("configuration already contains all directives", "path", path)
		return backupPath, false, nil
	}

	mode := defaultMode
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := e.fs.WriteFile(ctx, path, []byte(updated), mode); err != nil {
		return backupPath, false, &ConfigWriteError{Path: path, Op: "write", Err: err}
	}

	e.logger.Info("configuration updated", "path", path, "added", strings.Join(added, ", "))
	return backupPath, true, nil
}

// appendMissing returns content with the missing directives appended and
// the markers that were added.
func appendMissing(content string, directives []Directive) (string, []string) {
	var groups []string
	missing := make(map[string][]Directive)
	seen := make(map[string]bool)
	for _, d := range directives {
		if seen[d.Marker] || strings.Contains(content, d.Marker) {
			continue
		}
		seen[d.Marker] = true
		if _, ok := missing[d.Group]; !ok {
			groups = append(groups, d.Group)
		}
		missing[d.Group] = append(missing[d.Group], d)
	}
	if len(groups) == 0 {
		return content, nil
	}

	var b strings.Builder
	b.WriteString(content)
	if content != "" && !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	var added []string
	for _, g := range groups {
		b.WriteString("\n")
		if g != "" {
			b.WriteString("# " + g + "\n")
		}
		for _, d := range missing[g] {
			b.WriteString(d.text())
			added = append(added, d.Marker)
		}
	}
	return b.String(), added
}

// nextBackupPath returns <path>.backup_<timestamp>, adding a numeric suffix
// when a backup from the same second already exists.
func (e *Editor) nextBackupPath(path string) string {
	base := path + ".backup_" + e.now().Format(backupTimeFormat)
	candidate := base
	for i := 1; e.fs.Exists(candidate); i++ {
		candidate = base + "_" + strconv.Itoa(i)
	}
	return candidate
}

func (e *Editor) pathLock(path string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[path]
	if !ok {
		l = &sync.Mutex{}
		e.locks[path] = l
	}
	return l
}
