// Package daemonconf manages the daemon's configuration directory: the main
// config file and the HAT fragments in available.d and config.d.
package daemonconf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/plexsphere/meshcfg/internal/privfs"
)

// DefaultDir is the daemon's configuration directory.
const DefaultDir = "/etc/meshtasticd"

const (
	availableDir = "available.d"
	activeDir    = "config.d"
)

// ErrNoFragments is returned when available.d holds nothing to choose from.
var ErrNoFragments = errors.New("daemonconf: no configuration fragments available")

// Fragment is an entry of available.d: a YAML file or a folder of them.
type Fragment struct {
	Name  string
	Path  string
	IsDir bool
}

// AmbiguousError lists the candidates when a selection needs a choice.
type AmbiguousError struct {
	What       string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("daemonconf: %s: choose one of %s", e.What, strings.Join(e.Candidates, ", "))
}

// Manager reads and activates configuration fragments.
type Manager struct {
	// mu serialises Activate so config.d never holds two fragments.
	mu sync.Mutex

	dir    string
	fs     privfs.FS
	logger *slog.Logger
}

// NewManager creates a Manager rooted at dir, writing through fsys.
func NewManager(dir string, fsys privfs.FS, logger *slog.Logger) *Manager {
	if dir == "" {
		dir = DefaultDir
	}
	return &Manager{
		dir:    dir,
		fs:     fsys,
		logger: logger.With("component", "daemonconf"),
	}
}

// AvailableDir returns the fragment library directory.
func (m *Manager) AvailableDir() string { return filepath.Join(m.dir, availableDir) }

// ActiveDir returns the directory the daemon loads fragments from.
func (m *Manager) ActiveDir() string { return filepath.Join(m.dir, activeDir) }

// configSkeleton seeds a new config.yaml.
const configSkeleton = "# Meshtastic Configuration\n# Edit this file to configure your device\n\n"

// ConfigPath returns the main config.yaml path.
func (m *Manager) ConfigPath() string { return filepath.Join(m.dir, "config.yaml") }

// EnsureConfig creates config.yaml with a commented skeleton when it does
// not exist. It reports whether the file was created.
func (m *Manager) EnsureConfig(ctx context.Context) (bool, error) {
	path := m.ConfigPath()
	if m.fs.Exists(path) {
		return false, nil
	}
	if err := m.fs.MkdirAll(ctx, m.dir); err != nil {
		return false, fmt.Errorf("daemonconf: %w", err)
	}
	if err := m.fs.WriteFile(ctx, path, []byte(configSkeleton), 0o644); err != nil {
		return false, fmt.Errorf("daemonconf: %w", err)
	}
	m.logger.Info("created config file", "path", path)
	return true, nil
}

// ConfigExists reports whether a main config.yaml or config.json exists.
func (m *Manager) ConfigExists() bool {
	return m.fs.Exists(filepath.Join(m.dir, "config.yaml")) || m.fs.Exists(filepath.Join(m.dir, "config.json"))
}

// Active returns the names of the active fragments.
func (m *Manager) Active() []string {
	matches, _ := filepath.Glob(filepath.Join(m.ActiveDir(), "*.yaml"))
	names := make([]string, 0, len(matches))
	for _, p := range matches {
		names = append(names, filepath.Base(p))
	}
	return names
}

// EnsureDirs creates available.d and config.d.
func (m *Manager) EnsureDirs(ctx context.Context) error {
	for _, d := range []string{m.AvailableDir(), m.ActiveDir()} {
		if err := m.fs.MkdirAll(ctx, d); err != nil {
			return fmt.Errorf("daemonconf: %w", err)
		}
	}
	return nil
}

// Available lists the YAML files and folders in available.d, sorted by name.
func (m *Manager) Available() ([]Fragment, error) {
	entries, err := os.ReadDir(m.AvailableDir())
	if err != nil {
		return nil, fmt.Errorf("daemonconf: list %s: %w", m.AvailableDir(), err)
	}
	var frags []Fragment
	for _, e := range entries {
		if !e.IsDir() && !isYAML(e.Name()) {
			continue
		}
		frags = append(frags, Fragment{
			Name:  e.Name(),
			Path:  filepath.Join(m.AvailableDir(), e.Name()),
			IsDir: e.IsDir(),
		})
	}
	sort.Slice(frags, func(i, j int) bool { return frags[i].Name < frags[j].Name })
	return frags, nil
}

// Match returns the fragments whose names mention the HAT product, its
// vendor, or "meshadv".
func (m *Manager) Match(product, vendor string) ([]Fragment, error) {
	frags, err := m.Available()
	if err != nil {
		return nil, err
	}
	var needles []string
	for _, s := range []string{product, vendor} {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			needles = append(needles, s, strings.ReplaceAll(s, " ", "-"), strings.ReplaceAll(s, " ", ""))
		}
	}
	if len(needles) == 0 {
		return nil, nil
	}
	needles = append(needles, "meshadv")

	var matches []Fragment
	for _, f := range frags {
		name := strings.ToLower(f.Name)
		for _, n := range needles {
			if strings.Contains(name, n) {
				matches = append(matches, f)
				break
			}
		}
	}
	return matches, nil
}

// Select resolves the fragment to activate. name may be a file in
// available.d, a folder holding exactly one YAML file, or "folder/file.yaml".
// An empty name selects the single fragment matching the HAT.
func (m *Manager) Select(name, product, vendor string) (string, error) {
	if name == "" {
		matches, err := m.Match(product, vendor)
		if err != nil {
			return "", err
		}
		switch len(matches) {
		case 1:
			name = matches[0].Name
			m.logger.Info("auto-selected fragment for HAT", "fragment", name, "product", product, "vendor", vendor)
		case 0:
			frags, err := m.Available()
			if err != nil {
				return "", err
			}
			if len(frags) == 0 {
				return "", ErrNoFragments
			}
			return "", &AmbiguousError{What: "no fragment matches the detected HAT", Candidates: fragmentNames(frags)}
		default:
			return "", &AmbiguousError{What: "several fragments match the detected HAT", Candidates: fragmentNames(matches)}
		}
	}

	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("daemonconf: invalid fragment name %q", name)
	}
	path := filepath.Join(m.AvailableDir(), clean)
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("daemonconf: fragment %q: %w", name, err)
	}
	if !info.IsDir() {
		return path, nil
	}

	inner, _ := filepath.Glob(filepath.Join(path, "*.yaml"))
	switch len(inner) {
	case 0:
		return "", fmt.Errorf("daemonconf: folder %q holds no YAML files", name)
	case 1:
		return inner[0], nil
	default:
		candidates := make([]string, 0, len(inner))
		for _, p := range inner {
			candidates = append(candidates, filepath.Join(clean, filepath.Base(p)))
		}
		return "", &AmbiguousError{What: fmt.Sprintf("folder %q holds several files", name), Candidates: candidates}
	}
}

// Validate checks that path parses as a YAML mapping.
func Validate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("daemonconf: validate %s: %w", path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("daemonconf: validate %s: %w", filepath.Base(path), err)
	}
	if len(doc) == 0 {
		return fmt.Errorf("daemonconf: validate %s: document is empty", filepath.Base(path))
	}
	return nil
}

// Activate validates src, removes every active fragment, and copies src
// into config.d. It returns the destination path.
func (m *Manager) Activate(ctx context.Context, src string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := Validate(src); err != nil {
		return "", err
	}
	for _, name := range m.Active() {
		p := filepath.Join(m.ActiveDir(), name)
		if err := m.fs.Remove(ctx, p); err != nil {
			return "", fmt.Errorf("daemonconf: %w", err)
		}
		m.logger.Info("removed active fragment", "fragment", name)
	}
	dst := filepath.Join(m.ActiveDir(), filepath.Base(src))
	if err := m.fs.Copy(ctx, src, dst); err != nil {
		return "", fmt.Errorf("daemonconf: %w", err)
	}
	m.logger.Info("activated fragment", "source", src, "destination", dst)
	return dst, nil
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml")
}

func fragmentNames(frags []Fragment) []string {
	names := make([]string, 0, len(frags))
	for _, f := range frags {
		names = append(names, f.Name)
	}
	return names
}
