// Package procedures is the catalog of user-triggered operations. Each entry
// builds an orchestrator.Operation from an ID of the form "name" or
// "name:arg" plus optional parameters.
package procedures

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strings"

	"github.com/plexsphere/meshcfg/internal/aptlock"
	"github.com/plexsphere/meshcfg/internal/aptrepo"
	"github.com/plexsphere/meshcfg/internal/bootconfig"
	"github.com/plexsphere/meshcfg/internal/command"
	"github.com/plexsphere/meshcfg/internal/daemonconf"
	"github.com/plexsphere/meshcfg/internal/firewall"
	"github.com/plexsphere/meshcfg/internal/hardware"
	"github.com/plexsphere/meshcfg/internal/meshcli"
	"github.com/plexsphere/meshcfg/internal/orchestrator"
	"github.com/plexsphere/meshcfg/internal/privfs"
	"github.com/plexsphere/meshcfg/internal/retry"
	"github.com/plexsphere/meshcfg/internal/status"
	"github.com/plexsphere/meshcfg/internal/systemd"
)

// ErrUnknownOperation is returned by Build for an unregistered name.
var ErrUnknownOperation = errors.New("procedures: unknown operation")

// Params carries named operation inputs such as a text message.
type Params map[string]string

// ParseParams parses "key=value" pairs.
func ParseParams(pairs []string) (Params, error) {
	p := make(Params, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("procedures: invalid parameter %q, want key=value", kv)
		}
		p[k] = v
	}
	return p, nil
}

// Deps are the components operations drive.
type Deps struct {
	Runner   command.Runner
	Retry    *retry.Executor
	Locks    *aptlock.Service
	FS       privfs.FS
	Editor   *bootconfig.Editor
	Repo     *aptrepo.Repo
	Services systemd.ServiceManager
	CLI      *meshcli.Client
	Daemon   *daemonconf.Manager
	Detector *hardware.Detector
	Firewall firewall.Controller
	Status   *status.Checker
}

// Entry describes one catalog operation.
type Entry struct {
	Name        string
	Label       string
	Description string

	// Arg names the value after the colon; empty when the operation takes none.
	Arg string

	// Choices lists accepted Arg values when the set is fixed.
	Choices []string

	// Params lists the names of required parameters.
	Params []string

	build func(arg string, p Params) (orchestrator.Operation, error)
}

// Registry builds operations by ID.
type Registry struct {
	cfg     Config
	deps    Deps
	logger  *slog.Logger
	entries []Entry
	byName  map[string]int

	lanAddrs func() ([]*net.IPNet, error)
}

// NewRegistry creates the catalog. cfg must have defaults applied.
func NewRegistry(cfg Config, deps Deps, logger *slog.Logger) *Registry {
	r := &Registry{
		cfg:      cfg,
		deps:     deps,
		logger:   logger.With("component", "procedures"),
		byName:   make(map[string]int),
		lanAddrs: hardware.LANPrefixes,
	}
	r.register(r.daemonEntries()...)
	r.register(r.bootEntries()...)
	r.register(r.serviceEntries()...)
	r.register(r.radioEntries()...)
	r.register(r.systemEntries()...)
	return r
}

func (r *Registry) register(entries ...Entry) {
	for _, e := range entries {
		r.byName[e.Name] = len(r.entries)
		r.entries = append(r.entries, e)
	}
}

// Entries returns the catalog in menu order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Build resolves id ("name" or "name:arg") into a runnable operation.
func (r *Registry) Build(id string, params Params) (orchestrator.Operation, error) {
	name, arg, _ := strings.Cut(id, ":")
	e, ok := r.Lookup(name)
	if !ok {
		return orchestrator.Operation{}, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	if e.Arg == "" && arg != "" {
		return orchestrator.Operation{}, fmt.Errorf("procedures: %s takes no argument", name)
	}
	if len(e.Choices) > 0 && arg != "" && !contains(e.Choices, arg) {
		return orchestrator.Operation{}, fmt.Errorf("procedures: %s: invalid %s %q, want one of %s",
			name, e.Arg, arg, strings.Join(e.Choices, ", "))
	}
	for _, p := range e.Params {
		if _, ok := params[p]; !ok {
			return orchestrator.Operation{}, fmt.Errorf("procedures: %s: missing parameter %q", name, p)
		}
	}
	if params == nil {
		params = Params{}
	}
	return e.build(arg, params)
}

// Step constructors shared by the entries.

// run executes spec once; a non-zero exit or timeout is an error.
func (r *Registry) run(spec command.Spec) func(context.Context, *orchestrator.Report) error {
	return func(ctx context.Context, _ *orchestrator.Report) error {
		res, err := r.deps.Runner.Run(ctx, spec)
		if err != nil {
			return err
		}
		return res.Err()
	}
}

// retrying executes spec through the lock-recovering retry loop.
func (r *Registry) retrying(spec command.Spec) func(context.Context, *orchestrator.Report) error {
	return func(ctx context.Context, _ *orchestrator.Report) error {
		res, err := r.deps.Retry.Execute(ctx, spec, r.cfg.Retry)
		if err != nil {
			return err
		}
		return res.Err()
	}
}

// apt returns a privileged, non-interactive apt invocation.
func (r *Registry) apt(args ...string) command.Spec {
	return command.Spec{
		Argv:       append([]string{"apt"}, args...),
		Timeout:    r.cfg.AptTimeout,
		Privileged: true,
		Env:        []string{"DEBIAN_FRONTEND=noninteractive"},
	}
}

func (r *Registry) privileged(argv ...string) command.Spec {
	return command.Spec{Argv: argv, Timeout: r.cfg.CommandTimeout, Privileged: true}
}

// edit applies directives to the boot configuration and records the backup.
func (r *Registry) edit(directives func() []bootconfig.Directive) func(context.Context, *orchestrator.Report) error {
	return func(ctx context.Context, rep *orchestrator.Report) error {
		backup, changed, err := r.deps.Editor.ApplyDirectives(ctx, r.cfg.BootConfig, directives())
		if backup != "" {
			rep.SetBackupPath(backup)
		}
		if err != nil {
			return err
		}
		if !changed {
			rep.Log.Info("boot configuration already up to date")
		}
		return nil
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
