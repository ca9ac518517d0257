package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/plexsphere/meshcfg/internal/aptlock"
	"github.com/plexsphere/meshcfg/internal/aptrepo"
	"github.com/plexsphere/meshcfg/internal/bootconfig"
	"github.com/plexsphere/meshcfg/internal/command"
	"github.com/plexsphere/meshcfg/internal/config"
	"github.com/plexsphere/meshcfg/internal/daemonconf"
	"github.com/plexsphere/meshcfg/internal/firewall"
	"github.com/plexsphere/meshcfg/internal/hardware"
	"github.com/plexsphere/meshcfg/internal/logstream"
	"github.com/plexsphere/meshcfg/internal/meshcli"
	"github.com/plexsphere/meshcfg/internal/orchestrator"
	"github.com/plexsphere/meshcfg/internal/privfs"
	"github.com/plexsphere/meshcfg/internal/procedures"
	"github.com/plexsphere/meshcfg/internal/retry"
	"github.com/plexsphere/meshcfg/internal/status"
	"github.com/plexsphere/meshcfg/internal/systemd"
)

// preflightTimeout bounds the privilege check.
const preflightTimeout = 10 * time.Second

// errNoPrivilege is returned when the process is not root and sudo cannot
// elevate without a password prompt.
var errNoPrivilege = errors.New("root privileges required: run as root or configure passwordless sudo")

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      *config.AppConfig
	logger   *slog.Logger
	closer   io.Closer
	root     command.RootChecker
	runner   command.Runner
	orch     *orchestrator.Orchestrator
	registry *procedures.Registry
	checker  *status.Checker
	locks    *aptlock.Service
	services systemd.ServiceManager
	editor   configEditor
	queue    *logstream.Queue
}

// configEditor opens the daemon's config.yaml through the command runner's
// privilege rules.
type configEditor struct {
	runner *command.ExecRunner
	path   string
}

func (e configEditor) Command() *exec.Cmd {
	return e.runner.EditorCommand(e.path)
}

// newApp parses the configuration and builds every component. In
// interactive mode log records feed the UI queue, which also learns about
// finished operations; otherwise they are written to console.
func newApp(interactive bool, console io.Writer) (*app, error) {
	cfg, err := config.ParseConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	var queue *logstream.Queue
	var notifier orchestrator.Notifier
	if interactive {
		queue = logstream.NewQueue(cfg.Log.Capacity)
		notifier = queue
		console = nil
	}
	logger, closer, err := logstream.NewLogger(cfg.Log, queue, console)
	if err != nil {
		return nil, err
	}

	root := command.NewRootChecker()
	runner := command.NewExecRunner(cfg.Command, root, logger)
	fsys := privfs.New(root, runner)
	locks := aptlock.NewService(cfg.AptLock, runner, fsys, aptlock.NewProbe(root, runner), logger)
	services := systemd.NewController(runner)
	detector := hardware.NewDetector(cfg.DeviceTreeDir, cfg.Package, runner, logger)
	cli := meshcli.NewClient(cfg.CLI, runner, logger)
	daemon := daemonconf.NewManager(cfg.DaemonDir, fsys, logger)
	// nftables is programmed over netlink in-process, which sudo cannot elevate.
	var fw firewall.Controller
	if root.IsRoot() {
		fw = firewall.NewNftablesController(logger)
	}
	checker := status.NewChecker(cfg.Status, runner, detector, services, cli, daemon, fw, logger)

	registry := procedures.NewRegistry(cfg.Procedures, procedures.Deps{
		Runner:   runner,
		Retry:    retry.NewExecutor(runner, locks, logger),
		Locks:    locks,
		FS:       fsys,
		Editor:   bootconfig.NewEditor(fsys, logger),
		Repo:     aptrepo.New(cfg.Repo),
		Services: services,
		CLI:      cli,
		Daemon:   daemon,
		Detector: detector,
		Firewall: fw,
		Status:   checker,
	}, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		closer:   closer,
		root:     root,
		runner:   runner,
		orch:     orchestrator.New(cfg.Orchestrator, notifier, logger),
		registry: registry,
		checker:  checker,
		locks:    locks,
		services: services,
		editor:   configEditor{runner: runner, path: daemon.ConfigPath()},
		queue:    queue,
	}, nil
}

// preflight fails when privileged commands cannot run.
func (a *app) preflight(ctx context.Context) error {
	if !a.services.IsAvailable() {
		a.logger.Warn("systemctl not found, service operations will fail")
	}
	if a.root.IsRoot() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()
	res, err := a.runner.Run(ctx, command.Spec{Argv: []string{"true"}, Privileged: true})
	if err != nil {
		return fmt.Errorf("%w: %v", errNoPrivilege, err)
	}
	if err := res.Err(); err != nil {
		return fmt.Errorf("%w: %v", errNoPrivilege, err)
	}
	return nil
}

// runOperation builds id, checks privileges, and runs it to completion.
func (a *app) runOperation(ctx context.Context, id string, params procedures.Params) (orchestrator.Result, error) {
	op, err := a.registry.Build(id, params)
	if err != nil {
		return orchestrator.Result{}, err
	}
	if err := a.preflight(ctx); err != nil {
		return orchestrator.Result{}, err
	}
	h, err := a.orch.Submit(op)
	if err != nil {
		return orchestrator.Result{}, err
	}
	return h.Wait(ctx)
}

// close drains the orchestrator and closes the log file.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Orchestrator.OperationTimeout)
	defer cancel()
	if n := a.orch.ActiveCount(); n > 0 {
		a.logger.Info("waiting for operations to finish", "count", n)
	}
	if err := a.orch.Shutdown(ctx); err != nil {
		a.logger.Warn("shutdown incomplete", "error", err)
	}
	a.closer.Close()
	if a.queue != nil {
		a.queue.Close()
	}
}
