package procedures

import (
	"context"
	"fmt"

	"github.com/plexsphere/meshcfg/internal/aptrepo"
	"github.com/plexsphere/meshcfg/internal/command"
	"github.com/plexsphere/meshcfg/internal/orchestrator"
)

// keyMode is the permission of installed repository keyrings.
const keyMode = 0o644

func (r *Registry) daemonEntries() []Entry {
	return []Entry{
		{
			Name:        "install-daemon",
			Label:       "Install meshtasticd",
			Description: "Add the Meshtastic apt repository for a release channel and install the daemon",
			Arg:         "channel",
			Choices:     aptrepo.Channels,
			build:       r.installDaemon,
		},
		{
			Name:        "remove-daemon",
			Label:       "Remove meshtasticd",
			Description: "Stop, disable, and purge the daemon and its repository files",
			build:       r.removeDaemon,
		},
	}
}

func (r *Registry) installDaemon(ch string, _ Params) (orchestrator.Operation, error) {
	if ch == "" {
		ch = aptrepo.DefaultChannel
	}
	if !aptrepo.ValidChannel(ch) {
		return orchestrator.Operation{}, fmt.Errorf("procedures: unknown channel %q, want one of %v", ch, aptrepo.Channels)
	}
	repo := r.deps.Repo
	var armored []byte

	return orchestrator.Operation{
		ID:                 "install-daemon",
		FailureKind:        orchestrator.ErrInstallation,
		Done:               r.deps.Status.DaemonInstalled,
		AlreadyDoneMessage: fmt.Sprintf("%s is already installed", r.cfg.Package),
		Steps: []orchestrator.Step{
			{
				Name:     "check package manager locks",
				Optional: true,
				Run: func(ctx context.Context, rep *orchestrator.Report) error {
					if r.deps.Locks.DetectAndClear(ctx) {
						rep.Log.Info("package manager locks recovered before install")
					}
					return nil
				},
			},
			{
				Name: "write repository list",
				Run: func(ctx context.Context, rep *orchestrator.Report) error {
					rep.Log.Info("adding repository", "channel", ch, "url", repo.URL(ch))
					return r.deps.FS.WriteFile(ctx, repo.ListFile(ch), []byte(repo.ListContent(ch)), keyMode)
				},
			},
			{
				Name: "fetch repository key",
				Run: func(ctx context.Context, _ *orchestrator.Report) error {
					res, err := r.deps.Runner.Run(ctx, command.Spec{
						Argv:    []string{"curl", "-fsSL", repo.KeyURL(ch)},
						Timeout: r.cfg.KeyFetchTimeout,
					})
					if err != nil {
						return err
					}
					if err := res.Err(); err != nil {
						return err
					}
					armored = []byte(res.Stdout)
					return nil
				},
			},
			{
				Name: "install repository key",
				Run: func(ctx context.Context, rep *orchestrator.Report) error {
					key, err := aptrepo.Dearmor(armored)
					if err != nil {
						return err
					}
					rep.Log.Info("installing repository key", "path", repo.KeyFile(ch))
					return r.deps.FS.WriteFile(ctx, repo.KeyFile(ch), key, keyMode)
				},
			},
			{
				Name:     "update package lists",
				Optional: true,
				Run:      r.retrying(r.apt("update")),
			},
			{
				Name: "install " + r.cfg.Package,
				Run: r.retrying(r.apt("install", "-y",
					"-o", "Dpkg::Options::=--force-confdef",
					"-o", "Dpkg::Options::=--force-confold",
					r.cfg.Package,
				)),
			},
			{
				Name:     "verify installation",
				Optional: true,
				Run: func(ctx context.Context, rep *orchestrator.Report) error {
					v := r.deps.Detector.DaemonVersion(ctx)
					rep.SetMessage(fmt.Sprintf("%s %s installed from the %s channel", r.cfg.Package, v, ch))
					return nil
				},
			},
		},
	}, nil
}

func (r *Registry) removeDaemon(string, Params) (orchestrator.Operation, error) {
	remove := r.apt("remove", "--purge", "-y", r.cfg.Package)
	remove.Stdin = "n\n"

	return orchestrator.Operation{
		ID:          "remove-daemon",
		FailureKind: orchestrator.ErrRemoval,
		Done: func(ctx context.Context) bool {
			return !r.deps.Status.DaemonInstalled(ctx)
		},
		AlreadyDoneMessage: fmt.Sprintf("%s is not installed", r.cfg.Package),
		SuccessMessage:     fmt.Sprintf("%s removed", r.cfg.Package),
		Steps: []orchestrator.Step{
			{
				Name:     "stop service",
				Optional: true,
				Run: func(ctx context.Context, _ *orchestrator.Report) error {
					return r.deps.Services.Stop(ctx, r.cfg.Service)
				},
			},
			{
				Name:     "disable service",
				Optional: true,
				Run: func(ctx context.Context, _ *orchestrator.Report) error {
					return r.deps.Services.Disable(ctx, r.cfg.Service)
				},
			},
			{
				Name: "purge " + r.cfg.Package,
				Run:  r.retrying(remove),
			},
			{
				Name:     "remove repository files",
				Optional: true,
				Run: func(ctx context.Context, rep *orchestrator.Report) error {
					var firstErr error
					paths := append(r.deps.Repo.AllListFiles(), r.deps.Repo.AllKeyFiles()...)
					for _, p := range paths {
						if !r.deps.FS.Exists(p) {
							continue
						}
						if err := r.deps.FS.Remove(ctx, p); err != nil {
							rep.Log.Warn("could not remove repository file", "path", p, "error", err)
							if firstErr == nil {
								firstErr = err
							}
							continue
						}
						rep.Log.Info("removed repository file", "path", p)
					}
					return firstErr
				},
			},
		},
	}, nil
}
