package procedures

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/plexsphere/meshcfg/internal/orchestrator"
)

// ErrNoFirewall is returned when no firewall controller is configured, which
// is the case unless the process runs as root.
var ErrNoFirewall = errors.New("procedures: firewall control is unavailable: run meshcfg as root")

func (r *Registry) systemEntries() []Entry {
	return []Entry{
		{
			Name:        "fix-apt-locks",
			Label:       "Fix apt locks",
			Description: "Repair interrupted package installs and clear stale apt/dpkg locks",
			build:       r.fixAptLocks,
		},
		{
			Name:        "restrict-api-port",
			Label:       "Restrict API port",
			Description: "Allow the daemon API only from loopback and local networks (requires root)",
			build:       r.restrictAPIPort,
		},
		{
			Name:        "unrestrict-api-port",
			Label:       "Unrestrict API port",
			Description: "Remove the daemon API firewall rules (requires root)",
			build:       r.unrestrictAPIPort,
		},
	}
}

func (r *Registry) fixAptLocks(string, Params) (orchestrator.Operation, error) {
	return orchestrator.Operation{
		ID: "fix-apt-locks",
		Steps: []orchestrator.Step{{
			Name: "clear package manager locks",
			Run: func(ctx context.Context, rep *orchestrator.Report) error {
				if r.deps.Locks.DetectAndClear(ctx) {
					rep.SetMessage("package manager locks cleared")
				} else {
					rep.SetMessage("no package manager lock problems found")
				}
				return nil
			},
		}},
	}, nil
}

func (r *Registry) restrictAPIPort(string, Params) (orchestrator.Operation, error) {
	var allowed []*net.IPNet
	return orchestrator.Operation{
		ID:                 "restrict-api-port",
		Done:               r.deps.Status.APIRestricted,
		AlreadyDoneMessage: fmt.Sprintf("port %d is already restricted", r.cfg.APIPort),
		Steps: []orchestrator.Step{
			{
				Name: "discover local networks",
				Run: func(_ context.Context, rep *orchestrator.Report) error {
					if r.deps.Firewall == nil {
						return ErrNoFirewall
					}
					nets, err := r.lanAddrs()
					if err != nil {
						return fmt.Errorf("procedures: list local networks: %w", err)
					}
					for _, n := range nets {
						rep.Log.Info("allowing local network", "network", n.String())
					}
					allowed = nets
					return nil
				},
			},
			{
				Name: "install firewall rules",
				Run: func(_ context.Context, rep *orchestrator.Report) error {
					if err := r.deps.Firewall.Restrict(r.cfg.APIPort, allowed); err != nil {
						return err
					}
					rep.SetMessage(fmt.Sprintf("port %d restricted to loopback and %d local network(s)", r.cfg.APIPort, len(allowed)))
					return nil
				},
			},
		},
	}, nil
}

func (r *Registry) unrestrictAPIPort(string, Params) (orchestrator.Operation, error) {
	return orchestrator.Operation{
		ID: "unrestrict-api-port",
		Done: func(ctx context.Context) bool {
			return !r.deps.Status.APIRestricted(ctx)
		},
		AlreadyDoneMessage: fmt.Sprintf("port %d is not restricted", r.cfg.APIPort),
		SuccessMessage:     fmt.Sprintf("port %d open to all networks", r.cfg.APIPort),
		Steps: []orchestrator.Step{{
			Name: "remove firewall rules",
			Run: func(context.Context, *orchestrator.Report) error {
				if r.deps.Firewall == nil {
					return ErrNoFirewall
				}
				return r.deps.Firewall.Unrestrict()
			},
		}},
	}, nil
}
