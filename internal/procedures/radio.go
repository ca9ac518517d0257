package procedures

import (
	"context"
	"fmt"

	"github.com/plexsphere/meshcfg/internal/command"
	"github.com/plexsphere/meshcfg/internal/meshcli"
	"github.com/plexsphere/meshcfg/internal/orchestrator"
)

func (r *Registry) radioEntries() []Entry {
	return []Entry{
		{
			Name:        "install-cli",
			Label:       "Install Python CLI",
			Description: "Install the meshtastic command-line client with pipx",
			build:       r.installCLI,
		},
		{
			Name:        "set-region",
			Label:       "Set LoRa region",
			Description: "Set the radio's LoRa region through the CLI",
			Arg:         "region",
			Choices:     meshcli.Regions,
			build:       r.setRegion,
		},
		{
			Name:        "send-text",
			Label:       "Send text message",
			Description: fmt.Sprintf("Broadcast a text message of at most %d characters", meshcli.MaxMessageLength),
			Params:      []string{"message"},
			build:       r.sendText,
		},
	}
}

func (r *Registry) installCLI(string, Params) (orchestrator.Operation, error) {
	return orchestrator.Operation{
		ID:                 "install-cli",
		FailureKind:        orchestrator.ErrInstallation,
		Done:               r.deps.Status.CLIInstalled,
		AlreadyDoneMessage: "the meshtastic CLI is already installed",
		SuccessMessage:     "meshtastic CLI installed",
		Steps: []orchestrator.Step{
			{
				Name:     "install python3-full",
				Optional: true,
				Run:      r.retrying(r.apt("install", "-y", "python3-full")),
			},
			{
				Name:     "install pytap2",
				Optional: true,
				Run:      r.run(r.privileged("pip3", "install", "--upgrade", "pytap2", "--break-system-packages")),
			},
			{
				Name: "install pipx",
				Run:  r.retrying(r.apt("install", "-y", "pipx")),
			},
			{
				Name: "install meshtastic CLI",
				Run: r.run(command.Spec{
					Argv:    []string{"pipx", "install", "meshtastic[cli]"},
					Timeout: r.cfg.CLIInstallTimeout,
				}),
			},
			{
				Name:     "pipx ensurepath",
				Optional: true,
				Run: r.run(command.Spec{
					Argv:    []string{"pipx", "ensurepath"},
					Timeout: r.cfg.KeyFetchTimeout,
				}),
			},
			{
				Name:     "verify CLI",
				Optional: true,
				Run: func(ctx context.Context, rep *orchestrator.Report) error {
					v, err := r.deps.CLI.Version(ctx)
					if err != nil {
						return fmt.Errorf("CLI installed but not yet on PATH, open a new shell: %w", err)
					}
					rep.SetMessage("meshtastic CLI " + v + " installed")
					return nil
				},
			},
		},
	}, nil
}

func (r *Registry) setRegion(region string, p Params) (orchestrator.Operation, error) {
	if region == "" {
		region = p["region"]
	}
	if !meshcli.ValidRegion(region) {
		return orchestrator.Operation{}, fmt.Errorf("procedures: set-region: invalid region %q", region)
	}
	return orchestrator.Operation{
		ID:             "set-region",
		SuccessMessage: "LoRa region set to " + region,
		Steps: []orchestrator.Step{{
			Name: "set lora.region",
			Run: func(ctx context.Context, _ *orchestrator.Report) error {
				return r.deps.CLI.SetRegion(ctx, region)
			},
		}},
	}, nil
}

func (r *Registry) sendText(_ string, p Params) (orchestrator.Operation, error) {
	msg := p["message"]
	if err := meshcli.ValidateMessage(msg); err != nil {
		return orchestrator.Operation{}, err
	}
	return orchestrator.Operation{
		ID:             "send-text",
		SuccessMessage: "message sent",
		Steps: []orchestrator.Step{{
			Name: "send text",
			Run: func(ctx context.Context, _ *orchestrator.Report) error {
				return r.deps.CLI.SendText(ctx, msg)
			},
		}},
	}, nil
}
