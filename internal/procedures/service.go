package procedures

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/plexsphere/meshcfg/internal/orchestrator"
	"github.com/plexsphere/meshcfg/internal/status"
)

const avahiService = "avahi-daemon"

// avahiServiceTemplate advertises the daemon API for client auto-discovery.
const avahiServiceTemplate = `<?xml version="1.0" standalone="no"?><!--*-nxml-*-->
<!DOCTYPE service-group SYSTEM "avahi-service.dtd">
<service-group>
<name>Meshtastic</name>
<service protocol="ipv4">
<type>_meshtastic._tcp</type>
<port>%d</port>
</service>
</service-group>
`

func (r *Registry) serviceEntries() []Entry {
	return []Entry{
		{
			Name:        "enable-boot",
			Label:       "Enable on boot",
			Description: "Start meshtasticd automatically at boot",
			build:       r.serviceToggle("enable-boot", true, true, "enabled on boot"),
		},
		{
			Name:        "disable-boot",
			Label:       "Disable on boot",
			Description: "Do not start meshtasticd at boot",
			build:       r.serviceToggle("disable-boot", true, false, "disabled on boot"),
		},
		{
			Name:        "start-service",
			Label:       "Start service",
			Description: "Start meshtasticd now",
			build:       r.serviceToggle("start-service", false, true, "started"),
		},
		{
			Name:        "stop-service",
			Label:       "Stop service",
			Description: "Stop meshtasticd now",
			build:       r.serviceToggle("stop-service", false, false, "stopped"),
		},
		{
			Name:        "enable-avahi",
			Label:       "Enable Avahi",
			Description: "Advertise the daemon API over mDNS for client auto-discovery",
			build:       r.enableAvahi,
		},
		{
			Name:        "disable-avahi",
			Label:       "Disable Avahi",
			Description: "Remove the mDNS advertisement and stop avahi-daemon",
			build:       r.disableAvahi,
		},
	}
}

// serviceToggle builds an operation that drives the daemon unit's boot
// enablement (boot) or run state toward want.
func (r *Registry) serviceToggle(id string, boot, want bool, verb string) func(string, Params) (orchestrator.Operation, error) {
	return func(string, Params) (orchestrator.Operation, error) {
		probe, apply, action := r.deps.Status.ServiceActive, r.deps.Services.Stop, "stop"
		switch {
		case boot && want:
			probe, apply, action = r.deps.Status.BootEnabled, r.deps.Services.Enable, "enable"
		case boot:
			probe, apply, action = r.deps.Status.BootEnabled, r.deps.Services.Disable, "disable"
		case want:
			apply, action = r.deps.Services.Start, "start"
		}
		return orchestrator.Operation{
			ID: id,
			Done: func(ctx context.Context) bool {
				return probe(ctx) == want
			},
			AlreadyDoneMessage: fmt.Sprintf("%s is already %s", r.cfg.Service, verb),
			SuccessMessage:     fmt.Sprintf("%s %s", r.cfg.Service, verb),
			Steps: []orchestrator.Step{{
				Name: "systemctl " + action,
				Run: func(ctx context.Context, _ *orchestrator.Report) error {
					return apply(ctx, r.cfg.Service)
				},
			}},
		}, nil
	}
}

func (r *Registry) enableAvahi(string, Params) (orchestrator.Operation, error) {
	file := r.cfg.AvahiServiceFile
	return orchestrator.Operation{
		ID:                 "enable-avahi",
		FailureKind:        orchestrator.ErrInstallation,
		Done:               r.deps.Status.AvahiEnabled,
		AlreadyDoneMessage: "Avahi is already enabled",
		SuccessMessage:     "Avahi enabled; clients can now discover this node",
		Steps: []orchestrator.Step{
			{
				Name: "install " + status.DefaultAvahiPackage,
				Run: func(ctx context.Context, rep *orchestrator.Report) error {
					if r.deps.Status.PackageInstalled(ctx, status.DefaultAvahiPackage) {
						rep.Log.Info("avahi-daemon already installed")
						return nil
					}
					return r.retrying(r.apt("install", "-y", status.DefaultAvahiPackage))(ctx, rep)
				},
			},
			{
				Name: "create services directory",
				Run: func(ctx context.Context, _ *orchestrator.Report) error {
					return r.deps.FS.MkdirAll(ctx, filepath.Dir(file))
				},
			},
			{
				Name: "write service file",
				Run: func(ctx context.Context, _ *orchestrator.Report) error {
					content := fmt.Sprintf(avahiServiceTemplate, r.cfg.APIPort)
					return r.deps.FS.WriteFile(ctx, file, []byte(content), 0o644)
				},
			},
			{
				Name: "enable " + avahiService,
				Run: func(ctx context.Context, _ *orchestrator.Report) error {
					return r.deps.Services.Enable(ctx, avahiService)
				},
			},
			{
				Name: "start " + avahiService,
				Run: func(ctx context.Context, _ *orchestrator.Report) error {
					return r.deps.Services.Start(ctx, avahiService)
				},
			},
		},
	}, nil
}

func (r *Registry) disableAvahi(string, Params) (orchestrator.Operation, error) {
	return orchestrator.Operation{
		ID: "disable-avahi",
		Done: func(ctx context.Context) bool {
			return !r.deps.Status.AvahiEnabled(ctx)
		},
		AlreadyDoneMessage: "Avahi is not enabled",
		SuccessMessage:     "Avahi disabled",
		Steps: []orchestrator.Step{
			{
				Name:     "stop " + avahiService,
				Optional: true,
				Run: func(ctx context.Context, _ *orchestrator.Report) error {
					return r.deps.Services.Stop(ctx, avahiService)
				},
			},
			{
				Name:     "disable " + avahiService,
				Optional: true,
				Run: func(ctx context.Context, _ *orchestrator.Report) error {
					return r.deps.Services.Disable(ctx, avahiService)
				},
			},
			{
				Name: "remove service file",
				Run: func(ctx context.Context, _ *orchestrator.Report) error {
					return r.deps.FS.Remove(ctx, r.cfg.AvahiServiceFile)
				},
			},
		},
	}, nil
}
