package procedures

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/plexsphere/meshcfg/internal/bootconfig"
	"github.com/plexsphere/meshcfg/internal/daemonconf"
	"github.com/plexsphere/meshcfg/internal/orchestrator"
)

// ErrNoMeshAdvMini is returned when the MeshAdv Mini HAT is not detected.
var ErrNoMeshAdvMini = errors.New("procedures: MeshAdv Mini HAT not detected")

const rebootNotice = "; reboot required"

func (r *Registry) bootEntries() []Entry {
	return []Entry{
		{
			Name:        "enable-spi",
			Label:       "Enable SPI",
			Description: "Enable the SPI bus the LoRa radio is attached to",
			build:       r.enableSPI,
		},
		{
			Name:        "enable-i2c",
			Label:       "Enable I2C",
			Description: "Enable the ARM I2C bus for displays and sensors",
			build:       r.enableI2C,
		},
		{
			Name:        "enable-uart",
			Label:       "Enable GPS/UART",
			Description: "Enable the UART for a GPS module and disable the serial console",
			build:       r.enableUART,
		},
		{
			Name:        "configure-meshadv-mini",
			Label:       "Configure MeshAdv Mini",
			Description: "Add the GPIO and PPS overlays the MeshAdv Mini HAT needs",
			build:       r.configureMeshAdvMini,
		},
		{
			Name:        "apply-hat-config",
			Label:       "Apply HAT config",
			Description: "Activate a radio configuration fragment from available.d",
			Arg:         "fragment",
			build:       r.applyHATConfig,
		},
		{
			Name:        "edit-config",
			Label:       "Edit config",
			Description: "Create the daemon's config.yaml if missing and open it in an editor",
			build:       r.editConfig,
		},
	}
}

func (r *Registry) enableSPI(string, Params) (orchestrator.Operation, error) {
	return orchestrator.Operation{
		ID:                 "enable-spi",
		Done:               r.deps.Status.SPIEnabled,
		AlreadyDoneMessage: "SPI is already enabled",
		SuccessMessage:     "SPI enabled" + rebootNotice,
		Steps: []orchestrator.Step{
			{
				Name:     "raspi-config do_spi",
				Optional: true,
				Run:      r.run(r.privileged("raspi-config", "nonint", "do_spi", "0")),
			},
			{
				Name: "apply SPI directives",
				Run:  r.edit(bootconfig.SPIDirectives),
			},
		},
	}, nil
}

func (r *Registry) enableI2C(string, Params) (orchestrator.Operation, error) {
	return orchestrator.Operation{
		ID:                 "enable-i2c",
		Done:               r.deps.Status.I2CEnabled,
		AlreadyDoneMessage: "I2C is already enabled",
		SuccessMessage:     "I2C enabled" + rebootNotice,
		Steps: []orchestrator.Step{
			{
				Name:     "raspi-config do_i2c",
				Optional: true,
				Run:      r.run(r.privileged("raspi-config", "nonint", "do_i2c", "0")),
			},
			{
				Name: "apply I2C directives",
				Run:  r.edit(bootconfig.I2CDirectives),
			},
		},
	}, nil
}

func (r *Registry) enableUART(string, Params) (orchestrator.Operation, error) {
	return orchestrator.Operation{
		ID:                 "enable-uart",
		Done:               r.deps.Status.UARTEnabled,
		AlreadyDoneMessage: "GPS/UART is already enabled",
		SuccessMessage:     "GPS/UART enabled" + rebootNotice,
		Steps: []orchestrator.Step{
			{
				Name: "apply UART directives",
				Run: r.edit(func() []bootconfig.Directive {
					return bootconfig.UARTDirectives(r.deps.Detector.IsPi5())
				}),
			},
			{
				// 1 disables the login console on the serial port.
				Name:     "raspi-config do_serial_cons",
				Optional: true,
				Run:      r.run(r.privileged("raspi-config", "nonint", "do_serial_cons", "1")),
			},
		},
	}, nil
}

func (r *Registry) configureMeshAdvMini(string, Params) (orchestrator.Operation, error) {
	return orchestrator.Operation{
		ID:                 "configure-meshadv-mini",
		Done:               r.deps.Status.MeshAdvMiniConfigured,
		AlreadyDoneMessage: "MeshAdv Mini is already configured",
		SuccessMessage:     "MeshAdv Mini configured" + rebootNotice,
		Steps: []orchestrator.Step{
			{
				Name: "detect MeshAdv Mini",
				Run: func(context.Context, *orchestrator.Report) error {
					if !r.deps.Detector.IsMeshAdvMini() {
						return ErrNoMeshAdvMini
					}
					return nil
				},
			},
			{
				Name: "apply MeshAdv Mini directives",
				Run:  r.edit(bootconfig.MeshAdvMiniDirectives),
			},
		},
	}, nil
}

func (r *Registry) applyHATConfig(fragment string, p Params) (orchestrator.Operation, error) {
	if fragment == "" {
		fragment = p["fragment"]
	}
	var src string

	return orchestrator.Operation{
		ID: "apply-hat-config",
		Steps: []orchestrator.Step{
			{
				Name: "create configuration directories",
				Run: func(ctx context.Context, _ *orchestrator.Report) error {
					return r.deps.Daemon.EnsureDirs(ctx)
				},
			},
			{
				Name: "select fragment",
				Run: func(_ context.Context, rep *orchestrator.Report) error {
					hat, _ := r.deps.Detector.HAT()
					path, err := r.deps.Daemon.Select(fragment, hat.Product, hat.Vendor)
					if err != nil {
						return err
					}
					rep.Log.Info("fragment selected", "path", path)
					src = path
					return nil
				},
			},
			{
				Name: "validate fragment",
				Run: func(context.Context, *orchestrator.Report) error {
					return daemonconf.Validate(src)
				},
			},
			{
				Name: "activate fragment",
				Run: func(ctx context.Context, rep *orchestrator.Report) error {
					dst, err := r.deps.Daemon.Activate(ctx, src)
					if err != nil {
						return err
					}
					rep.SetMessage(fmt.Sprintf("activated %s; restart %s to apply", filepath.Base(dst), r.cfg.Service))
					return nil
				},
			},
		},
	}, nil
}

// EditConfigID is the operation that prepares config.yaml for editing. Front
// ends open the editor once it succeeds.
const EditConfigID = "edit-config"

func (r *Registry) editConfig(string, Params) (orchestrator.Operation, error) {
	return orchestrator.Operation{
		ID: EditConfigID,
		Steps: []orchestrator.Step{
			{
				Name: "create config file",
				Run: func(ctx context.Context, rep *orchestrator.Report) error {
					created, err := r.deps.Daemon.EnsureConfig(ctx)
					if err != nil {
						return err
					}
					path := r.deps.Daemon.ConfigPath()
					if created {
						rep.SetMessage("created " + path)
					} else {
						rep.SetMessage(path + " ready for editing")
					}
					return nil
				},
			},
		},
	}, nil
}
