// Package systemd controls system services through systemctl.
package systemd

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/plexsphere/meshcfg/internal/command"
)

// DefaultTimeout bounds a single systemctl invocation.
const DefaultTimeout = 60 * time.Second

// probeTimeout bounds is-active and is-enabled queries.
const probeTimeout = 10 * time.Second

// ServiceManager abstracts systemd service management for testability.
// Mutating methods are idempotent: repeating an applied change returns nil.
type ServiceManager interface {
	// IsAvailable returns true if systemctl is available on the system.
	IsAvailable() bool

	// Enable enables the named service to start on boot.
	Enable(ctx context.Context, service string) error

	// Disable disables the named service from starting on boot.
	Disable(ctx context.Context, service string) error

	// Start starts the named service.
	Start(ctx context.Context, service string) error

	// Stop stops the named service. Returns nil if the service is not running.
	Stop(ctx context.Context, service string) error

	// IsEnabled returns true if the named service is enabled for boot.
	IsEnabled(ctx context.Context, service string) bool

	// IsActive returns true if the named service is currently running.
	IsActive(ctx context.Context, service string) bool
}

// Controller implements ServiceManager over a command.Runner.
type Controller struct {
	runner command.Runner
}

// NewController returns a Controller that runs systemctl through runner.
func NewController(runner command.Runner) *Controller {
	return &Controller{runner: runner}
}

func (c *Controller) IsAvailable() bool {
	_, err := exec.LookPath("systemctl")
	return err == nil
}

func (c *Controller) Enable(ctx context.Context, service string) error {
	return c.run(ctx, "enable", service)
}

func (c *Controller) Disable(ctx context.Context, service string) error {
	return c.run(ctx, "disable", service)
}

func (c *Controller) Start(ctx context.Context, service string) error {
	return c.run(ctx, "start", service)
}

func (c *Controller) Stop(ctx context.Context, service string) error {
	return c.run(ctx, "stop", service)
}

func (c *Controller) IsEnabled(ctx context.Context, service string) bool {
	return c.query(ctx, "is-enabled", service) == "enabled"
}

func (c *Controller) IsActive(ctx context.Context, service string) bool {
	return c.query(ctx, "is-active", service) == "active"
}

func (c *Controller) run(ctx context.Context, args ...string) error {
	res, err := c.runner.Run(ctx, command.Spec{
		Argv:       append([]string{"systemctl"}, args...),
		Timeout:    DefaultTimeout,
		Privileged: true,
	})
	if err != nil {
		return fmt.Errorf("systemd: systemctl %s: %w", args[0], err)
	}
	if err := res.Err(); err != nil {
		return fmt.Errorf("systemd: systemctl %s: %w", args[0], err)
	}
	return nil
}

// query returns the first line systemctl prints, or "" on launch failure.
func (c *Controller) query(ctx context.Context, args ...string) string {
	res, err := c.runner.Run(ctx, command.Spec{
		Argv:    append([]string{"systemctl"}, args...),
		Timeout: probeTimeout,
	})
	if err != nil || res.TimedOut {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(res.Stdout), "\n")
	return line
}
