// Package meshcli drives the meshtastic command-line client against the
// local daemon's TCP API.
package meshcli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/plexsphere/meshcfg/internal/command"
)

// DefaultBinary is the client executable installed by pipx.
const DefaultBinary = "meshtastic"

// DefaultHost is the daemon API host.
const DefaultHost = "localhost"

// DefaultTimeout bounds each client invocation.
const DefaultTimeout = 30 * time.Second

// MaxMessageLength is the longest text message accepted by SendText.
const MaxMessageLength = 200

// Region status strings reported when the region cannot be read.
const (
	RegionCLIUnavailable = "CLI Not Available"
	RegionUnknown        = "Unknown"
	RegionError          = "Error"
)

var (
	// ErrEmptyMessage rejects an empty text message.
	ErrEmptyMessage = errors.New("meshcli: message is empty")

	// ErrMessageTooLong rejects a message above MaxMessageLength characters.
	ErrMessageTooLong = fmt.Errorf("meshcli: message exceeds %d characters", MaxMessageLength)
)

// Config holds the configuration for the mesh CLI client.
type Config struct {
	// Binary is the client executable.
	// Default: meshtastic
	Binary string `yaml:"binary" env:"BINARY"`

	// Host is the daemon API host passed as --host.
	// Default: localhost
	Host string `yaml:"host" env:"HOST"`

	// Timeout bounds each invocation.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Binary == "" {
		c.Binary = DefaultBinary
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Binary == "" {
		return errors.New("meshcli: config: Binary is required")
	}
	if c.Timeout < time.Second {
		return errors.New("meshcli: config: Timeout must be at least 1s")
	}
	return nil
}

// Client runs the meshtastic CLI.
type Client struct {
	cfg    Config
	runner command.Runner
	logger *slog.Logger
}

// NewClient creates a Client. cfg must have defaults applied.
func NewClient(cfg Config, runner command.Runner, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		runner: runner,
		logger: logger.With("component", "meshcli"),
	}
}

// Installed reports whether the CLI runs.
func (c *Client) Installed(ctx context.Context) bool {
	_, err := c.Version(ctx)
	return err == nil
}

// Version returns the CLI's version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	res, err := c.run(ctx, "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Get returns the raw output of --get key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	res, err := c.run(ctx, "--host", c.cfg.Host, "--get", key)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// Set runs --set key value.
func (c *Client) Set(ctx context.Context, key, value string) error {
	res, err := c.run(ctx, "--host", c.cfg.Host, "--set", key, value)
	if err != nil {
		return err
	}
	c.logger.Info("setting updated", "key", key, "value", value, "response", strings.TrimSpace(res.Stdout))
	return nil
}

// SendText broadcasts a text message to the mesh.
func (c *Client) SendText(ctx context.Context, message string) error {
	if err := ValidateMessage(message); err != nil {
		return err
	}
	res, err := c.run(ctx, "--host", c.cfg.Host, "--sendtext", message)
	if err != nil {
		return err
	}
	c.logger.Info("message sent", "length", len(message), "response", strings.TrimSpace(res.Stdout))
	return nil
}

// SetRegion validates and applies a LoRa region.
func (c *Client) SetRegion(ctx context.Context, region string) error {
	if !ValidRegion(region) {
		return fmt.Errorf("meshcli: unknown region %q", region)
	}
	return c.Set(ctx, "lora.region", region)
}

// Region returns the configured LoRa region name, or one of the Region*
// status strings when it cannot be determined.
func (c *Client) Region(ctx context.Context) string {
	if !c.Installed(ctx) {
		return RegionCLIUnavailable
	}
	out, err := c.Get(ctx, "lora.region")
	if err != nil {
		c.logger.Debug("region query failed", "error", err)
		return RegionError
	}
	return ParseRegion(out)
}

func (c *Client) run(ctx context.Context, args ...string) (command.Result, error) {
	res, err := c.runner.Run(ctx, command.Spec{
		Argv:    append([]string{c.cfg.Binary}, args...),
		Timeout: c.cfg.Timeout,
	})
	if err != nil {
		return res, fmt.Errorf("meshcli: %w", err)
	}
	if err := res.Err(); err != nil {
		return res, fmt.Errorf("meshcli: %w", err)
	}
	return res, nil
}

// ValidateMessage checks a text message before sending.
func ValidateMessage(message string) error {
	switch n := len([]rune(strings.TrimSpace(message))); {
	case n == 0:
		return ErrEmptyMessage
	case n > MaxMessageLength:
		return ErrMessageTooLong
	}
	return nil
}
