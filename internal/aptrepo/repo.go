// Package aptrepo describes the per-channel apt repository that ships the
// daemon package and converts its signing key for apt.
package aptrepo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/openpgp/armor"
)

// Defaults follow the openSUSE Build Service layout of the Meshtastic project.
const (
	DefaultBaseURL   = "http://download.opensuse.org/repositories"
	DefaultOSVersion = "Raspbian_12"
	DefaultListDir   = "/etc/apt/sources.list.d"
	DefaultKeyDir    = "/etc/apt/trusted.gpg.d"
	DefaultChannel   = "beta"
)

// Channels lists the supported release channels.
var Channels = []string{"beta", "alpha", "daily"}

// publicKeyBlock is the armor type of an exported public key.
const publicKeyBlock = "PGP PUBLIC KEY BLOCK"

// Config holds the repository layout.
type Config struct {
	// BaseURL is the repository host root.
	// Default: http://download.opensuse.org/repositories
	BaseURL string `yaml:"base_url" env:"BASE_URL"`

	// OSVersion is the distribution directory of the repository.
	// Default: Raspbian_12
	OSVersion string `yaml:"os_version" env:"OS_VERSION"`

	// ListDir holds apt source lists.
	// Default: /etc/apt/sources.list.d
	ListDir string `yaml:"list_dir" env:"LIST_DIR"`

	// KeyDir holds trusted keyrings.
	// Default: /etc/apt/trusted.gpg.d
	KeyDir string `yaml:"key_dir" env:"KEY_DIR"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.OSVersion == "" {
		c.OSVersion = DefaultOSVersion
	}
	if c.ListDir == "" {
		c.ListDir = DefaultListDir
	}
	if c.KeyDir == "" {
		c.KeyDir = DefaultKeyDir
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("aptrepo: config: BaseURL %q must be an http(s) URL", c.BaseURL)
	}
	if c.OSVersion == "" {
		return errors.New("aptrepo: config: OSVersion is required")
	}
	return nil
}

// ValidChannel reports whether ch is a supported channel.
func ValidChannel(ch string) bool {
	for _, c := range Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// Repo resolves channel-specific repository locations.
type Repo struct {
	cfg Config
}

// New returns a Repo. cfg must have defaults applied.
func New(cfg Config) *Repo {
	return &Repo{cfg: cfg}
}

// URL returns the repository root for ch, with a trailing slash.
func (r *Repo) URL(ch string) string {
	return fmt.Sprintf("%s/network:/Meshtastic:/%s/%s/", strings.TrimRight(r.cfg.BaseURL, "/"), ch, r.cfg.OSVersion)
}

// KeyURL returns the armored release key location for ch.
func (r *Repo) KeyURL(ch string) string {
	return r.URL(ch) + "Release.key"
}

// ListFile returns the apt source list path for ch.
func (r *Repo) ListFile(ch string) string {
	return filepath.Join(r.cfg.ListDir, "network:Meshtastic:"+ch+".list")
}

// KeyFile returns the dearmored keyring path for ch.
func (r *Repo) KeyFile(ch string) string {
	return filepath.Join(r.cfg.KeyDir, "network_Meshtastic_"+ch+".gpg")
}

// ListContent returns the one-line source list for ch.
func (r *Repo) ListContent(ch string) string {
	return fmt.Sprintf("deb %s /\n", r.URL(ch))
}

// AllListFiles returns the source list paths of every channel.
func (r *Repo) AllListFiles() []string {
	paths := make([]string, 0, len(Channels))
	for _, ch := range Channels {
		paths = append(paths, r.ListFile(ch))
	}
	return paths
}

// AllKeyFiles returns the keyring paths of every channel.
func (r *Repo) AllKeyFiles() []string {
	paths := make([]string, 0, len(Channels))
	for _, ch := range Channels {
		paths = append(paths, r.KeyFile(ch))
	}
	return paths
}

// Dearmor converts an ASCII-armored public key into the binary keyring
// form apt reads from trusted.gpg.d. Input that is already binary is
// returned unchanged.
func Dearmor(key []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(key)
	if len(trimmed) == 0 {
		return nil, errors.New("aptrepo: dearmor: empty key")
	}
	if !bytes.HasPrefix(trimmed, []byte("-----BEGIN ")) {
		return key, nil
	}
	block, err := armor.Decode(bytes.NewReader(trimmed))
	if err != nil {
		return nil, fmt.Errorf("aptrepo: dearmor: %w", err)
	}
	if block.Type != publicKeyBlock {
		return nil, fmt.Errorf("aptrepo: dearmor: unexpected block type %q", block.Type)
	}
	out, err := io.ReadAll(block.Body)
	if err != nil {
		return nil, fmt.Errorf("aptrepo: dearmor: %w", err)
	}
	return out, nil
}
