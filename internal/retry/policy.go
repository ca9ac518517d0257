// Package retry re-runs commands that fail because of package-manager lock
// contention or timeouts, clearing the obstruction between attempts.
package retry

import (
	"errors"
	"strings"
	"time"

	"github.com/plexsphere/meshcfg/internal/command"
)

// DefaultMaxAttempts is the default number of attempts, including the first.
const DefaultMaxAttempts = 3

// DefaultDelay is the default pause between attempts.
const DefaultDelay = 10 * time.Second

// NoDelay retries immediately. Any negative Delay has the same effect.
const NoDelay time.Duration = -1

// LockSignatures are stderr fragments apt and dpkg print when another
// process holds their lock or a previous run was interrupted.
var LockSignatures = []string{
	"Could not get lock",
	"Unable to acquire the dpkg frontend lock",
	"Unable to lock directory",
	"dpkg was interrupted",
}

// ErrLockContention classifies a final result that still reported a lock signature.
var ErrLockContention = errors.New("retry: package manager lock contention")

// Predicate decides whether a result warrants lock recovery and another attempt.
type Predicate func(command.Result) bool

// StderrContains returns a Predicate matching any of the given fragments in
// stderr or stdout. Matching is plain substring search.
func StderrContains(fragments ...string) Predicate {
	return func(res command.Result) bool {
		for _, f := range fragments {
			if strings.Contains(res.Stderr, f) || strings.Contains(res.Stdout, f) {
				return true
			}
		}
		return false
	}
}

// LockContention matches the apt/dpkg lock signatures.
var LockContention = StderrContains(LockSignatures...)

// Policy bounds a retry loop. Total elapsed time is at most
// MaxAttempts * (command timeout + Delay).
type Policy struct {
	// MaxAttempts is the total number of attempts. Must be at least 1.
	// Default: 3
	MaxAttempts int `yaml:"max_attempts" env:"MAX_ATTEMPTS"`

	// Delay is the constant pause between attempts. Zero uses the default;
	// NoDelay retries immediately.
	// Default: 10s
	Delay time.Duration `yaml:"delay" env:"DELAY"`

	// RetryOn lists predicates that trigger lock recovery and a retry.
	// Default: LockContention
	RetryOn []Predicate `yaml:"-"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (p *Policy) ApplyDefaults() {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Delay == 0 {
		p.Delay = DefaultDelay
	}
	if len(p.RetryOn) == 0 {
		p.RetryOn = []Predicate{LockContention}
	}
}

// Validate checks that policy values are within acceptable ranges.
func (p *Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.New("retry: policy: MaxAttempts must be at least 1")
	}
	return nil
}

// pause is the effective delay between attempts.
func (p *Policy) pause() time.Duration {
	return max(p.Delay, 0)
}

func (p *Policy) matches(res command.Result) bool {
	for _, pred := range p.RetryOn {
		if pred(res) {
			return true
		}
	}
	return false
}
