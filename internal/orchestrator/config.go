// Package orchestrator runs named operations on a bounded worker pool,
// enforcing one in-flight run per operation and delivering exactly one
// result per submission.
package orchestrator

import (
	"errors"
	"time"
)

// DefaultWorkers is the default size of the worker pool.
const DefaultWorkers = 4

// DefaultQueueSize is the default number of queued operations.
const DefaultQueueSize = 16

// DefaultOperationTimeout bounds an operation that sets no timeout.
const DefaultOperationTimeout = 30 * time.Minute

// Config holds the configuration for the Orchestrator.
type Config struct {
	// Workers is the number of operations that may run at once.
	// Default: 4
	Workers int `yaml:"workers" env:"WORKERS"`

	// QueueSize is the number of accepted operations waiting for a worker.
	// Default: 16
	QueueSize int `yaml:"queue_size" env:"QUEUE_SIZE"`

	// OperationTimeout bounds operations that do not set their own timeout.
	// Default: 30m
	OperationTimeout time.Duration `yaml:"operation_timeout" env:"OPERATION_TIMEOUT"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.OperationTimeout == 0 {
		c.OperationTimeout = DefaultOperationTimeout
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return errors.New("orchestrator: config: Workers must be at least 1")
	}
	if c.QueueSize < 1 {
		return errors.New("orchestrator: config: QueueSize must be at least 1")
	}
	if c.OperationTimeout < time.Second {
		return errors.New("orchestrator: config: OperationTimeout must be at least 1s")
	}
	return nil
}
