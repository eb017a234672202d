// Package worker runs the conditions poll pipeline and its Pub/Sub surface.
package worker

import (
	"time"
)

// Job types accepted on the worker subscription.
const (
	JobConditionsRefresh = "conditions_refresh"
	JobHealthCheck       = "health_check"
)

// PollConfig holds configuration for the poll job.
type PollConfig struct {
	// Timeout bounds a whole poll run, including save and publish.
	// Default: 2 minutes
	Timeout time.Duration

	// PublishTimeout bounds the update notification.
	// Default: 10 seconds
	PublishTimeout time.Duration
}

// DefaultPollConfig returns the default poll configuration.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Timeout:        2 * time.Minute,
		PublishTimeout: 10 * time.Second,
	}
}

func (c PollConfig) withDefaults() PollConfig {
	d := DefaultPollConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = d.PublishTimeout
	}
	return c
}
