package leadership

import (
	"fmt"
	"time"

	"github.com/concave-dev/lattice/internal/validate"
)

const (
	// DefaultTermDuration is the lease length of a leadership term
	DefaultTermDuration = 10 * time.Second

	// DefaultPoolSize bounds concurrent lock callbacks
	DefaultPoolSize = 32

	// schedulingGranularity is the coarsest timer resolution we plan for.
	// Renewal runs at term/2, so a term must leave room for two ticks.
	schedulingGranularity = 10 * time.Millisecond
)

// Config holds configuration for the leadership Manager
type Config struct {
	TermDuration time.Duration // Lease length; renewal runs at half of it
	LockTTL      time.Duration // Lease requested from the lock; zero means TermDuration
	PoolSize     int           // Worker pool size for lock callbacks
	RetryDelay   time.Duration // Pause between failed lock attempts, zero retries at once
}

// DefaultConfig returns a default configuration for the leadership Manager
func DefaultConfig() *Config {
	return &Config{
		TermDuration: DefaultTermDuration,
		LockTTL:      DefaultTermDuration,
		PoolSize:     DefaultPoolSize,
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.TermDuration < 2*schedulingGranularity {
		return fmt.Errorf("term duration must be at least %v, got: %v", 2*schedulingGranularity, c.TermDuration)
	}
	if c.LockTTL != 0 && c.LockTTL != c.TermDuration {
		return fmt.Errorf("lock TTL (%v) must equal the term duration (%v)", c.LockTTL, c.TermDuration)
	}
	if err := validate.ValidatePositiveCount(c.PoolSize, "pool size"); err != nil {
		return err
	}
	return validate.ValidateNonNegativeDuration(c.RetryDelay, "retry delay")
}

// ttl is the lease requested from the lock service.
func (c *Config) ttl() time.Duration {
	if c.LockTTL == 0 {
		return c.TermDuration
	}
	return c.LockTTL
}

// renewInterval is when a held lease is extended.
func (c *Config) renewInterval() time.Duration {
	return c.TermDuration / 2
}
