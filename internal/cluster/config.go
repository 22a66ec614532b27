package cluster

import (
	"fmt"
	"net"
	"time"

	"github.com/concave-dev/lattice/internal/logging"
	"github.com/concave-dev/lattice/internal/validate"
	"github.com/concave-dev/lattice/internal/wire"
)

const (
	// DefaultBindPort is the default TCP port for node-to-node streams
	DefaultBindPort = 4740

	// DefaultWorkers is the IO worker pool size. Fixed and small so goroutine
	// and socket bookkeeping does not grow with cluster size.
	DefaultWorkers = 3

	// DefaultReconnectInterval is the custodian period
	DefaultReconnectInterval = 3 * time.Second

	// DefaultReconnectInitialDelay is the pause before the first custodian pass
	DefaultReconnectInitialDelay = 1 * time.Second

	// DefaultDialTimeout bounds a single outbound connection attempt
	DefaultDialTimeout = 2 * time.Second

	// DefaultDialRate caps custodian dials per second across all peers
	DefaultDialRate = 64.0

	// DefaultWriteQueueSize is the per-stream outbound frame queue length
	DefaultWriteQueueSize = 1024

	// DefaultGoodbyeTimeout bounds the best-effort GOODBYE write on removal
	DefaultGoodbyeTimeout = 500 * time.Millisecond
)

// Config holds configuration for the ConnectionManager
type Config struct {
	BindAddr string       // Listen address for cluster streams
	BindPort int          // Listen port for cluster streams
	Listener net.Listener // Pre-bound listener; BindAddr/BindPort are ignored when set

	Workers               int           // Number of IO workers
	ReconnectInterval     time.Duration // Custodian period
	ReconnectInitialDelay time.Duration // Delay before the first custodian pass
	DialTimeout           time.Duration // Outbound connect timeout
	DialRate              float64       // Custodian dials per second, 0 for unlimited
	IdleTimeout           time.Duration // Prune streams idle this long, 0 disables
	WriteQueueSize        int           // Per-stream outbound queue length
	GoodbyeTimeout        time.Duration // Write deadline for GOODBYE frames
	MaxFrameSize          int           // Largest accepted frame in bytes

	LogLevel string // Log level
}

// DefaultConfig returns a default configuration for the ConnectionManager
func DefaultConfig() *Config {
	return &Config{
		BindAddr:              "0.0.0.0",
		BindPort:              DefaultBindPort,
		Workers:               DefaultWorkers,
		ReconnectInterval:     DefaultReconnectInterval,
		ReconnectInitialDelay: DefaultReconnectInitialDelay,
		DialTimeout:           DefaultDialTimeout,
		DialRate:              DefaultDialRate,
		WriteQueueSize:        DefaultWriteQueueSize,
		GoodbyeTimeout:        DefaultGoodbyeTimeout,
		MaxFrameSize:          wire.DefaultMaxFrameSize,
		LogLevel:              "INFO",
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Listener == nil {
		if err := validate.ValidateField(c.BindAddr, "required,ip"); err != nil {
			return fmt.Errorf("invalid bind address: %w", err)
		}
		if err := validate.ValidateField(c.BindPort, "min=0,max=65535"); err != nil {
			return fmt.Errorf("invalid bind port: %w", err)
		}
	}

	if err := validate.ValidatePositiveCount(c.Workers, "workers"); err != nil {
		return err
	}
	if err := validate.ValidatePositiveTimeout(c.ReconnectInterval, "reconnect interval"); err != nil {
		return err
	}
	if err := validate.ValidateNonNegativeDuration(c.ReconnectInitialDelay, "reconnect initial delay"); err != nil {
		return err
	}
	if err := validate.ValidatePositiveTimeout(c.DialTimeout, "dial timeout"); err != nil {
		return err
	}
	if c.DialRate < 0 {
		return fmt.Errorf("dial rate cannot be negative, got: %v", c.DialRate)
	}
	if err := validate.ValidateNonNegativeDuration(c.IdleTimeout, "idle timeout"); err != nil {
		return err
	}
	if err := validate.ValidatePositiveCount(c.WriteQueueSize, "write queue size"); err != nil {
		return err
	}
	if err := validate.ValidatePositiveTimeout(c.GoodbyeTimeout, "goodbye timeout"); err != nil {
		return err
	}
	if c.MaxFrameSize < wire.HeaderSize {
		return fmt.Errorf("max frame size must be at least %d bytes, got: %d", wire.HeaderSize, c.MaxFrameSize)
	}

	return logging.ValidateLogLevel(c.LogLevel)
}

// advertiseIP returns the IP peers should dial back on when the local node
// was started without one.
func (c *Config) advertiseIP(listener net.Listener) string {
	if tcp, ok := listener.Addr().(*net.TCPAddr); ok && !tcp.IP.IsUnspecified() {
		return tcp.IP.String()
	}
	if c.BindAddr != "" && c.BindAddr != "0.0.0.0" {
		return c.BindAddr
	}
	return "127.0.0.1"
}
