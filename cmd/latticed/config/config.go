// Package config provides configuration management for the lattice daemon.
//
// The daemon listens on two TCP endpoints: the cluster listener that peers
// stream to, and the HTTP API used by latticectl. Everything else describes
// the node's identity, its static seed peers, transport tuning and the
// leadership lock backend.
//
// EXPLICIT OVERRIDE TRACKING:
// The configuration tracks which values were set on the command line versus
// left at their defaults. An explicit port is bound exactly or startup fails;
// a default port falls forward to the next free one, which lets several
// daemons run on one host without flags.
package config

import (
	"time"

	configDefaults "github.com/concave-dev/lattice/internal/config"
	"github.com/concave-dev/lattice/internal/validate"
)

// ConfigField represents a configuration field that can be explicitly set
type ConfigField int

const (
	// Configuration field identifiers
	BindField ConfigField = iota
	APIAddrField
	LogFileField
)

const (
	DefaultBind     = configDefaults.DefaultBindAddr + ":4740" // Default cluster listener address
	DefaultAPI      = configDefaults.DefaultAPIAddr + ":8008"  // Default API address
	DefaultLogLevel = configDefaults.DefaultLogLevel           // Default log level
	DefaultMaxPorts = 100                                      // Ports tried when a default port is busy
)

// Config holds all daemon configuration values
type Config struct {
	BindAddr    string   // Cluster listener address
	BindPort    int      // Cluster listener port
	APIAddr     string   // HTTP API server address
	APIPort     int      // HTTP API server port
	AdvertiseIP string   // IP peers dial back on; derived from the listener when empty
	NodeName    string   // Node id, generated when empty
	JoinAddrs   []string // Static seed peers in id@host:port form
	Peers       []validate.PeerAddress

	Workers           int           // IO worker count
	ReconnectInterval time.Duration // Custodian period
	ReconnectDelay    time.Duration // Delay before the first custodian pass
	IdleTimeout       time.Duration // Close streams idle this long, 0 disables

	TermDuration time.Duration // Leadership lease length
	RedisAddr    string        // Redis lock backend; in-memory when empty
	LeadPaths    []string      // Paths to contest at startup

	LogLevel string // Log level: DEBUG, INFO, WARN, ERROR
	LogFile  string // Write logs here instead of stdout/stderr
	MaxPorts int    // Ports tried when a default port is busy

	// Flags to track if values were explicitly set by user
	bindExplicitlySet    bool
	apiAddrExplicitlySet bool
	logFileExplicitlySet bool
}

// Global configuration instance
var Global Config

// SetExplicitlySet marks a configuration field as explicitly set by the user.
func (c *Config) SetExplicitlySet(field ConfigField, value bool) {
	switch field {
	case BindField:
		c.bindExplicitlySet = value
	case APIAddrField:
		c.apiAddrExplicitlySet = value
	case LogFileField:
		c.logFileExplicitlySet = value
	}
}

// IsExplicitlySet returns whether a configuration field was explicitly set by the user.
func (c *Config) IsExplicitlySet(field ConfigField) bool {
	switch field {
	case BindField:
		return c.bindExplicitlySet
	case APIAddrField:
		return c.apiAddrExplicitlySet
	case LogFileField:
		return c.logFileExplicitlySet
	}
	return false
}
