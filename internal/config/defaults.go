// Package config holds defaults shared by the latticed components (cluster
// transport, leadership, HTTP API) and the daemon flag layer.
package config

import "time"

const (
	// DefaultBindAddr is the default cluster listener address; the wildcard
	// lets peers reach the node on any interface
	DefaultBindAddr = "0.0.0.0"

	// DefaultAPIAddr keeps the control API on loopback unless --api says otherwise
	DefaultAPIAddr = "127.0.0.1"

	// DefaultLogLevel is the default log level for all components
	DefaultLogLevel = "INFO"

	// DefaultShutdownTimeout bounds graceful shutdown of the daemon
	DefaultShutdownTimeout = 10 * time.Second
)
