// Package api provides the HTTP API server for lattice nodes.
//
// This file defines the configuration for the REST API that exposes the
// local node's view of the cluster (monitored nodes, streams, the leader
// board) and lets operators run for or withdraw from leadership paths.
// The configuration holds network binding parameters and the components
// whose state the API serves.
package api

import (
	"fmt"
	"net"
	"strconv"

	"github.com/concave-dev/lattice/internal/cluster"
	"github.com/concave-dev/lattice/internal/leadership"
	"github.com/concave-dev/lattice/internal/validate"
	"github.com/concave-dev/lattice/internal/version"
)

const (
	// DefaultAPIPort is the default port for HTTP API server
	DefaultAPIPort = 8008
)

// Config holds all configuration parameters required for running the HTTP
// API server within a lattice node.
//
// The component references are read by handlers on every request, so the
// server must be started after the connection manager is running.
//
// TODO: Add support for TLS/HTTPS configuration (cert/key files)
type Config struct {
	BindAddr   string                     // HTTP server bind address (e.g., "127.0.0.1")
	BindPort   int                        // HTTP server bind port
	Version    string                     // Version reported by /health and /cluster/info
	Cluster    *cluster.ConnectionManager // Streams and monitored nodes
	Membership *cluster.Membership        // Last seen and departure info; optional
	Leadership *leadership.Manager        // Leader board and local contests
}

// DefaultConfig creates a Config with loopback binding. Components must be
// set by the caller.
func DefaultConfig() *Config {
	return &Config{
		BindAddr: "127.0.0.1",
		BindPort: DefaultAPIPort,
		Version:  version.LatticedVersion,
	}
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.BindAddr, strconv.Itoa(c.BindPort))
}

// Validate checks that the server can start with this configuration.
func (c *Config) Validate() error {
	if err := validate.ValidateRequiredString(c.BindAddr, "bind address"); err != nil {
		return err
	}
	if err := validate.ValidatePortRange(c.BindPort); err != nil {
		return fmt.Errorf("bind port validation failed: %w", err)
	}
	if c.Cluster == nil {
		return fmt.Errorf("connection manager cannot be nil")
	}
	if c.Leadership == nil {
		return fmt.Errorf("leadership manager cannot be nil")
	}

	return nil
}
