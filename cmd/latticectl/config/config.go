// Package config provides configuration management for the latticectl CLI.
package config

import "github.com/concave-dev/lattice/internal/version"

const (
	DefaultAPIAddr = "127.0.0.1:8008" // Default API server address (routable)
	DefaultTimeout = 8                // Default request timeout in seconds
)

// Version returns the current latticectl CLI version from the centralized version package
var Version = version.LatticectlVersion

// Global holds the global CLI configuration
var Global struct {
	APIAddr  string // Address of the latticed API server to connect to
	LogLevel string // Log level for CLI operations
	Timeout  int    // Request timeout in seconds
	Verbose  bool   // Show verbose output
	Output   string // Output format: table, json
}

// Node holds the node command configuration
var Node struct {
	Watch       bool   // Enable watch mode for live updates
	StateFilter string // Filter nodes by state (ACTIVE, INACTIVE)
}

// Stream holds the stream command configuration
var Stream struct {
	Watch    bool   // Enable watch mode for live updates
	Outbound string // Filter streams by direction: "", "true" (dialed) or "false" (accepted)
}

// Leader holds the leader command configuration
var Leader struct {
	Watch        bool   // Enable watch mode for live updates
	LeaderFilter string // Only show paths led by this node
}
