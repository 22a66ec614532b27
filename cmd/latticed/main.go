// Package main implements the lattice daemon (latticed).
// latticed joins a static mesh of controller nodes over TCP, keeps the mesh
// repaired, and runs lease-based leadership elections for named paths.
package main

import (
	"os"

	"github.com/concave-dev/lattice/cmd/latticed/commands"
)

// Main entry point
func main() {
	commands.SetupCommands()
	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
