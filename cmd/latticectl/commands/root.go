// Package commands provides the command tree for latticectl.
//
// COMMAND STRUCTURE:
//   - info: cluster overview from the queried node
//   - node: cluster members (ls, info)
//   - stream: open cluster connections (ls)
//   - leader: leader board and candidacies (ls, info, run, withdraw, stepdown)
//
// Commands are declared here without RunE; main wires the handlers.
package commands

import (
	"github.com/spf13/cobra"
)

// Root command
var RootCmd = &cobra.Command{
	Use:   "latticectl",
	Short: "CLI for inspecting lattice clusters and their leaders",
	Long: `Lattice CLI (latticectl) talks to the HTTP API of a latticed node to list
cluster members and streams, inspect the leader board, and start or stop
leadership candidacies on that node.

Every node answers from its own point of view, so two nodes may briefly
disagree while a stream reconnects or an election settles.`,
	SilenceUsage: true,
	Example: `  # Show cluster information
  latticectl info

  # List cluster nodes
  latticectl node ls

  # Watch the leader board
  latticectl leader ls --watch

  # Make the node at 10.0.0.2 contest a path
  latticectl --api=10.0.0.2:8008 leader run devices/of:1

  # Output in JSON format
  latticectl -o json stream ls`,
}

// SetupCommands initializes all commands and their relationships
func SetupCommands() {
	RootCmd.AddCommand(infoCmd)
	RootCmd.AddCommand(nodeCmd)
	RootCmd.AddCommand(streamCmd)
	RootCmd.AddCommand(leaderCmd)

	nodeCmd.AddCommand(nodeLsCmd, nodeInfoCmd)
	streamCmd.AddCommand(streamLsCmd)
	leaderCmd.AddCommand(leaderLsCmd, leaderInfoCmd, leaderRunCmd, leaderWithdrawCmd, leaderStepdownCmd)
}

// SetupGlobalFlags configures all global persistent flags
func SetupGlobalFlags(rootCmd *cobra.Command, apiAddrPtr *string, logLevelPtr *string,
	timeoutPtr *int, verbosePtr *bool, outputPtr *string, defaultAPIAddr string, defaultTimeout int) {
	rootCmd.PersistentFlags().StringVar(apiAddrPtr, "api", defaultAPIAddr,
		"API server address of any lattice node")
	rootCmd.PersistentFlags().StringVar(logLevelPtr, "log-level", "ERROR",
		"Log level: DEBUG, INFO, WARN, ERROR")
	rootCmd.PersistentFlags().IntVar(timeoutPtr, "timeout", defaultTimeout,
		"Request timeout in seconds")
	rootCmd.PersistentFlags().BoolVarP(verbosePtr, "verbose", "v", false,
		"Show verbose output")
	rootCmd.PersistentFlags().StringVarP(outputPtr, "output", "o", "table",
		"Output format: table, json")
}
