// Package main provides the entry point for the lattice CLI (latticectl).
package main

import (
	"os"

	"github.com/concave-dev/lattice/cmd/latticectl/commands"
	"github.com/concave-dev/lattice/cmd/latticectl/config"
	"github.com/concave-dev/lattice/cmd/latticectl/handlers"
)

func init() {
	rootCmd := commands.RootCmd

	rootCmd.Version = config.Version
	rootCmd.PersistentPreRunE = config.ValidateGlobalFlags

	commands.SetupCommands()

	commands.SetupGlobalFlags(rootCmd, &config.Global.APIAddr, &config.Global.LogLevel,
		&config.Global.Timeout, &config.Global.Verbose, &config.Global.Output,
		config.DefaultAPIAddr, config.DefaultTimeout)
	commands.SetupNodeFlags(&config.Node.Watch, &config.Node.StateFilter)
	commands.SetupStreamFlags(&config.Stream.Watch, &config.Stream.Outbound)
	commands.SetupLeaderFlags(&config.Leader.Watch, &config.Leader.LeaderFilter)

	setupCommandHandlers()
}

// setupCommandHandlers assigns RunE functions to commands
func setupCommandHandlers() {
	nodeLsCmd, nodeInfoCmd := commands.GetNodeCommands()
	leaderLsCmd, leaderInfoCmd, leaderRunCmd, leaderWithdrawCmd, leaderStepdownCmd := commands.GetLeaderCommands()

	commands.GetInfoCommand().RunE = handlers.HandleClusterInfo
	nodeLsCmd.RunE = handlers.HandleNodeList
	nodeInfoCmd.RunE = handlers.HandleNodeInfo
	commands.GetStreamCommands().RunE = handlers.HandleStreamList
	leaderLsCmd.RunE = handlers.HandleLeaderList
	leaderInfoCmd.RunE = handlers.HandleLeaderInfo
	leaderRunCmd.RunE = handlers.HandleLeaderRun
	leaderWithdrawCmd.RunE = handlers.HandleLeaderWithdraw
	leaderStepdownCmd.RunE = handlers.HandleLeaderStepdown
}

func main() {
	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
