// Package commands provides the CLI command structure for the lattice daemon.
//
// latticed has a single root command. Flags are parsed into config.Global,
// explicit flags are recorded, the configuration is validated and the daemon
// runs until SIGINT or SIGTERM.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/concave-dev/lattice/cmd/latticed/config"
	"github.com/concave-dev/lattice/cmd/latticed/daemon"
	"github.com/concave-dev/lattice/cmd/latticed/utils"
	"github.com/concave-dev/lattice/internal/logging"
	"github.com/concave-dev/lattice/internal/version"
	"github.com/spf13/cobra"
)

// Global variable to track log file handle for cleanup
var logFileHandle *os.File

// CleanupLogFile closes the log file handle if it exists
func CleanupLogFile() {
	if logFileHandle != nil {
		if err := logFileHandle.Close(); err != nil {
			// The log file is going away, so report on stderr
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
		logFileHandle = nil
	}
}

// Root command for the lattice daemon
var RootCmd = &cobra.Command{
	Use:   "latticed",
	Short: "Cluster membership, messaging and leadership election daemon",
	Long: `Lattice daemon (latticed) connects a static set of controller nodes into a
full TCP mesh, repairs broken links, and elects a leader per named path using
leased locks.

Leadership locks are held in memory for single-host clusters, or in redis
when --redis is set.`,
	Version:      version.LatticedVersion,
	SilenceUsage: true, // Don't show usage on errors
	Example: `  # Start a single node contesting one path
  latticed --name=node-a --lead=devices/of:1

  # Start a three node mesh on one host sharing a redis lock backend
  latticed --name=node-a --bind=127.0.0.1:4740 --api=127.0.0.1:8008 --redis=127.0.0.1:6379 \
    --join=node-b@127.0.0.1:4741 --join=node-c@127.0.0.1:4742
  latticed --name=node-b --bind=127.0.0.1:4741 --api=127.0.0.1:8009 --redis=127.0.0.1:6379 \
    --join=node-a@127.0.0.1:4740,node-c@127.0.0.1:4742

  # Short leases for fast failover in a lab
  latticed --name=node-a --term=2s --reconnect-interval=500ms`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Display logo first, before any validation or logging
		utils.DisplayLogo(version.LatticedVersion)
	},
	PreRunE: func(cmd *cobra.Command, args []string) error {
		CheckExplicitFlags(cmd)

		if config.Global.IsExplicitlySet(config.LogFileField) && config.Global.LogFile != "" {
			logDir := filepath.Dir(config.Global.LogFile)
			if err := os.MkdirAll(logDir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory %s: %w", logDir, err)
			}

			var err error
			logFileHandle, err = os.OpenFile(config.Global.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("failed to open log file %s: %w", config.Global.LogFile, err)
			}
			logging.SetOutput(logFileHandle)
		}

		// Apply the level before InitializeConfig logs anything, then again
		// in case DEBUG=true changed it
		logging.SetLevel(config.Global.LogLevel)
		config.InitializeConfig()
		logging.SetLevel(config.Global.LogLevel)

		if err := config.ValidateConfig(); err != nil {
			CleanupLogFile()
			return err
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		defer CleanupLogFile()
		return daemon.Run()
	},
}

// SetupCommands initializes all commands and their relationships
func SetupCommands() {
	SetupFlags(RootCmd)
}
