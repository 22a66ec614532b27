package commands

import (
	"fmt"

	"github.com/concave-dev/lattice/internal/logging"
	"github.com/spf13/cobra"
)

// Node command (parent command for node operations)
var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Inspect cluster nodes",
	Long:  `Commands for inspecting controller nodes known to the queried daemon.`,
}

// Node list command
var nodeLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all cluster nodes",
	Long: `List every node the queried daemon knows of, whether it has a stream to
it, and how many paths each node leads. The queried node is marked with '*'.`,
	Example: `  # List all nodes
  latticectl node ls

  # Only nodes without a stream
  latticectl node ls --state=inactive

  # Watch with last-seen times
  latticectl -v node ls --watch`,
	Args: cobra.NoArgs,
}

// Node info command
var nodeInfoCmd = &cobra.Command{
	Use:   "info <node-id>",
	Short: "Show detailed information for a specific node",
	Long: `Display a single node including the paths it leads. A unique prefix of
the node id is accepted.`,
	Example: `  # Show info by full id
  latticectl node info cubic-vertex-3fa2

  # Show info by unique prefix
  latticectl node info cubic`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			cmd.Help()
			fmt.Println()
			logging.Error("Invalid arguments: expected 1 node id, got %d", len(args))
			return fmt.Errorf("requires exactly 1 argument (node id)")
		}
		return nil
	},
}

// GetNodeCommands returns the node command structures for handler assignment
func GetNodeCommands() (*cobra.Command, *cobra.Command) {
	return nodeLsCmd, nodeInfoCmd
}

// SetupNodeFlags configures flags for node commands
func SetupNodeFlags(watchPtr *bool, stateFilterPtr *string) {
	nodeLsCmd.Flags().BoolVarP(watchPtr, "watch", "w", false,
		"Watch for changes and continuously update the display")
	nodeLsCmd.Flags().StringVar(stateFilterPtr, "state", "",
		"Filter nodes by state (active, inactive)")
}
