package commands

import (
	"github.com/spf13/cobra"
)

// Info command (cluster information)
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cluster information",
	Long: `Show the queried node's view of the cluster: node counts by state,
open streams, known leaders, and the paths this node contests or leads.`,
	Example: `  # Show cluster information
  latticectl info

  # Include worker loads and registered subjects
  latticectl --verbose info`,
	Args: cobra.NoArgs,
}

// GetInfoCommand returns the info command for handler assignment
func GetInfoCommand() *cobra.Command {
	return infoCmd
}
