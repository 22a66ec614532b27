package commands

import (
	"github.com/spf13/cobra"
)

// Leader command group
var leaderCmd = &cobra.Command{
	Use:   "leader",
	Short: "Inspect and contest leadership paths",
	Long: `Commands for the leader board and for leadership candidacies on the
queried node. Paths may contain slashes, e.g. devices/of:1.`,
}

var leaderLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the leader board",
	Long: `List every path with a known leader, plus paths that only have
candidates so far. The queried node is marked with '*'; --verbose adds the
candidates of each path, oldest first.`,
	Example: `  # Show the leader board
  latticectl leader ls

  # Only paths led by one node
  latticectl leader ls --leader=node-a`,
	Args: cobra.NoArgs,
}

var leaderInfoCmd = &cobra.Command{
	Use:   "info <path>",
	Short: "Show the leader and candidates of a path",
	Args:  cobra.ExactArgs(1),
}

var leaderRunCmd = &cobra.Command{
	Use:   "run <path>",
	Short: "Make the queried node run for leadership of a path",
	Long: `Start contesting a path on the queried node. The election runs in the
background; use 'leader info' to see who won.`,
	Example: `  latticectl leader run devices/of:1
  latticectl --api=10.0.0.3:8008 leader run devices/of:1`,
	Args: cobra.ExactArgs(1),
}

var leaderWithdrawCmd = &cobra.Command{
	Use:   "withdraw <path>",
	Short: "Make the queried node stop contesting a path",
	Long: `Stop contesting a path on the queried node. If the node leads the path
its lock is released and another candidate can take over.`,
	Args: cobra.ExactArgs(1),
}

var leaderStepdownCmd = &cobra.Command{
	Use:   "stepdown <path>",
	Short: "Make the queried node give up a path it leads",
	Long: `Release the lock of a path the queried node leads. The node stays a
candidate and contests the path again after half a term, so a waiting
candidate usually takes over.`,
	Example: `  latticectl leader stepdown devices/of:1`,
	Args:    cobra.ExactArgs(1),
}

// GetLeaderCommands returns the leader command structures for handler assignment
func GetLeaderCommands() (ls, info, run, withdraw, stepdown *cobra.Command) {
	return leaderLsCmd, leaderInfoCmd, leaderRunCmd, leaderWithdrawCmd, leaderStepdownCmd
}

// SetupLeaderFlags configures flags for leader commands
func SetupLeaderFlags(watchPtr *bool, leaderFilterPtr *string) {
	leaderLsCmd.Flags().BoolVarP(watchPtr, "watch", "w", false,
		"Watch for changes and continuously update the display")
	leaderLsCmd.Flags().StringVar(leaderFilterPtr, "leader", "",
		"Only show paths led by this node")
}
