package commands

import (
	"github.com/spf13/cobra"
)

// Stream command group
var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Inspect cluster streams",
	Long:  "Commands for inspecting the TCP streams the queried daemon holds to its peers.",
}

// Stream list command
var streamLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List open streams",
	Long: `List open streams with their direction, remote address and owning IO
worker. Streams that have not received HELLO yet show as awaiting hello.`,
	Example: `  # List all streams
  latticectl stream ls

  # Only streams this node dialed
  latticectl stream ls --direction=out`,
	Args: cobra.NoArgs,
}

// GetStreamCommands returns the stream command structures for handler assignment
func GetStreamCommands() *cobra.Command {
	return streamLsCmd
}

// SetupStreamFlags configures flags for stream commands
func SetupStreamFlags(watchPtr *bool, outboundPtr *string) {
	streamLsCmd.Flags().BoolVarP(watchPtr, "watch", "w", false,
		"Watch for changes and continuously update the display")
	streamLsCmd.Flags().StringVar(outboundPtr, "direction", "",
		"Filter by direction: in (accepted) or out (dialed)")
}
