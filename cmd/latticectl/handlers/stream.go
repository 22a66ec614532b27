package handlers

import (
	"github.com/concave-dev/lattice/cmd/latticectl/client"
	"github.com/concave-dev/lattice/cmd/latticectl/config"
	"github.com/concave-dev/lattice/cmd/latticectl/display"
	"github.com/concave-dev/lattice/cmd/latticectl/utils"
	"github.com/concave-dev/lattice/internal/logging"
	"github.com/spf13/cobra"
)

// HandleStreamList handles stream ls.
func HandleStreamList(cmd *cobra.Command, args []string) error {
	utils.SetupLogging(config.Global.LogLevel)

	fetchAndDisplay := func() error {
		logging.Info("Fetching cluster streams from API server: %s", config.Global.APIAddr)

		streams, err := client.CreateAPIClient().GetStreams(config.Stream.Outbound)
		if err != nil {
			return err
		}

		display.DisplayStreams(streams)
		if !config.Stream.Watch {
			logging.Success("Successfully retrieved %d streams", len(streams))
		}
		return nil
	}

	return utils.RunWithWatch(fetchAndDisplay, config.Stream.Watch)
}
