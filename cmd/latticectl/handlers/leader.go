package handlers

import (
	"fmt"

	"github.com/concave-dev/lattice/cmd/latticectl/client"
	"github.com/concave-dev/lattice/cmd/latticectl/config"
	"github.com/concave-dev/lattice/cmd/latticectl/display"
	"github.com/concave-dev/lattice/cmd/latticectl/utils"
	"github.com/concave-dev/lattice/internal/logging"
	"github.com/spf13/cobra"
)

// HandleLeaderList handles leader ls.
func HandleLeaderList(cmd *cobra.Command, args []string) error {
	utils.SetupLogging(config.Global.LogLevel)

	fetchAndDisplay := func() error {
		logging.Info("Fetching leader board from API server: %s", config.Global.APIAddr)

		leaders, err := client.CreateAPIClient().GetLeaders(config.Leader.LeaderFilter)
		if err != nil {
			return err
		}

		display.DisplayLeaders(leaders)
		if !config.Leader.Watch {
			logging.Success("Successfully retrieved %d leadership paths", len(leaders))
		}
		return nil
	}

	return utils.RunWithWatch(fetchAndDisplay, config.Leader.Watch)
}

// HandleLeaderInfo handles leader info.
func HandleLeaderInfo(cmd *cobra.Command, args []string) error {
	utils.SetupLogging(config.Global.LogLevel)

	path := args[0]
	logging.Info("Fetching leader of '%s' from API server: %s", path, config.Global.APIAddr)

	lead, err := client.CreateAPIClient().GetLeader(path)
	if err != nil {
		if client.IsNotFound(err) {
			logging.Error("No known leader for '%s'", path)
			return fmt.Errorf("no leader for path")
		}
		return err
	}

	display.DisplayLeader(*lead)
	return nil
}

// HandleLeaderRun handles leader run. The daemon elects asynchronously, so
// success only means the candidacy was accepted.
func HandleLeaderRun(cmd *cobra.Command, args []string) error {
	utils.SetupLogging(config.Global.LogLevel)

	path := args[0]
	logging.Info("Running for leadership of '%s' via API server: %s", path, config.Global.APIAddr)

	candidacy, err := client.CreateAPIClient().RunForLeadership(path)
	if err != nil {
		return err
	}

	display.DisplayCandidacy(*candidacy)
	logging.Success("Candidacy for '%s' accepted; check 'latticectl leader info %s' for the outcome", path, path)
	return nil
}

// HandleLeaderWithdraw handles leader withdraw.
func HandleLeaderWithdraw(cmd *cobra.Command, args []string) error {
	utils.SetupLogging(config.Global.LogLevel)

	path := args[0]
	logging.Info("Withdrawing from '%s' via API server: %s", path, config.Global.APIAddr)

	candidacy, err := client.CreateAPIClient().Withdraw(path)
	if err != nil {
		if client.IsNotFound(err) {
			logging.Error("The node at %s is not contesting '%s'", config.Global.APIAddr, path)
			return fmt.Errorf("not contesting path")
		}
		return err
	}

	display.DisplayCandidacy(*candidacy)
	logging.Success("Withdrew from '%s'", path)
	return nil
}

// HandleLeaderStepdown handles leader stepdown.
func HandleLeaderStepdown(cmd *cobra.Command, args []string) error {
	utils.SetupLogging(config.Global.LogLevel)

	path := args[0]
	logging.Info("Stepping down from '%s' via API server: %s", path, config.Global.APIAddr)

	candidacy, err := client.CreateAPIClient().Stepdown(path)
	if err != nil {
		switch {
		case client.IsNotFound(err):
			logging.Error("The node at %s is not contesting '%s'", config.Global.APIAddr, path)
			return fmt.Errorf("not contesting path")
		case client.IsConflict(err):
			logging.Error("The node at %s does not lead '%s'", config.Global.APIAddr, path)
			return fmt.Errorf("not the leader")
		}
		return err
	}

	display.DisplayStepdown(*candidacy)
	logging.Success("Stepped down from '%s'", path)
	return nil
}
