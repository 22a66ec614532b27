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

// HandleNodeList handles node ls.
func HandleNodeList(cmd *cobra.Command, args []string) error {
	utils.SetupLogging(config.Global.LogLevel)

	fetchAndDisplay := func() error {
		logging.Info("Fetching cluster nodes from API server: %s", config.Global.APIAddr)

		nodes, err := client.CreateAPIClient().GetNodes(config.Node.StateFilter)
		if err != nil {
			return err
		}

		display.DisplayNodes(nodes)
		if !config.Node.Watch {
			logging.Success("Successfully retrieved %d cluster nodes", len(nodes))
		}
		return nil
	}

	return utils.RunWithWatch(fetchAndDisplay, config.Node.Watch)
}

// HandleNodeInfo handles node info. The argument may be a unique prefix of
// a node id.
func HandleNodeInfo(cmd *cobra.Command, args []string) error {
	utils.SetupLogging(config.Global.LogLevel)

	// args[0] is safe - argument validation handled by Cobra command definition
	identifier := args[0]
	logging.Info("Fetching information for node '%s' from API server: %s", identifier, config.Global.APIAddr)

	apiClient := client.CreateAPIClient()
	nodes, err := apiClient.GetNodes("")
	if err != nil {
		return err
	}

	id, err := utils.ResolveNodeIdentifier(nodes, identifier)
	if err != nil {
		return err
	}

	node, err := apiClient.GetNode(id)
	if err != nil {
		if client.IsNotFound(err) {
			logging.Error("Node '%s' not found in cluster", identifier)
			return fmt.Errorf("node not found")
		}
		return err
	}

	display.DisplayNodeInfo(*node)
	logging.Success("Successfully retrieved information for node '%s'", node.ID)
	return nil
}

// HandleClusterInfo handles info.
func HandleClusterInfo(cmd *cobra.Command, args []string) error {
	utils.SetupLogging(config.Global.LogLevel)

	logging.Info("Fetching cluster information from API server: %s", config.Global.APIAddr)

	apiClient := client.CreateAPIClient()
	info, err := apiClient.GetClusterInfo()
	if err != nil {
		return err
	}

	display.DisplayClusterInfo(*info)

	if config.Global.Verbose {
		if health, err := apiClient.GetHealth(); err != nil {
			logging.Warn("Failed to fetch health: %v", err)
		} else if health.Status != "healthy" {
			logging.Warn("Node %s reports %s: no stream to any known peer", health.Node, health.Status)
		}
	}

	logging.Success("Successfully retrieved cluster information (%d total nodes)", info.Status.TotalNodes)
	return nil
}
