// Package config provides configuration management for the latticectl CLI.
package config

import (
	"fmt"
	"strings"

	"github.com/concave-dev/lattice/internal/logging"
	"github.com/concave-dev/lattice/internal/validate"
	"github.com/spf13/cobra"
)

// ValidateGlobalFlags validates all global flags before running any command
func ValidateGlobalFlags(cmd *cobra.Command, args []string) error {
	if err := ValidateAPIAddress(); err != nil {
		return err
	}

	if err := ValidateOutputFormat(); err != nil {
		return err
	}

	if err := ValidateTimeout(); err != nil {
		return err
	}

	return ValidateFilters()
}

// ValidateAPIAddress validates the --api flag
func ValidateAPIAddress() error {
	netAddr, err := validate.ParseBindAddress(Global.APIAddr)
	if err != nil {
		logging.Error("Invalid API address '%s': %v", Global.APIAddr, err)
		return fmt.Errorf("invalid API address - expected format: host:port (e.g., 127.0.0.1:8008)")
	}

	// Reject unroutable 0.0.0.0 target for client connections
	if netAddr.Host == "0.0.0.0" {
		logging.Error("Unroutable API address '0.0.0.0:%d' - cannot connect to 0.0.0.0", netAddr.Port)
		return fmt.Errorf("unroutable API address - use 127.0.0.1 or a specific IP address")
	}

	// Client must connect to specific port (not 0)
	if err := validate.ValidateField(netAddr.Port, "required,min=1,max=65535"); err != nil {
		logging.Error("Invalid API port %d: %v", netAddr.Port, err)
		return fmt.Errorf("API port must be between 1-65535")
	}

	return nil
}

// ValidateOutputFormat validates the --output flag
func ValidateOutputFormat() error {
	validOutputs := map[string]bool{
		"table": true,
		"json":  true,
	}
	if !validOutputs[Global.Output] {
		logging.Error("Invalid output format '%s' - valid formats are: table, json", Global.Output)
		return fmt.Errorf("invalid output format - valid: table, json")
	}
	return nil
}

// ValidateTimeout validates the --timeout flag
func ValidateTimeout() error {
	if Global.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got: %d", Global.Timeout)
	}
	return nil
}

// ValidateFilters normalizes and checks command filter flags. States are
// matched case-insensitively and sent upper case.
func ValidateFilters() error {
	if Node.StateFilter != "" {
		Node.StateFilter = strings.ToUpper(Node.StateFilter)
		if Node.StateFilter != "ACTIVE" && Node.StateFilter != "INACTIVE" {
			return fmt.Errorf("invalid state filter '%s' - valid: ACTIVE, INACTIVE", Node.StateFilter)
		}
	}

	switch strings.ToLower(Stream.Outbound) {
	case "":
	case "true", "out", "outbound":
		Stream.Outbound = "true"
	case "false", "in", "inbound":
		Stream.Outbound = "false"
	default:
		return fmt.Errorf("invalid direction '%s' - valid: in, out", Stream.Outbound)
	}
	return nil
}
