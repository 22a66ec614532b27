// Package utils contains utility functions for the lattice daemon.
// This includes service binding helpers used while the daemon starts.
package utils

import (
	"fmt"
	"net"

	"github.com/concave-dev/lattice/cmd/latticed/config"
	"github.com/concave-dev/lattice/internal/logging"
	"github.com/concave-dev/lattice/internal/netutil"
)

// PreBindServiceListener binds a TCP listener for a service before anything
// starts. An explicit address is bound exactly; a default one falls forward
// to the next free port, up to GetMaxPorts attempts.
//
// Returns the bound listener and actual port, or error if binding fails.
func PreBindServiceListener(serviceName string, portBinder *netutil.PortBinder, explicitlySet bool, addr string, port int) (net.Listener, int, error) {
	if explicitlySet {
		logging.Info("Pre-binding %s listener to explicit port %d", serviceName, port)

		listener, err := portBinder.BindTCP(addr, port)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to pre-bind %s listener to %s: %w", serviceName, net.JoinHostPort(addr, fmt.Sprint(port)), err)
		}
		return listener, port, nil
	}

	logging.Debug("Pre-binding %s listener starting from port %d", serviceName, port)

	listener, actualPort, err := portBinder.BindTCPWithFallbackAndLimit(addr, port, GetMaxPorts())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to pre-bind %s listener: %w", serviceName, err)
	}

	if actualPort != port {
		logging.Warn("Default %s port %d was busy, pre-bound to port %d", serviceName, port, actualPort)
	} else {
		logging.Info("Pre-bound %s listener to port %d", serviceName, actualPort)
	}
	return listener, actualPort, nil
}

// GetMaxPorts returns the configured maximum number of ports to try when a
// default port is busy.
func GetMaxPorts() int {
	if config.Global.MaxPorts <= 0 {
		return config.DefaultMaxPorts
	}
	return config.Global.MaxPorts
}
