// Package config handles configuration validation for the lattice daemon.
//
// Validation turns raw flag values into normalized settings the daemon can
// hand straight to components: addresses are split into host and port, the
// node name is lowercased and checked, seed peers are parsed, and timing
// flags are checked against what the transport and leadership layers accept.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/concave-dev/lattice/internal/logging"
	"github.com/concave-dev/lattice/internal/validate"
)

// minTerm is the shortest term the leadership manager accepts
const minTerm = 20 * time.Millisecond

// InitializeConfig applies environment overrides before validation runs.
func InitializeConfig() {
	if os.Getenv("DEBUG") == "true" {
		Global.LogLevel = "DEBUG"
		logging.Info("DEBUG environment variable detected, setting log level to DEBUG")
	}

	if Global.MaxPorts == 0 {
		Global.MaxPorts = DefaultMaxPorts
	}
	if maxPortsEnv := os.Getenv("MAX_PORTS"); maxPortsEnv != "" {
		if maxPorts, err := strconv.Atoi(maxPortsEnv); err == nil {
			Global.MaxPorts = maxPorts
			logging.Info("MAX_PORTS environment variable detected, setting max ports to %d", maxPorts)
		} else {
			logging.Warn("Invalid MAX_PORTS environment variable '%s', using default: %d", maxPortsEnv, Global.MaxPorts)
		}
	}

	if Global.RedisAddr == "" {
		if redisEnv := os.Getenv("LATTICE_REDIS"); redisEnv != "" {
			Global.RedisAddr = redisEnv
			logging.Info("LATTICE_REDIS environment variable detected, using redis lock backend at %s", redisEnv)
		}
	}
}

// ValidateConfig validates and normalizes every daemon setting. It returns
// the first problem found with enough context to fix the flag.
func ValidateConfig() error {
	if Global.MaxPorts < 1 || Global.MaxPorts > 10000 {
		return fmt.Errorf("max-ports must be between 1 and 10000, got: %d", Global.MaxPorts)
	}

	bind, err := parseListenAddress("bind", Global.BindAddr)
	if err != nil {
		return err
	}
	Global.BindAddr, Global.BindPort = bind.Host, bind.Port

	api, err := parseListenAddress("API", Global.APIAddr)
	if err != nil {
		return err
	}
	Global.APIAddr, Global.APIPort = api.Host, api.Port

	if Global.AdvertiseIP != "" {
		ip := net.ParseIP(Global.AdvertiseIP)
		if ip == nil || ip.IsUnspecified() {
			return fmt.Errorf("invalid advertise IP '%s': must be a routable IP address", Global.AdvertiseIP)
		}
	}

	// Node names are validated if provided; generation happens in the daemon
	if Global.NodeName != "" {
		originalName := Global.NodeName
		Global.NodeName = strings.ToLower(Global.NodeName)
		if originalName != Global.NodeName {
			logging.Warn("Node name '%s' converted to lowercase: '%s'", originalName, Global.NodeName)
		}
		if err := validate.NodeNameFormat(Global.NodeName); err != nil {
			return fmt.Errorf("invalid node name: %w", err)
		}
	}

	if err := logging.ValidateLogLevel(Global.LogLevel); err != nil {
		return err
	}

	peers, err := validate.ParsePeerList(Global.JoinAddrs)
	if err != nil {
		return fmt.Errorf("invalid join peers: %w", err)
	}
	for _, p := range peers {
		if Global.NodeName != "" && p.NodeID == Global.NodeName {
			return fmt.Errorf("invalid join peers: %s is this node's own name", p)
		}
	}
	Global.Peers = peers

	if err := validate.ValidatePositiveCount(Global.Workers, "workers"); err != nil {
		return err
	}
	if err := validate.ValidatePositiveTimeout(Global.ReconnectInterval, "reconnect interval"); err != nil {
		return err
	}
	if err := validate.ValidateNonNegativeDuration(Global.ReconnectDelay, "reconnect delay"); err != nil {
		return err
	}
	if err := validate.ValidateNonNegativeDuration(Global.IdleTimeout, "idle timeout"); err != nil {
		return err
	}
	if Global.IdleTimeout > 0 && Global.IdleTimeout < Global.ReconnectInterval {
		logging.Warn("Idle timeout %v is shorter than the reconnect interval %v; quiet peers will churn", Global.IdleTimeout, Global.ReconnectInterval)
	}

	if Global.TermDuration < minTerm {
		return fmt.Errorf("term must be at least %v, got: %v", minTerm, Global.TermDuration)
	}

	if Global.RedisAddr != "" {
		host, port, err := net.SplitHostPort(Global.RedisAddr)
		if err != nil || host == "" {
			return fmt.Errorf("invalid redis address '%s': expected host:port", Global.RedisAddr)
		}
		if p, err := strconv.Atoi(port); err != nil || validate.ValidatePortRange(p) != nil {
			return fmt.Errorf("invalid redis address '%s': port must be between 1-65535", Global.RedisAddr)
		}
	}

	paths := Global.LeadPaths[:0]
	for _, path := range Global.LeadPaths {
		path = strings.TrimSpace(path)
		if path == "" {
			return fmt.Errorf("leadership paths cannot be empty")
		}
		paths = append(paths, path)
	}
	Global.LeadPaths = paths

	return nil
}

// parseListenAddress parses a host:port listen flag. Port 0 is rejected:
// peers and latticectl need a predictable address.
func parseListenAddress(name, addr string) (*validate.NetworkAddress, error) {
	netAddr, err := validate.ParseBindAddress(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid %s address: %w", name, err)
	}
	if err := validate.ValidateField(netAddr.Port, "required,min=1,max=65535"); err != nil {
		return nil, fmt.Errorf("%s address requires specific port (not 0): %w", name, err)
	}
	return netAddr, nil
}
