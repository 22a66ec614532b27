// Package commands contains Cobra CLI command definitions for latticed.
package commands

import (
	"github.com/concave-dev/lattice/cmd/latticed/config"
	"github.com/concave-dev/lattice/internal/cluster"
	"github.com/concave-dev/lattice/internal/leadership"
	"github.com/spf13/cobra"
)

// SetupFlags configures all command line flags for the daemon
func SetupFlags(cmd *cobra.Command) {
	// Cluster transport flags
	cmd.Flags().StringVar(&config.Global.BindAddr, "bind", config.DefaultBind,
		"Address and port for the cluster listener (e.g., 0.0.0.0:4740)\n"+
			"When not set, the next free port is used if the default is busy")
	cmd.Flags().StringVar(&config.Global.AdvertiseIP, "advertise-ip", "",
		"IP peers should dial back on (defaults to the bind IP, or loopback for 0.0.0.0)")
	cmd.Flags().StringSliceVar(&config.Global.JoinAddrs, "join", nil,
		"Static seed peers as id@host:port, repeatable or comma-separated\n"+
			"(e.g., node-b@10.0.0.2:4740,node-c@10.0.0.3:4740)")
	cmd.Flags().IntVar(&config.Global.Workers, "workers", cluster.DefaultWorkers,
		"Number of IO workers that own cluster streams")
	cmd.Flags().DurationVar(&config.Global.ReconnectInterval, "reconnect-interval", cluster.DefaultReconnectInterval,
		"How often the custodian reconnects to peers without a stream")
	cmd.Flags().DurationVar(&config.Global.ReconnectDelay, "reconnect-delay", cluster.DefaultReconnectInitialDelay,
		"Delay before the first custodian pass")
	cmd.Flags().DurationVar(&config.Global.IdleTimeout, "idle-timeout", 0,
		"Close streams with no traffic for this long (0 disables)")

	// Leadership flags
	cmd.Flags().DurationVar(&config.Global.TermDuration, "term", leadership.DefaultTermDuration,
		"Leadership lease length; leaders renew every half term")
	cmd.Flags().StringVar(&config.Global.RedisAddr, "redis", "",
		"Redis address for leadership locks (e.g., 127.0.0.1:6379)\n"+
			"When not set, locks are held in memory and only contested within this process")
	cmd.Flags().StringSliceVar(&config.Global.LeadPaths, "lead", nil,
		"Leadership paths to run for at startup, repeatable or comma-separated")

	// API flags
	cmd.Flags().StringVar(&config.Global.APIAddr, "api", config.DefaultAPI,
		"Address and port for HTTP API server (e.g., "+config.DefaultAPI+")")

	// Operational flags
	cmd.Flags().StringVar(&config.Global.NodeName, "name", "",
		"Node id (defaults to a generated name like 'cubic-vertex-3fa2')")
	cmd.Flags().StringVar(&config.Global.LogLevel, "log-level", config.DefaultLogLevel,
		"Log level: DEBUG, INFO, WARN, ERROR")
	cmd.Flags().StringVar(&config.Global.LogFile, "log-file", "",
		"Write logs to this file instead of the terminal")
}

// CheckExplicitFlags checks if flags were explicitly set by the user
func CheckExplicitFlags(cmd *cobra.Command) {
	config.Global.SetExplicitlySet(config.BindField, cmd.Flags().Changed("bind"))
	config.Global.SetExplicitlySet(config.APIAddrField, cmd.Flags().Changed("api"))
	config.Global.SetExplicitlySet(config.LogFileField, cmd.Flags().Changed("log-file"))
}
