// Package daemon provides the lattice daemon orchestration and lifecycle
// management.
//
// STARTUP ORDER:
//  1. Pre-bind the cluster and API listeners so no port can be claimed
//     between discovery and use
//  2. Start the connection manager and seed it with the static peers
//  3. Open the leadership lock backend (redis or in-memory) and start the
//     leadership manager and its board
//  4. Run for every --lead path, then start the HTTP API
//
// SHUTDOWN ORDER:
// API first so no new requests arrive, then the leadership manager releases
// held locks while the board can still announce it, then the cluster
// transport after GOODBYE has been sent to every peer.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/concave-dev/lattice/cmd/latticed/config"
	"github.com/concave-dev/lattice/cmd/latticed/utils"
	"github.com/concave-dev/lattice/internal/api"
	"github.com/concave-dev/lattice/internal/cluster"
	configDefaults "github.com/concave-dev/lattice/internal/config"
	"github.com/concave-dev/lattice/internal/leadership"
	"github.com/concave-dev/lattice/internal/logging"
	"github.com/concave-dev/lattice/internal/names"
	"github.com/concave-dev/lattice/internal/netutil"
	internalutils "github.com/concave-dev/lattice/internal/utils"
	"github.com/concave-dev/lattice/internal/version"
	goredis "github.com/redis/go-redis/v9"
)

// buildClusterConfig converts daemon config to connection manager config
func buildClusterConfig() *cluster.Config {
	clusterConfig := cluster.DefaultConfig()

	clusterConfig.BindAddr = config.Global.BindAddr
	clusterConfig.BindPort = config.Global.BindPort
	clusterConfig.Workers = config.Global.Workers
	clusterConfig.ReconnectInterval = config.Global.ReconnectInterval
	clusterConfig.ReconnectInitialDelay = config.Global.ReconnectDelay
	clusterConfig.IdleTimeout = config.Global.IdleTimeout
	clusterConfig.LogLevel = config.Global.LogLevel

	return clusterConfig
}

// buildLeadershipConfig converts daemon config to leadership manager config
func buildLeadershipConfig() *leadership.Config {
	leadershipConfig := leadership.DefaultConfig()

	leadershipConfig.TermDuration = config.Global.TermDuration
	leadershipConfig.LockTTL = config.Global.TermDuration

	return leadershipConfig
}

// buildAPIConfig converts daemon config to API config
func buildAPIConfig(cm *cluster.ConnectionManager, membership *cluster.Membership, leaders *leadership.Manager) *api.Config {
	apiConfig := api.DefaultConfig()

	apiConfig.BindAddr = config.Global.APIAddr
	apiConfig.BindPort = config.Global.APIPort
	apiConfig.Cluster = cm
	apiConfig.Membership = membership
	apiConfig.Leadership = leaders

	return apiConfig
}

// generateNodeName returns an adjective-noun name with a short random
// suffix, e.g. "cubic-vertex-3fa2".
func generateNodeName() string {
	name := names.Generate()
	id, err := internalutils.GenerateID()
	if err != nil {
		logging.Warn("Failed to generate node name suffix: %v", err)
		return name
	}
	return name + "-" + id[:4]
}

// openLockService returns the redis lock service when a redis address is
// configured and the in-memory one otherwise. The returned client is nil for
// the in-memory service.
func openLockService(ctx context.Context) (leadership.LockService, goredis.UniversalClient, error) {
	if config.Global.RedisAddr == "" {
		logging.Info("Using in-memory leadership locks (single process only)")
		return leadership.NewMemoryLockService(), nil, nil
	}

	client, err := leadership.DialRedis(ctx, config.Global.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	logging.Info("Using redis leadership locks at %s", config.Global.RedisAddr)
	return leadership.NewRedisLockService(client, leadership.RedisLockOptions{}), client, nil
}

// Run starts every lattice service and blocks until SIGINT, SIGTERM or a
// fatal transport error, then shuts down in reverse order.
func Run() error {
	logging.SetLevel(config.Global.LogLevel)
	logging.RedirectStandardLog(logging.NewLevelWriter("WARN", "stdlog"))
	logging.Info("Starting lattice daemon v%s", version.LatticedVersion)

	if config.Global.NodeName == "" {
		config.Global.NodeName = generateNodeName()
		logging.Info("Generated node name: %s", config.Global.NodeName)
	}
	logging.Info("Node: %s", config.Global.NodeName)

	portBinder := netutil.NewPortBinder()

	clusterListener, actualBindPort, err := utils.PreBindServiceListener(
		"cluster", portBinder, config.Global.IsExplicitlySet(config.BindField),
		config.Global.BindAddr, config.Global.BindPort)
	if err != nil {
		logging.Error("Failed to bind cluster listener: %v", err)
		return err
	}
	config.Global.BindPort = actualBindPort

	apiListener, actualAPIPort, err := utils.PreBindServiceListener(
		"API", portBinder, config.Global.IsExplicitlySet(config.APIAddrField),
		config.Global.APIAddr, config.Global.APIPort)
	if err != nil {
		logging.Error("Failed to bind API listener: %v", err)
		clusterListener.Close()
		return err
	}
	config.Global.APIPort = actualAPIPort

	// Cluster transport
	clusterConfig := buildClusterConfig()
	clusterConfig.Listener = clusterListener
	cm, err := cluster.NewConnectionManager(clusterConfig)
	if err != nil {
		logging.Error("Failed to create connection manager: %v", err)
		clusterListener.Close()
		apiListener.Close()
		return fmt.Errorf("failed to create connection manager: %w", err)
	}

	membership := cluster.NewMembership()
	local := cluster.ControllerNode{
		ID: cluster.NodeID(config.Global.NodeName),
		IP: config.Global.AdvertiseIP,
	}
	if err := cm.Start(local, membership); err != nil {
		logging.Error("Failed to start connection manager: %v", err)
		clusterListener.Close()
		apiListener.Close()
		return fmt.Errorf("failed to start connection manager: %w", err)
	}
	local = cm.LocalNode()

	for _, peer := range config.Global.Peers {
		node := cluster.ControllerNode{
			ID:   cluster.NodeID(peer.NodeID),
			IP:   peer.Address.Host,
			Port: peer.Address.Port,
		}
		membership.Seed(node)
		cm.AddNode(node)
	}
	if len(config.Global.Peers) > 0 {
		logging.Info("Monitoring %d static peer(s)", len(config.Global.Peers))
	}

	// Leadership
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	locks, redisClient, err := openLockService(ctx)
	if err != nil {
		logging.Error("Failed to open leadership lock backend: %v", err)
		if netutil.IsConnectionRefusedError(err) {
			logging.Error("TIP: Check redis is running at %s, or drop --redis for in-memory locks", config.Global.RedisAddr)
		}
		apiListener.Close()
		shutdownCluster(cm)
		return err
	}

	leaders, err := leadership.NewManager(buildLeadershipConfig(), local.ID, locks)
	if err != nil {
		logging.Error("Failed to create leadership manager: %v", err)
		apiListener.Close()
		closeRedis(redisClient)
		shutdownCluster(cm)
		return fmt.Errorf("failed to create leadership manager: %w", err)
	}

	board := leadership.NewBoard(leaders, cm)
	if err := board.Start(); err != nil {
		logging.Error("Failed to start leadership board: %v", err)
		leaders.Stop()
		apiListener.Close()
		closeRedis(redisClient)
		shutdownCluster(cm)
		return fmt.Errorf("failed to start leadership board: %w", err)
	}

	membership.OnChange(board.OnMembershipChange)

	for _, path := range config.Global.LeadPaths {
		if err := leaders.RunForLeadership(path); err != nil {
			logging.Error("Failed to run for leadership of %s: %v", path, err)
		}
	}

	// HTTP API
	apiServer, err := api.NewServerWithListener(buildAPIConfig(cm, membership, leaders), apiListener)
	if err != nil {
		logging.Error("Failed to create API server: %v", err)
		apiListener.Close()
		shutdown(nil, board, leaders, cm, redisClient)
		return fmt.Errorf("failed to create API server: %w", err)
	}
	if err := apiServer.Start(); err != nil {
		logging.Error("Failed to start API server: %v", err)
		shutdown(nil, board, leaders, cm, redisClient)
		return fmt.Errorf("failed to start API server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	transportDone := make(chan error, 1)
	go func() { transportDone <- cm.Wait() }()

	logging.Success("Lattice daemon started successfully")
	logging.Info("Node services started:")
	logging.Info("  - Cluster transport: %s (%d workers)", local.Address(), config.Global.Workers)
	logging.Info("  - HTTP API: %s", apiServer.Addr())
	logging.Info("  - Leadership term: %v", config.Global.TermDuration)
	logging.Info("To add this node to a peer, use:")
	logging.Info("  %s --join=%s@%s", os.Args[0], local.ID, local.Address())

	var runErr error
	select {
	case sig := <-sigCh:
		logging.Info("Received signal: %v", sig)
	case err := <-transportDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error("Cluster transport stopped: %v", err)
			runErr = fmt.Errorf("cluster transport failed: %w", err)
		}
	}

	logging.Info("Initiating graceful shutdown...")
	shutdown(apiServer, board, leaders, cm, redisClient)
	logging.Success("Lattice daemon shutdown completed")
	return runErr
}

// shutdown stops services in reverse start order. apiServer may be nil.
func shutdown(apiServer *api.Server, board *leadership.Board, leaders *leadership.Manager, cm *cluster.ConnectionManager, redisClient goredis.UniversalClient) {
	if apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), configDefaults.DefaultShutdownTimeout)
		if err := apiServer.Shutdown(ctx); err != nil {
			logging.Error("Error shutting down API server: %v", err)
		}
		cancel()
	}

	// Held locks are released here; the board is still attached so the
	// BOOTED events reach peers before the transport goes away
	leaders.Stop()
	board.Stop()
	closeRedis(redisClient)

	shutdownCluster(cm)
}

// shutdownCluster says GOODBYE to every peer and stops the transport.
func shutdownCluster(cm *cluster.ConnectionManager) {
	cm.ClearAllNodesAndStreams()

	ctx, cancel := context.WithTimeout(context.Background(), configDefaults.DefaultShutdownTimeout)
	defer cancel()
	if err := cm.Shutdown(ctx); err != nil {
		logging.Error("Error shutting down cluster transport: %v", err)
	}
}

func closeRedis(client goredis.UniversalClient) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		logging.Warn("Error closing redis client: %v", err)
	}
}
