// Package api provides the HTTP API server for lattice nodes.
// The server exposes the local node's cluster view and leadership controls
// via REST endpoints, so latticectl can inspect and steer a node without
// joining the cluster mesh.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/concave-dev/lattice/internal/api/handlers"
	"github.com/concave-dev/lattice/internal/cluster"
	"github.com/concave-dev/lattice/internal/leadership"
	"github.com/concave-dev/lattice/internal/logging"
	"github.com/gin-gonic/gin"
)

// Represents the lattice API server
type Server struct {
	connManager *cluster.ConnectionManager
	membership  *cluster.Membership
	leadership  *leadership.Manager
	version     string
	httpServer  *http.Server
	listener    net.Listener
	bindAddr    string
	bindPort    int
}

// NewServer creates a new lattice API server instance that binds its own
// socket on Start.
func NewServer(config *Config) *Server {
	// Set Gin to release mode for production
	gin.SetMode(gin.ReleaseMode)

	return &Server{
		connManager: config.Cluster,
		membership:  config.Membership,
		leadership:  config.Leadership,
		version:     config.Version,
		bindAddr:    config.BindAddr,
		bindPort:    config.BindPort,
	}
}

// NewServerWithListener creates a server that serves on a listener bound by
// the caller. The daemon pre-binds every port before starting components so
// a port conflict fails startup early.
func NewServerWithListener(config *Config, listener net.Listener) (*Server, error) {
	if listener == nil {
		return nil, fmt.Errorf("listener cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid API config: %w", err)
	}

	s := NewServer(config)
	s.listener = listener
	return s, nil
}

// Start starts the lattice API server
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.bindAddr, fmt.Sprintf("%d", s.bindPort))
	if s.listener != nil {
		addr = s.listener.Addr().String()
	}
	logging.Info("Starting HTTP API server on %s", addr)

	// Configure Gin logging only if not already configured by CLI tools
	if !logging.IsConfiguredByCLI() {
		gin.DefaultWriter = logging.NewLevelWriter("DEBUG", "gin")
		gin.DefaultErrorWriter = logging.NewLevelWriter("ERROR", "gin")
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		// Timeouts for production
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener := s.listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to bind to %s: %w", addr, err)
		}
		s.listener = listener
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("HTTP server failed: %v", err)
		}
	}()

	logging.Success("HTTP API server started successfully")
	return nil
}

// Handler builds the router with middleware and every route attached
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(s.loggingMiddleware())
	router.Use(s.corsMiddleware())
	router.Use(gin.Recovery())
	s.setupRoutes(router)
	return router
}

// Addr returns the address the server is listening on, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down HTTP API server...")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	if s.listener != nil {
		return s.listener.Close()
	}

	return nil
}

// handleHealth delegates to handlers.HandleHealth
func (s *Server) handleHealth(c *gin.Context) {
	handler := s.getHandlerHealth()
	handler(c)
}

// getHandlerHealth is a health endpoint handler factory
func (s *Server) getHandlerHealth() gin.HandlerFunc {
	return handlers.HandleHealth(s.version, s.connManager)
}

// getHandlerNodes is a nodes endpoint handler factory
func (s *Server) getHandlerNodes() gin.HandlerFunc {
	return handlers.HandleNodes(s.connManager, s.membershipView(), s.leadership)
}

// getHandlerNodeByID is a node by ID endpoint handler factory
func (s *Server) getHandlerNodeByID() gin.HandlerFunc {
	return handlers.HandleNodeByID(s.connManager, s.membershipView(), s.leadership)
}

// getHandlerStreams is a streams endpoint handler factory
func (s *Server) getHandlerStreams() gin.HandlerFunc {
	return handlers.HandleStreams(s.connManager)
}

// getHandlerClusterInfo is a cluster info endpoint handler factory
func (s *Server) getHandlerClusterInfo() gin.HandlerFunc {
	return handlers.HandleClusterInfo(s.connManager, s.leadership, s.version)
}

// getHandlerLeaderBoard is a leader board endpoint handler factory
func (s *Server) getHandlerLeaderBoard() gin.HandlerFunc {
	return handlers.HandleLeaderBoard(s.leadership)
}

// getHandlerLeaderByPath is a single leadership endpoint handler factory
func (s *Server) getHandlerLeaderByPath() gin.HandlerFunc {
	return handlers.HandleLeaderByPath(s.leadership)
}

// getHandlerRunForLeadership is a candidacy endpoint handler factory
func (s *Server) getHandlerRunForLeadership() gin.HandlerFunc {
	return handlers.HandleRunForLeadership(s.leadership)
}

// getHandlerWithdraw is a withdrawal endpoint handler factory
func (s *Server) getHandlerWithdraw() gin.HandlerFunc {
	return handlers.HandleWithdraw(s.leadership)
}

// getHandlerStepdown is a stepdown endpoint handler factory
func (s *Server) getHandlerStepdown() gin.HandlerFunc {
	return handlers.HandleStepdown(s.leadership)
}

// getHandlerMetrics is a Prometheus exposition handler factory
func (s *Server) getHandlerMetrics() gin.HandlerFunc {
	return handlers.HandleMetrics(s.connManager, s.leadership)
}

// membershipView avoids handing handlers a typed nil
func (s *Server) membershipView() handlers.MembershipView {
	if s.membership == nil {
		return nil
	}
	return s.membership
}
