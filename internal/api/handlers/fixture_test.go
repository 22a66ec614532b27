package handlers

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/concave-dev/lattice/internal/cluster"
	"github.com/concave-dev/lattice/internal/leadership"
	"github.com/gin-gonic/gin"
)

// fixture is a started connection manager with no reachable peers, its
// membership store and a leadership manager on an in-memory lock table
type fixture struct {
	manager    *cluster.ConnectionManager
	membership *cluster.Membership
	leaders    *leadership.Manager
	locks      *leadership.MemoryLockService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	cfg := cluster.DefaultConfig()
	cfg.Listener = ln
	cfg.ReconnectInterval = time.Hour
	cfg.ReconnectInitialDelay = time.Hour

	m, err := cluster.NewConnectionManager(cfg)
	if err != nil {
		t.Fatalf("NewConnectionManager() error = %v", err)
	}
	membership := cluster.NewMembership()
	if err := m.Start(cluster.ControllerNode{ID: "node-a"}, membership); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		m.Shutdown(ctx)
	})

	locks := leadership.NewMemoryLockService()
	leaders, err := leadership.NewManager(&leadership.Config{
		TermDuration: time.Second,
		PoolSize:     4,
	}, "node-a", locks)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(leaders.Stop)

	return &fixture{manager: m, membership: membership, leaders: leaders, locks: locks}
}

// serve runs one request through a router with a single route
func serve(t *testing.T, method, route, target string, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.Handle(method, route, handler)

	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// envelope is the standard response wrapper
type envelope[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
	Count   int    `json:"count"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
	return env
}

// waitFor polls cond until it holds or the timeout expires
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
