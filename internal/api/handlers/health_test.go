package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/concave-dev/lattice/internal/cluster"
)

// TestHandleHealth tests the health handler response
func TestHandleHealth(t *testing.T) {
	f := newFixture(t)
	version := "1.0.0"

	w := serve(t, "GET", "/health", "/health", HandleHealth(version, f.manager))

	// Check status code
	if w.Code != http.StatusOK {
		t.Errorf("HandleHealth() status = %d, want %d", w.Code, http.StatusOK)
	}

	// Parse response
	var response HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	// Check response fields
	if response.Status != "healthy" {
		t.Errorf("HandleHealth() status = %q, want \"healthy\"", response.Status)
	}
	if response.Version != version {
		t.Errorf("HandleHealth() version = %q, want %q", response.Version, version)
	}
	if response.Node != "node-a" {
		t.Errorf("HandleHealth() node = %q, want \"node-a\"", response.Node)
	}

	// Check that timestamp is recent (within last 5 seconds)
	if time.Since(response.Timestamp) > 5*time.Second {
		t.Error("HandleHealth() timestamp is not recent")
	}
	if response.Uptime == "" {
		t.Error("HandleHealth() uptime is empty")
	}
}

// TestHandleHealth_Degraded tests a node cut off from every known peer
func TestHandleHealth_Degraded(t *testing.T) {
	f := newFixture(t)
	f.manager.AddNode(cluster.ControllerNode{ID: "node-b", IP: "127.0.0.1", Port: 1})

	w := serve(t, "GET", "/health", "/health", HandleHealth("1.0.0", f.manager))

	var response HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response.Status != "degraded" {
		t.Errorf("HandleHealth() status = %q, want \"degraded\"", response.Status)
	}
	if response.Peers != 0 {
		t.Errorf("HandleHealth() peers = %d, want 0", response.Peers)
	}
}
