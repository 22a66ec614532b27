package handlers

import (
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/concave-dev/lattice/internal/cluster"
)

// TestHandleStreams tests an accepted connection shows up as an unbound stream
func TestHandleStreams(t *testing.T) {
	f := newFixture(t)
	handler := HandleStreams(f.manager)

	env := decode[[]cluster.StreamInfo](t, serve(t, "GET", "/streams", "/streams", handler))
	if env.Count != 0 {
		t.Fatalf("HandleStreams() count = %d, want 0", env.Count)
	}

	conn, err := net.Dial("tcp", f.manager.ListenAddr())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	waitFor(t, 2*time.Second, "accepted stream", func() bool { return len(f.manager.Streams()) == 1 })

	w := serve(t, "GET", "/streams", "/streams", handler)
	if w.Code != http.StatusOK {
		t.Fatalf("HandleStreams() status = %d, want %d", w.Code, http.StatusOK)
	}
	env = decode[[]cluster.StreamInfo](t, w)
	if env.Count != 1 || env.Data[0].Bound || env.Data[0].Outbound {
		t.Errorf("HandleStreams() = %+v, want one unbound inbound stream", env.Data)
	}

	env = decode[[]cluster.StreamInfo](t, serve(t, "GET", "/streams", "/streams?outbound=true", handler))
	if env.Count != 0 {
		t.Errorf("HandleStreams(outbound=true) count = %d, want 0", env.Count)
	}
}

// TestHandleClusterInfo tests the local summary
func TestHandleClusterInfo(t *testing.T) {
	f := newFixture(t)
	f.manager.AddNode(cluster.ControllerNode{ID: "node-b", IP: "127.0.0.1", Port: 1})
	if err := f.leaders.RunForLeadership("devices/of:1"); err != nil {
		t.Fatalf("RunForLeadership() error = %v", err)
	}
	waitFor(t, 2*time.Second, "election", func() bool { return len(f.leaders.OwnedPaths()) == 1 })

	w := serve(t, "GET", "/info", "/info", HandleClusterInfo(f.manager, f.leaders, "1.0.0"))
	if w.Code != http.StatusOK {
		t.Fatalf("HandleClusterInfo() status = %d, want %d", w.Code, http.StatusOK)
	}

	info := decode[ClusterInfo](t, w).Data
	if info.Version != "1.0.0" || info.LocalNode.ID != "node-a" {
		t.Errorf("HandleClusterInfo() version/local = %q/%q", info.Version, info.LocalNode.ID)
	}
	if info.Status.TotalNodes != 2 {
		t.Errorf("TotalNodes = %d, want 2", info.Status.TotalNodes)
	}
	if info.Status.NodesByState[cluster.StateInactive] != 1 {
		t.Errorf("NodesByState[INACTIVE] = %d, want 1", info.Status.NodesByState[cluster.StateInactive])
	}
	if len(info.WorkerLoads) != cluster.DefaultWorkers {
		t.Errorf("WorkerLoads = %v, want %d entries", info.WorkerLoads, cluster.DefaultWorkers)
	}
	if len(info.OwnedPaths) != 1 || info.OwnedPaths[0] != "devices/of:1" {
		t.Errorf("OwnedPaths = %v, want [devices/of:1]", info.OwnedPaths)
	}
	if info.Status.KnownLeaders != 1 {
		t.Errorf("KnownLeaders = %d, want 1", info.Status.KnownLeaders)
	}
	if len(info.Subjects) == 0 {
		t.Error("Subjects is empty, want at least the reserved subjects")
	}
}
