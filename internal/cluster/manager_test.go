package cluster

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/concave-dev/lattice/internal/wire"
)

// testNode is one running manager with its membership view
type testNode struct {
	id         NodeID
	manager    *ConnectionManager
	membership *Membership
}

// testConfig returns a fast configuration bound to a loopback port
func testConfig(t *testing.T, addr string) *Config {
	t.Helper()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("failed to listen on %s: %v", addr, err)
	}
	cfg := DefaultConfig()
	cfg.Listener = ln
	cfg.ReconnectInterval = 50 * time.Millisecond
	cfg.ReconnectInitialDelay = 0
	cfg.DialTimeout = 500 * time.Millisecond
	cfg.DialRate = 0
	cfg.GoodbyeTimeout = 200 * time.Millisecond
	return cfg
}

func startNode(t *testing.T, id NodeID) *testNode {
	t.Helper()
	return startNodeOn(t, id, "127.0.0.1:0")
}

func startNodeOn(t *testing.T, id NodeID, addr string) *testNode {
	t.Helper()
	m, err := NewConnectionManager(testConfig(t, addr))
	if err != nil {
		t.Fatalf("NewConnectionManager() error = %v", err)
	}
	membership := NewMembership()
	if err := m.Start(ControllerNode{ID: id}, membership); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	n := &testNode{id: id, manager: m, membership: membership}
	t.Cleanup(func() { n.stop(t) })
	return n
}

func (n *testNode) stop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.manager.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown(%s) error = %v", n.id, err)
	}
}

// waitFor polls cond until it holds or the timeout expires
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out after %v waiting for %s", timeout, what)
}

// connectAll makes every node monitor every other node
func connectAll(nodes ...*testNode) {
	for _, a := range nodes {
		for _, b := range nodes {
			if a != b {
				a.manager.AddNode(b.manager.LocalNode())
			}
		}
	}
}

func boundStreams(m *ConnectionManager) int {
	n := 0
	for _, s := range m.Streams() {
		if s.Bound {
			n++
		}
	}
	return n
}

// TestNewConnectionManager_InvalidConfig tests config validation on creation
func TestNewConnectionManager_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 0

	m, err := NewConnectionManager(cfg)
	if err == nil {
		t.Error("NewConnectionManager() with zero workers should return error")
	}
	if m != nil {
		t.Error("NewConnectionManager() with invalid config should return nil manager")
	}
}

// TestConnectionManager_StartTwice tests that a manager starts only once
func TestConnectionManager_StartTwice(t *testing.T) {
	n := startNode(t, "node-a")
	if err := n.manager.Start(ControllerNode{ID: "node-a"}, nil); err == nil {
		t.Error("second Start() should return error")
	}

	local := n.manager.LocalNode()
	if local.IP != "127.0.0.1" || local.Port == 0 {
		t.Errorf("LocalNode() = %s, want 127.0.0.1 with the bound port", local.Address())
	}
	if local.State != StateActive {
		t.Errorf("LocalNode().State = %s, want %s", local.State, StateActive)
	}
}

// TestConnectionManager_LeastLoadedWorker tests worker selection
func TestConnectionManager_LeastLoadedWorker(t *testing.T) {
	m, err := NewConnectionManager(DefaultConfig())
	if err != nil {
		t.Fatalf("NewConnectionManager() error = %v", err)
	}

	if got := m.leastLoadedWorker().Index(); got != 0 {
		t.Errorf("all idle: leastLoadedWorker() = %d, want 0", got)
	}

	m.workers[0].pending.Add(2)
	m.workers[1].pending.Add(1)
	if got := m.leastLoadedWorker().Index(); got != 2 {
		t.Errorf("worker 2 idle: leastLoadedWorker() = %d, want 2", got)
	}

	m.workers[2].pending.Add(3)
	if got := m.leastLoadedWorker().Index(); got != 1 {
		t.Errorf("loads [2 1 3]: leastLoadedWorker() = %d, want 1", got)
	}

	loads := m.WorkerLoads()
	want := []int{2, 1, 3}
	for i := range want {
		if loads[i] != want[i] {
			t.Errorf("WorkerLoads()[%d] = %d, want %d", i, loads[i], want[i])
		}
	}
}

// TestConnectionManager_AssignmentSpread tests successive assignments through
// the least loaded policy: fewer than N land on distinct workers and more
// than N never push a worker above ceil(M/N)
func TestConnectionManager_AssignmentSpread(t *testing.T) {
	const workers = 4

	for _, assignments := range []int{1, 3, 4, 7, 10, 25} {
		cfg := DefaultConfig()
		cfg.Workers = workers
		m, err := NewConnectionManager(cfg)
		if err != nil {
			t.Fatalf("NewConnectionManager() error = %v", err)
		}

		for i := 0; i < assignments; i++ {
			m.leastLoadedWorker().pending.Add(1)
		}

		limit := (assignments + workers - 1) / workers
		for i, load := range m.WorkerLoads() {
			if load > limit {
				t.Errorf("M=%d: worker %d load = %d, want at most %d", assignments, i, load, limit)
			}
			if assignments < workers && load > 1 {
				t.Errorf("M=%d: worker %d load = %d, want distinct workers", assignments, i, load)
			}
		}
	}
}

// TestConnectionManager_SendBeforeStart tests sends fail until Start
func TestConnectionManager_SendBeforeStart(t *testing.T) {
	m, err := NewConnectionManager(DefaultConfig())
	if err != nil {
		t.Fatalf("NewConnectionManager() error = %v", err)
	}
	msg := wire.NewMessage(wire.NewSubject("test"), nil)

	if m.Send(msg) {
		t.Error("Send() before Start = true, want false")
	}
	if m.SendTo(msg, "node-x") {
		t.Error("SendTo() before Start = true, want false")
	}
	if err := m.checkRunning(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("checkRunning() = %v, want %v", err, ErrNotStarted)
	}
}

// TestConnectionManager_SendWithoutPeers tests send results with no streams
func TestConnectionManager_SendWithoutPeers(t *testing.T) {
	n := startNode(t, "node-a")
	msg := wire.NewMessage(wire.NewSubject("test"), nil)

	if !n.manager.Send(msg) {
		t.Error("Send() with no monitored nodes = false, want true")
	}
	if n.manager.SendTo(msg, "node-x") {
		t.Error("SendTo() unknown node = true, want false")
	}
	if n.manager.SendTo(msg, "node-a") {
		t.Error("SendTo() self = true, want false")
	}

	n.manager.AddNode(ControllerNode{ID: "node-x", IP: "127.0.0.1", Port: 1})
	if n.manager.Send(msg) {
		t.Error("Send() with an unreachable node = true, want false")
	}
}

// TestConnectionManager_Mesh tests a three node cluster converges on one
// stream per pair and delivers messages with the sender's identity
func TestConnectionManager_Mesh(t *testing.T) {
	a := startNode(t, "node-a")
	b := startNode(t, "node-b")
	c := startNode(t, "node-c")
	nodes := []*testNode{a, b, c}
	connectAll(nodes...)

	waitFor(t, 5*time.Second, "full mesh", func() bool {
		for _, n := range nodes {
			if boundStreams(n.manager) != 2 || len(n.manager.Streams()) != 2 {
				return false
			}
		}
		return true
	})

	for _, n := range nodes {
		if got := n.membership.ActiveCount(); got != 2 {
			t.Errorf("%s ActiveCount() = %d, want 2", n.id, got)
		}
		for _, node := range n.manager.Nodes() {
			if node.State != StateActive {
				t.Errorf("%s sees %s as %s, want %s", n.id, node.ID, node.State, StateActive)
			}
		}
	}

	subject := wire.NewSubject("test-broadcast")
	var mu sync.Mutex
	received := make(map[NodeID][]NodeID)
	for _, n := range nodes {
		_, err := n.manager.Dispatcher().Subscribe(subject, func(msg wire.Message, from NodeID) {
			mu.Lock()
			received[n.id] = append(received[n.id], from)
			mu.Unlock()
		})
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
	}

	if !a.manager.Send(wire.NewMessage(subject, []byte("hi"))) {
		t.Fatal("Send() = false on a connected mesh, want true")
	}

	waitFor(t, 2*time.Second, "broadcast delivery", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received[b.id]) == 1 && len(received[c.id]) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if received[b.id][0] != a.id || received[c.id][0] != a.id {
		t.Errorf("received from %v and %v, want %s", received[b.id], received[c.id], a.id)
	}
	if len(received[a.id]) != 0 {
		t.Errorf("sender received its own broadcast %d times", len(received[a.id]))
	}
}

// TestConnectionManager_Reconnect tests the custodian restores a lost stream
func TestConnectionManager_Reconnect(t *testing.T) {
	a := startNode(t, "node-a")
	b := startNode(t, "node-b")
	a.manager.AddNode(b.manager.LocalNode())

	waitFor(t, 5*time.Second, "initial connection", func() bool {
		return a.manager.HasStream(b.id) && b.manager.HasStream(a.id)
	})

	addr := b.manager.ListenAddr()
	b.stop(t)

	waitFor(t, 5*time.Second, "loss detection", func() bool {
		member, ok := a.membership.Get(b.id)
		return ok && member.State == StateInactive && !a.manager.HasStream(b.id)
	})
	if node, ok := a.manager.Node(b.id); !ok || node.State != StateInactive {
		t.Errorf("Node(%s) = (%v, %v), want monitored and INACTIVE", b.id, node, ok)
	}

	restarted := startNodeOn(t, b.id, addr)

	waitFor(t, 5*time.Second, "reconnection", func() bool {
		return a.manager.HasStream(b.id) && restarted.manager.HasStream(a.id)
	})
	member, _ := a.membership.Get(b.id)
	if member.State != StateActive {
		t.Errorf("after reconnect State = %s, want %s", member.State, StateActive)
	}
}

// TestConnectionManager_RemoveNodeSendsGoodbye tests removal on both ends
func TestConnectionManager_RemoveNodeSendsGoodbye(t *testing.T) {
	a := startNode(t, "node-a")
	b := startNode(t, "node-b")
	a.manager.AddNode(b.manager.LocalNode())

	waitFor(t, 5*time.Second, "connection", func() bool {
		return a.manager.HasStream(b.id) && b.manager.HasStream(a.id)
	})

	a.manager.RemoveNode(b.id)

	waitFor(t, 2*time.Second, "goodbye processing", func() bool {
		member, ok := b.membership.Get(a.id)
		return ok && member.Departed
	})
	if _, ok := b.manager.Node(a.id); ok {
		t.Errorf("%s still monitors %s after GOODBYE", b.id, a.id)
	}
	if _, ok := a.manager.Node(b.id); ok {
		t.Errorf("%s still monitors %s after RemoveNode", a.id, b.id)
	}

	// Neither side should dial the other again
	time.Sleep(200 * time.Millisecond)
	if a.manager.HasStream(b.id) || b.manager.HasStream(a.id) {
		t.Error("stream reopened after GOODBYE")
	}
}

// TestConnectionManager_ClearAllNodesAndStreams tests leaving the cluster
func TestConnectionManager_ClearAllNodesAndStreams(t *testing.T) {
	a := startNode(t, "node-a")
	b := startNode(t, "node-b")
	c := startNode(t, "node-c")
	a.manager.AddNode(b.manager.LocalNode())
	a.manager.AddNode(c.manager.LocalNode())

	waitFor(t, 5*time.Second, "connections", func() bool {
		return a.manager.HasStream(b.id) && a.manager.HasStream(c.id)
	})

	a.manager.ClearAllNodesAndStreams()

	if nodes := a.manager.Nodes(); len(nodes) != 0 {
		t.Errorf("Nodes() after clear = %v, want empty", nodes)
	}
	if a.manager.LocalNode().ID != a.id {
		t.Error("ClearAllNodesAndStreams() should keep the local node")
	}

	for _, peer := range []*testNode{b, c} {
		waitFor(t, 2*time.Second, string(peer.id)+" goodbye", func() bool {
			member, ok := peer.membership.Get(a.id)
			return ok && member.Departed
		})
	}
}

// fakePeer is a listener that stands in for a node the manager dials
func fakePeer(t *testing.T) (net.Listener, ControllerNode) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	addr := ln.Addr().(*net.TCPAddr)
	return ln, ControllerNode{ID: "node-b", IP: "127.0.0.1", Port: addr.Port}
}

func acceptDial(t *testing.T, ln net.Listener) net.Conn {
	t.Helper()
	ln.(*net.TCPListener).SetDeadline(time.Now().Add(2 * time.Second))
	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("manager never dialed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// TestConnectionManager_RemoveNodeDuringHandshake tests a HELLO arriving
// after removal does not bring the node back
func TestConnectionManager_RemoveNodeDuringHandshake(t *testing.T) {
	n := startNode(t, "node-a")
	ln, peer := fakePeer(t)

	n.manager.AddNode(peer)
	conn := acceptDial(t, ln)

	n.manager.RemoveNode(peer.ID)
	if _, ok := n.manager.Node(peer.ID); ok {
		t.Fatal("node still monitored after RemoveNode")
	}

	hello := wire.Encode(wire.EncodeHello(wire.Identity{ID: string(peer.ID), IP: peer.IP, Port: peer.Port}))
	conn.Write(hello)
	expectClosed(t, conn)

	time.Sleep(100 * time.Millisecond)
	if _, ok := n.manager.Node(peer.ID); ok {
		t.Error("late HELLO put the removed node back in the monitored set")
	}
	if n.manager.HasStream(peer.ID) {
		t.Error("late HELLO bound a stream to the removed node")
	}
	waitFor(t, 2*time.Second, "stream teardown", func() bool {
		total := 0
		for _, load := range n.manager.WorkerLoads() {
			total += load
		}
		return total == 0
	})
}

// TestConnectionManager_ClearAllDuringHandshake tests leaving the cluster
// also closes streams still waiting for a HELLO
func TestConnectionManager_ClearAllDuringHandshake(t *testing.T) {
	n := startNode(t, "node-a")
	ln, peer := fakePeer(t)

	n.manager.AddNode(peer)
	conn := acceptDial(t, ln)

	n.manager.ClearAllNodesAndStreams()
	expectClosed(t, conn)

	if nodes := n.manager.Nodes(); len(nodes) != 0 {
		t.Errorf("Nodes() after clear = %v, want empty", nodes)
	}
}

// rawPeer dials m and speaks the wire protocol by hand
func rawPeer(t *testing.T, m *ConnectionManager) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", m.ListenAddr())
	if err != nil {
		t.Fatalf("failed to dial %s: %v", m.ListenAddr(), err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// expectClosed reads from conn until the manager hangs up
func expectClosed(t *testing.T, conn net.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1024)
	for {
		_, err := conn.Read(buf)
		if err == nil {
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			t.Fatal("connection was not closed by the manager")
		}
		if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			t.Logf("connection ended with %v", err)
		}
		return
	}
}

// rogueHello is a HELLO for a node that cannot be dialed back
func rogueHello(id string) []byte {
	return wire.Encode(wire.EncodeHello(wire.Identity{ID: id, IP: "127.0.0.1", Port: 1}))
}

// TestConnectionManager_DuplicateHello tests a second HELLO on one stream closes it
func TestConnectionManager_DuplicateHello(t *testing.T) {
	n := startNode(t, "node-a")
	conn := rawPeer(t, n.manager)

	if _, err := conn.Write(rogueHello("rogue")); err != nil {
		t.Fatalf("write HELLO: %v", err)
	}
	waitFor(t, 2*time.Second, "binding", func() bool { return n.manager.HasStream("rogue") })

	if _, err := conn.Write(rogueHello("other")); err != nil {
		t.Fatalf("write second HELLO: %v", err)
	}
	expectClosed(t, conn)

	if _, ok := n.membership.Get("other"); ok {
		t.Error("second HELLO should not register a node")
	}
}

// TestConnectionManager_CorruptFrame tests a framing error drops only that stream
func TestConnectionManager_CorruptFrame(t *testing.T) {
	n := startNode(t, "node-a")
	conn := rawPeer(t, n.manager)

	conn.Write(rogueHello("rogue"))
	waitFor(t, 2*time.Second, "binding", func() bool { return n.manager.HasStream("rogue") })

	conn.Write(make([]byte, wire.HeaderSize))
	expectClosed(t, conn)

	waitFor(t, 2*time.Second, "loss detection", func() bool {
		member, ok := n.membership.Get("rogue")
		return ok && member.State == StateInactive
	})

	// The listener keeps accepting
	other := rawPeer(t, n.manager)
	other.Write(rogueHello("rogue-2"))
	waitFor(t, 2*time.Second, "second binding", func() bool { return n.manager.HasStream("rogue-2") })
}

// TestConnectionManager_MessageBeforeHello tests unbound streams do not dispatch
func TestConnectionManager_MessageBeforeHello(t *testing.T) {
	n := startNode(t, "node-a")
	subject := wire.NewSubject("test-early")

	var mu sync.Mutex
	var from []NodeID
	n.manager.Dispatcher().Subscribe(subject, func(_ wire.Message, f NodeID) {
		mu.Lock()
		from = append(from, f)
		mu.Unlock()
	})

	conn := rawPeer(t, n.manager)
	frames := wire.Encode(wire.NewMessage(subject, []byte("early")))
	frames = append(frames, rogueHello("rogue")...)
	frames = wire.AppendFrame(frames, wire.NewMessage(subject, []byte("late")))
	if _, err := conn.Write(frames); err != nil {
		t.Fatalf("write frames: %v", err)
	}

	waitFor(t, 2*time.Second, "dispatch", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(from) > 0
	})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(from) != 1 || from[0] != "rogue" {
		t.Errorf("dispatched from %v, want exactly one message from rogue", from)
	}
}
