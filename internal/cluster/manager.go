// Package cluster provides the node-to-node communication layer for Lattice.
// It keeps one framed TCP stream open to every monitored controller node,
// detects peers through a HELLO handshake and routes inbound messages to
// subscribers by subject.
//
// CONNECTION MODEL:
// Every node listens on its cluster port and dials every node it monitors.
// Two nodes therefore race to connect to each other; when both directions
// bind, a deterministic tie-break keeps the connection initiated by the node
// with the lexically smaller id, so both ends converge on the same socket.
//
//   - IO workers: a small fixed pool owns all streams and serializes HELLO
//     binding, dispatch and teardown per stream
//   - Accept listener: hands inbound connections to the least loaded worker
//   - Custodian: periodically dials every monitored node without a stream
//   - Dispatcher: copy-on-write subject table, lock-free on the read path
//
// FAILURE MODEL:
// A read error, EOF or framing error closes only the affected stream and
// reports the node as vanished. The custodian re-dials it on its next pass
// with no backoff. A GOODBYE from a peer removes it from the monitored set
// immediately.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/concave-dev/lattice/internal/logging"
	"github.com/concave-dev/lattice/internal/netutil"
	"github.com/concave-dev/lattice/internal/wire"
	"github.com/juju/ratelimit"
	"golang.org/x/sync/errgroup"
)

// dialLogWindow is how often repeated dial failures are summarized
const dialLogWindow = 30 * time.Second

// ErrNotStarted is returned by operations that need a running manager.
var ErrNotStarted = errors.New("connection manager not started")

// ConnectionManager keeps streams open to every monitored node, routes
// outbound messages to them and exposes introspection for the API.
type ConnectionManager struct {
	config     *Config
	registry   *wire.Registry
	decoder    *wire.Decoder
	dispatcher *Dispatcher
	metrics    *transportMetrics
	dialLog    *logging.Deduper
	dialBucket *ratelimit.Bucket // nil when dials are not rate limited

	mu      sync.RWMutex
	local   ControllerNode
	members MembershipDelegate
	nodes   map[NodeID]ControllerNode
	streams map[NodeID]*Stream
	dialing map[NodeID]bool

	workers  []*IOWorker
	listener *AcceptListener
	kick     chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	group     *errgroup.Group
	started   atomic.Bool
	stopped   atomic.Bool
	startTime time.Time
}

// NewConnectionManager creates a manager from cfg. Nothing is started until
// Start is called.
func NewConnectionManager(cfg *Config) (*ConnectionManager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cluster config: %w", err)
	}

	registry := wire.NewRegistry()
	decoder := wire.NewDecoder(registry)
	decoder.MaxFrameSize = cfg.MaxFrameSize

	m := &ConnectionManager{
		config:     cfg,
		registry:   registry,
		decoder:    decoder,
		dispatcher: NewDispatcher(registry),
		metrics:    newTransportMetrics(),
		dialLog:    logging.NewDeduper("custodian", dialLogWindow),
		nodes:      make(map[NodeID]ControllerNode),
		streams:    make(map[NodeID]*Stream),
		dialing:    make(map[NodeID]bool),
		kick:       make(chan struct{}, 1),
	}
	if cfg.DialRate > 0 {
		capacity := int64(cfg.DialRate)
		if capacity < 1 {
			capacity = 1
		}
		m.dialBucket = ratelimit.NewBucketWithRate(cfg.DialRate, capacity)
	}

	if _, err := m.dispatcher.Subscribe(wire.Goodbye, m.handleGoodbye); err != nil {
		return nil, fmt.Errorf("failed to subscribe goodbye handler: %w", err)
	}

	m.metrics.set.NewGauge("lattice_cluster_streams", func() float64 {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return float64(len(m.streams))
	})
	m.metrics.set.NewGauge("lattice_cluster_monitored_nodes", func() float64 {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return float64(len(m.nodes))
	})

	m.workers = make([]*IOWorker, cfg.Workers)
	for i := range m.workers {
		m.workers[i] = newIOWorker(i, m)
	}

	return m, nil
}

// Start binds the cluster listener and starts the worker pool, the accept
// listener and the custodian, in that order. A zero local.Port is filled in
// from the bound listener and an empty local.IP from the bind address.
func (m *ConnectionManager) Start(local ControllerNode, delegate MembershipDelegate) error {
	if local.ID == "" {
		return fmt.Errorf("local node id is required")
	}
	if m.started.Swap(true) {
		return fmt.Errorf("connection manager already started")
	}
	if delegate == nil {
		delegate = NewMembership()
	}

	ln := m.config.Listener
	if ln == nil {
		var err error
		ln, err = netutil.NewPortBinder().BindTCP(m.config.BindAddr, m.config.BindPort)
		if err != nil {
			m.started.Store(false)
			return fmt.Errorf("failed to bind cluster listener: %w", err)
		}
	}

	if local.Port == 0 {
		port, err := netutil.NewPortBinder().GetListenerPort(ln)
		if err != nil {
			ln.Close()
			m.started.Store(false)
			return err
		}
		local.Port = port
	}
	if local.IP == "" {
		local.IP = m.config.advertiseIP(ln)
	}
	local.State = StateActive

	m.mu.Lock()
	m.local = local
	m.members = delegate
	delete(m.nodes, local.ID)
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)
	m.ctx = gctx
	m.cancel = cancel
	m.group = group
	m.startTime = time.Now()

	for _, w := range m.workers {
		group.Go(func() error { return w.run(gctx) })
	}

	m.listener = newAcceptListener(ln, m)
	group.Go(func() error { return m.listener.run(gctx) })
	group.Go(func() error { return m.runCustodian(gctx) })

	logging.Info("Cluster transport started for %s on %s (%d workers)", local.ID, local.Address(), len(m.workers))
	return nil
}

// Shutdown stops the custodian, the listener and every worker, closing all
// streams. Queued writes are not flushed.
func (m *ConnectionManager) Shutdown(ctx context.Context) error {
	if !m.started.Load() || m.stopped.Swap(true) {
		return nil
	}

	logging.Info("Shutting down cluster transport")
	m.cancel()

	done := make(chan error, 1)
	go func() { done <- m.group.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = fmt.Errorf("timed out waiting for cluster transport: %w", ctx.Err())
	}
	m.dialLog.Close()

	if err != nil {
		logging.Warn("Cluster transport shutdown: %v", err)
		return err
	}
	logging.Success("Cluster transport stopped")
	return nil
}

// Wait blocks until the manager's goroutines exit and returns the first
// error that stopped them, such as a failed listener.
func (m *ConnectionManager) Wait() error {
	if !m.started.Load() {
		return ErrNotStarted
	}
	return m.group.Wait()
}

// AddNode adds node to the monitored set. The custodian connects to it on
// its next pass, which is triggered immediately.
func (m *ConnectionManager) AddNode(node ControllerNode) {
	m.mu.Lock()
	if node.ID == m.local.ID {
		m.mu.Unlock()
		return
	}
	if cur, ok := m.nodes[node.ID]; ok {
		cur.IP, cur.Port = node.IP, node.Port
		m.nodes[node.ID] = cur
	} else {
		node.State = StateInactive
		m.nodes[node.ID] = node
	}
	m.mu.Unlock()

	logging.Debug("Monitoring node %s at %s", node.ID, node.Address())
	m.triggerCustodian()
}

// RemoveNode stops monitoring id. If a stream is open the peer is told
// GOODBYE before the stream is closed; delivery is best-effort. Outbound
// streams to id that have not seen a HELLO yet are closed as well.
func (m *ConnectionManager) RemoveNode(id NodeID) {
	m.mu.Lock()
	s := m.streams[id]
	delete(m.streams, id)
	delete(m.nodes, id)
	delete(m.dialing, id)
	local := m.local.ID
	m.mu.Unlock()

	pending := m.closeUnbound(func(u *Stream) bool { return u.target == id })
	if pending > 0 {
		logging.Debug("Closed %d pending streams to %s", pending, id)
	}

	if s == nil {
		return
	}
	if err := s.WriteAndClose(wire.EncodeGoodbye(string(local)), m.config.GoodbyeTimeout); err != nil {
		logging.Debug("GOODBYE to %s not delivered: %v", id, err)
	}
	logging.Info("Stopped monitoring node %s", id)
}

// Send writes msg to every monitored node and reports whether every write
// was accepted. With no peers it trivially succeeds once started; before
// Start and after Shutdown it always fails.
func (m *ConnectionManager) Send(msg wire.Message) bool {
	if err := m.checkRunning(); err != nil {
		logging.Debug("Send %s: %v", msg.Subject, err)
		return false
	}
	m.mu.RLock()
	ids := make([]NodeID, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	ok := true
	for _, id := range ids {
		if !m.SendTo(msg, id) {
			ok = false
		}
	}
	return ok
}

// SendTo writes msg to one node. It returns false when no stream is bound
// to the node or the stream refused the write.
func (m *ConnectionManager) SendTo(msg wire.Message, id NodeID) bool {
	if err := m.checkRunning(); err != nil {
		logging.Debug("Send %s to %s: %v", msg.Subject, id, err)
		return false
	}
	m.mu.RLock()
	s := m.streams[id]
	self := id == m.local.ID
	m.mu.RUnlock()

	if self {
		return false
	}
	if s == nil {
		m.metrics.sendFailures.Inc()
		return false
	}
	if err := s.Write(msg); err != nil {
		m.metrics.sendFailures.Inc()
		logging.Debug("Send %s to %s failed: %v", msg.Subject, id, err)
		return false
	}
	return true
}

func (m *ConnectionManager) checkRunning() error {
	if !m.started.Load() || m.stopped.Load() {
		return ErrNotStarted
	}
	return nil
}

// ClearAllNodesAndStreams says GOODBYE to every peer, closes every stream
// and empties the monitored set. Used when the local node leaves.
func (m *ConnectionManager) ClearAllNodesAndStreams() {
	m.mu.Lock()
	streams := m.streams
	m.streams = make(map[NodeID]*Stream)
	m.nodes = make(map[NodeID]ControllerNode)
	m.dialing = make(map[NodeID]bool)
	goodbye := wire.EncodeGoodbye(string(m.local.ID))
	m.mu.Unlock()

	m.closeUnbound(func(*Stream) bool { return true })

	var g errgroup.Group
	for id, s := range streams {
		g.Go(func() error {
			if err := s.WriteAndClose(goodbye, m.config.GoodbyeTimeout); err != nil {
				logging.Debug("GOODBYE to %s not delivered: %v", id, err)
			}
			return nil
		})
	}
	g.Wait()

	if len(streams) > 0 {
		logging.Info("Said goodbye to %d nodes", len(streams))
	}
}

// registerStream records s as the bound stream for node after a HELLO. It
// returns false when s was closed instead, which happens to outbound streams
// whose target stopped being monitored while the handshake was running.
func (m *ConnectionManager) registerStream(node ControllerNode, s *Stream) bool {
	var loser *Stream

	m.mu.Lock()
	if s.target != "" {
		delete(m.dialing, s.target)
		if _, ok := m.nodes[s.target]; !ok {
			m.mu.Unlock()
			s.closeLocal()
			return false
		}
	}
	if s.IsClosed() {
		m.mu.Unlock()
		return false
	}

	node.State = StateActive
	m.nodes[node.ID] = node

	cur := m.streams[node.ID]
	switch {
	case cur == nil || cur.IsClosed():
		m.streams[node.ID] = s
	case cur == s:
	case m.preferStream(node.ID, cur, s) == s:
		m.streams[node.ID] = s
		loser = cur
	default:
		loser = s
	}
	m.mu.Unlock()

	if loser != nil {
		logging.Debug("Duplicate stream to %s, closing %s -> %s", node.ID, loser.conn.LocalAddr(), loser.conn.RemoteAddr())
		loser.closeLocal()
		return true
	}
	logging.Info("Connected to node %s at %s", node.ID, node.Address())
	return true
}

// closeUnbound closes every stream, on any worker, that has not been bound
// by a HELLO and matches.
func (m *ConnectionManager) closeUnbound(match func(*Stream) bool) int {
	n := 0
	for _, w := range m.workers {
		n += w.closeUnbound(match)
	}
	return n
}

// monitors reports whether id is in the monitored set.
func (m *ConnectionManager) monitors(id NodeID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.nodes[id]
	return ok
}

// preferStream picks which of two streams to the same peer survives. Both
// ends must reach the same answer: when the streams were opened from
// different sides, the one initiated by the smaller node id wins. Two
// streams from the same side are resolved in favour of the newer one.
// Must be called with mu held.
func (m *ConnectionManager) preferStream(peer NodeID, cur, next *Stream) *Stream {
	initiator := func(s *Stream) NodeID {
		if s.Outbound() {
			return m.local.ID
		}
		return peer
	}

	ci, ni := initiator(cur), initiator(next)
	if ci == ni {
		return next
	}
	if ni == min(m.local.ID, peer) {
		return next
	}
	return cur
}

// removeNodeStream forgets s if it is still the bound stream for node and
// reports whether it was. A node that loses its stream stays monitored.
func (m *ConnectionManager) removeNodeStream(node NodeID, s *Stream) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.streams[node] != s {
		return false
	}
	delete(m.streams, node)
	if n, ok := m.nodes[node]; ok {
		n.State = StateInactive
		m.nodes[node] = n
	}
	return true
}

func (m *ConnectionManager) handleGoodbye(_ wire.Message, from NodeID) {
	m.metrics.goodbyes.Inc()

	m.mu.Lock()
	s := m.streams[from]
	delete(m.streams, from)
	delete(m.nodes, from)
	delete(m.dialing, from)
	delegate := m.members
	m.mu.Unlock()

	if s != nil {
		s.closeLocal()
	}
	logging.Info("Node %s said goodbye", from)
	if delegate != nil {
		delegate.NodeRemoved(from)
	}
}

// ============================================================================
// CUSTODIAN - Periodic reconnection to monitored nodes
// ============================================================================

func (m *ConnectionManager) triggerCustodian() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// runCustodian dials every monitored node lacking a stream, once after the
// initial delay and then on every tick or AddNode.
func (m *ConnectionManager) runCustodian(ctx context.Context) error {
	if d := m.config.ReconnectInitialDelay; d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(m.config.ReconnectInterval)
	defer ticker.Stop()

	for {
		m.reconnect(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-m.kick:
		}
	}
}

// reconnect runs one custodian pass. Nodes that do not get a dial token are
// left for the next pass.
func (m *ConnectionManager) reconnect(ctx context.Context) {
	var targets []ControllerNode
	deferred := 0

	m.mu.Lock()
	for id, node := range m.nodes {
		if id == m.local.ID || m.dialing[id] {
			continue
		}
		if s := m.streams[id]; s != nil && !s.IsClosed() {
			continue
		}
		if m.dialBucket != nil && m.dialBucket.TakeAvailable(1) == 0 {
			deferred++
			continue
		}
		m.dialing[id] = true
		targets = append(targets, node)
	}
	m.mu.Unlock()

	for _, node := range targets {
		m.metrics.dialAttempts.Inc()
		m.leastLoadedWorker().ConnectStream(ctx, node)
	}
	if deferred > 0 {
		logging.Debug("Dial rate reached, %d nodes deferred to the next pass", deferred)
	}
}

func (m *ConnectionManager) dialFailed(node ControllerNode, err error) {
	m.dialFinished(node.ID)
	if m.ctx != nil && m.ctx.Err() != nil {
		return
	}
	m.metrics.dialFailures.Inc()
	m.dialLog.Log(string(node.ID), "WARN", "Cannot connect to %s at %s: %s",
		node.ID, node.Address(), netutil.DescribeDialError(err))
}

func (m *ConnectionManager) dialSucceeded(node ControllerNode) {
	m.dialLog.Reset(string(node.ID))
}

func (m *ConnectionManager) dialFinished(id NodeID) {
	m.mu.Lock()
	delete(m.dialing, id)
	m.mu.Unlock()
}

// leastLoadedWorker returns the first idle worker, or the one with the
// fewest streams.
func (m *ConnectionManager) leastLoadedWorker() *IOWorker {
	best := m.workers[0]
	bestLoad := best.StreamCount()
	for _, w := range m.workers[1:] {
		if bestLoad == 0 {
			break
		}
		if load := w.StreamCount(); load < bestLoad {
			best, bestLoad = w, load
		}
	}
	return best
}

// ============================================================================
// INTROSPECTION
// ============================================================================

func (m *ConnectionManager) identity() wire.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return wire.Identity{ID: string(m.local.ID), IP: m.local.IP, Port: m.local.Port}
}

func (m *ConnectionManager) delegate() MembershipDelegate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.members
}

// LocalNode returns the local node as announced to peers.
func (m *ConnectionManager) LocalNode() ControllerNode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.local
}

// Nodes returns the monitored nodes sorted by id.
func (m *ConnectionManager) Nodes() []ControllerNode {
	m.mu.RLock()
	nodes := make([]ControllerNode, 0, len(m.nodes))
	for _, n := range m.nodes {
		nodes = append(nodes, n)
	}
	m.mu.RUnlock()

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Node returns one monitored node.
func (m *ConnectionManager) Node(id NodeID) (ControllerNode, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	return n, ok
}

// HasStream reports whether a bound stream to id is open.
func (m *ConnectionManager) HasStream(id NodeID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.streams[id]
	return s != nil && !s.IsClosed()
}

// Streams returns a snapshot of every stream owned by the worker pool,
// including streams not yet bound by a HELLO.
func (m *ConnectionManager) Streams() []StreamInfo {
	var out []StreamInfo
	for _, w := range m.workers {
		out = append(out, w.streamInfos()...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Node != out[j].Node {
			return out[i].Node < out[j].Node
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

// WorkerLoads returns the current load of each worker, indexed by worker.
func (m *ConnectionManager) WorkerLoads() []int {
	loads := make([]int, len(m.workers))
	for i, w := range m.workers {
		loads[i] = w.StreamCount()
	}
	return loads
}

// Dispatcher returns the inbound message dispatcher.
func (m *ConnectionManager) Dispatcher() *Dispatcher {
	return m.dispatcher
}

// Registry returns the subject registry shared by the decoder and dispatcher.
func (m *ConnectionManager) Registry() *wire.Registry {
	return m.registry
}

// Metrics returns the manager's metric set for exposition.
func (m *ConnectionManager) Metrics() *metrics.Set {
	return m.metrics.set
}

// StartTime returns when Start was called.
func (m *ConnectionManager) StartTime() time.Time {
	return m.startTime
}

// ListenAddr returns the cluster listener address, or "" before Start.
func (m *ConnectionManager) ListenAddr() string {
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}
