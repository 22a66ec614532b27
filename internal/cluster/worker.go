package cluster

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/concave-dev/lattice/internal/logging"
	"github.com/concave-dev/lattice/internal/netutil"
	"github.com/concave-dev/lattice/internal/wire"
)

// eventBufferSize is the depth of a worker's event queue
const eventBufferSize = 256

// streamEvent is posted by a stream's reader goroutine to its worker.
type streamEvent struct {
	stream   *Stream
	messages []wire.Message
	err      error
}

// IOWorker owns a set of streams and processes everything read from them on
// one goroutine. Socket reads happen on per-stream reader goroutines that
// only block in the kernel and hand complete frames to the worker, so
// HELLO binding, dispatch and teardown for a stream are strictly ordered.
type IOWorker struct {
	index   int
	manager *ConnectionManager
	events  chan streamEvent
	done    chan struct{}

	mu      sync.Mutex
	streams map[*Stream]struct{}
	pending atomic.Int32
}

func newIOWorker(index int, manager *ConnectionManager) *IOWorker {
	return &IOWorker{
		index:   index,
		manager: manager,
		events:  make(chan streamEvent, eventBufferSize),
		done:    make(chan struct{}),
		streams: make(map[*Stream]struct{}),
	}
}

// Index returns the worker's position in the pool.
func (w *IOWorker) Index() int {
	return w.index
}

// StreamCount returns the worker's load: owned streams plus dials in flight.
func (w *IOWorker) StreamCount() int {
	w.mu.Lock()
	n := len(w.streams)
	w.mu.Unlock()
	return n + int(w.pending.Load())
}

// run is the worker's event loop. It only returns when ctx is cancelled.
func (w *IOWorker) run(ctx context.Context) error {
	defer close(w.done)

	var prune <-chan time.Time
	if idle := w.manager.config.IdleTimeout; idle > 0 {
		ticker := time.NewTicker(pruneInterval(idle))
		defer ticker.Stop()
		prune = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			w.closeAll()
			return nil
		case ev := <-w.events:
			w.handle(ev)
		case now := <-prune:
			w.pruneIdle(now)
		}
	}
}

func pruneInterval(idle time.Duration) time.Duration {
	interval := idle / 2
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	return interval
}

func (w *IOWorker) stopped() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// AcceptStream adopts an inbound connection and greets the peer.
func (w *IOWorker) AcceptStream(conn net.Conn) *Stream {
	return w.adopt(conn, "")
}

// ConnectStream dials node asynchronously on behalf of the custodian. The
// dial counts towards the worker's load until it completes.
func (w *IOWorker) ConnectStream(ctx context.Context, node ControllerNode) {
	w.pending.Add(1)
	go func() {
		defer w.pending.Add(-1)

		dialer := net.Dialer{Timeout: w.manager.config.DialTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", node.Address())
		if err != nil {
			w.manager.dialFailed(node, err)
			return
		}
		w.manager.dialSucceeded(node)
		if !w.manager.monitors(node.ID) {
			logging.Debug("Node %s was removed while dialing, dropping connection", node.ID)
			conn.Close()
			w.manager.dialFinished(node.ID)
			return
		}
		w.adopt(conn, node.ID)
	}()
}

// adopt wraps conn in a stream owned by this worker, queues the HELLO and
// starts the reader. target is the dialed node for outbound connections.
func (w *IOWorker) adopt(conn net.Conn, target NodeID) *Stream {
	if w.stopped() {
		conn.Close()
		if target != "" {
			w.manager.dialFinished(target)
		}
		return nil
	}

	cfg := w.manager.config
	s := newStream(conn, target, w.index, w.manager.decoder, cfg.WriteQueueSize, w.manager.metrics)

	w.mu.Lock()
	w.streams[s] = struct{}{}
	w.mu.Unlock()

	if err := s.Write(wire.EncodeHello(w.manager.identity())); err != nil {
		logging.Warn("Failed to queue HELLO to %s: %v", conn.RemoteAddr(), err)
	}

	if target != "" {
		logging.Debug("Worker %d connected to %s at %s", w.index, target, conn.RemoteAddr())
	} else {
		logging.Debug("Worker %d accepted connection from %s", w.index, conn.RemoteAddr())
	}

	go w.readLoop(s)
	return s
}

func (w *IOWorker) readLoop(s *Stream) {
	for {
		msgs, err := s.Read()
		if len(msgs) == 0 && err == nil {
			continue
		}
		select {
		case w.events <- streamEvent{stream: s, messages: msgs, err: err}:
		case <-w.done:
			s.Close()
			return
		}
		if err != nil {
			return
		}
	}
}

func (w *IOWorker) handle(ev streamEvent) {
	s := ev.stream
	for _, msg := range ev.messages {
		if s.IsClosed() {
			break
		}
		if msg.Subject.Ordinal == wire.HelloOrdinal {
			w.handleHello(s, msg)
			continue
		}
		node, bound := s.Node()
		if !bound {
			logging.Debug("Dropping %s from %s received before HELLO", msg.Subject, s.conn.RemoteAddr())
			continue
		}
		w.manager.dispatcher.Dispatch(msg, node)
	}

	if ev.err != nil {
		w.dropStream(s, ev.err)
	}
}

func (w *IOWorker) handleHello(s *Stream, msg wire.Message) {
	id, err := wire.DecodeHello(msg.Payload)
	if err != nil {
		logging.Warn("Invalid HELLO from %s: %v", s.conn.RemoteAddr(), err)
		s.closeLocal()
		return
	}

	peer := NodeID(id.ID)
	if peer == w.manager.LocalNode().ID {
		logging.Warn("Connection at %s leads back to this node, closing", s.conn.RemoteAddr())
		s.closeLocal()
		return
	}

	if err := s.SetNode(peer); err != nil {
		logging.Error("Protocol violation from %s: %v", s.conn.RemoteAddr(), err)
		s.closeLocal()
		return
	}

	if s.target != "" && s.target != peer {
		logging.Warn("Dialed %s at %s but %s answered", s.target, s.conn.RemoteAddr(), peer)
	}

	if s.target != "" && !w.manager.monitors(s.target) {
		logging.Debug("Node %s is no longer monitored, closing stream from %s", s.target, s.conn.RemoteAddr())
		s.closeLocal()
		return
	}

	node := w.manager.delegate().NodeDetected(peer, id.IP, id.Port)
	if !w.manager.registerStream(node, s) {
		w.manager.delegate().NodeVanished(peer)
	}
}

// dropStream forgets a stream whose connection ended.
func (w *IOWorker) dropStream(s *Stream, cause error) {
	w.mu.Lock()
	delete(w.streams, s)
	w.mu.Unlock()

	local := s.closedLocally()
	s.Close()

	node, bound := s.Node()
	if !bound {
		if s.target != "" {
			w.manager.dialFinished(s.target)
		}
		logging.Debug("Unbound stream from %s closed: %v", s.conn.RemoteAddr(), cause)
		return
	}

	if !w.manager.removeNodeStream(node, s) {
		// Displaced, removed or said goodbye; someone else already accounted for it
		return
	}

	switch {
	case local:
		logging.Info("Closed stream to %s", node)
	case errors.Is(cause, wire.ErrCorruptFrame):
		logging.Warn("Framing error on stream to %s, dropping connection: %v", node, cause)
	case errors.Is(cause, io.EOF):
		logging.Info("Node %s closed the connection", node)
	case netutil.IsConnectionRefusedError(cause), errors.Is(cause, net.ErrClosed):
		logging.Info("Lost connection to %s", node)
	default:
		logging.Warn("Lost connection to %s: %v", node, cause)
	}

	w.manager.delegate().NodeVanished(node)
}

func (w *IOWorker) pruneIdle(now time.Time) {
	idle := w.manager.config.IdleTimeout

	w.mu.Lock()
	var stale []*Stream
	for s := range w.streams {
		if s.IsIdle(idle, now) {
			stale = append(stale, s)
		}
	}
	w.mu.Unlock()

	for _, s := range stale {
		node, _ := s.Node()
		logging.Info("Pruning stream to %s idle for more than %s", node, idle)
		s.closeLocal()
	}
}

// closeUnbound closes the streams still waiting for a HELLO that match and
// returns how many were closed.
func (w *IOWorker) closeUnbound(match func(*Stream) bool) int {
	w.mu.Lock()
	var doomed []*Stream
	for s := range w.streams {
		if _, bound := s.Node(); !bound && match(s) {
			doomed = append(doomed, s)
		}
	}
	w.mu.Unlock()

	for _, s := range doomed {
		s.closeLocal()
	}
	return len(doomed)
}

func (w *IOWorker) closeAll() {
	w.mu.Lock()
	streams := make([]*Stream, 0, len(w.streams))
	for s := range w.streams {
		streams = append(streams, s)
	}
	w.streams = make(map[*Stream]struct{})
	w.mu.Unlock()

	for _, s := range streams {
		s.closeLocal()
	}
}

// streamInfos returns snapshots of every stream the worker owns.
func (w *IOWorker) streamInfos() []StreamInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]StreamInfo, 0, len(w.streams))
	for s := range w.streams {
		out = append(out, s.Info())
	}
	return out
}
