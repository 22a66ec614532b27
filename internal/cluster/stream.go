package cluster

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/concave-dev/lattice/internal/logging"
	"github.com/concave-dev/lattice/internal/wire"
)

const readChunkSize = 32 * 1024

var (
	// ErrStreamClosed is returned when writing to a closed stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrWriteQueueFull is returned when the peer is not draining fast enough.
	ErrWriteQueueFull = errors.New("stream write queue full")

	// ErrAlreadyBound is returned by SetNode on a stream that already has an
	// identity. Seeing it means a peer sent two HELLOs on one connection.
	ErrAlreadyBound = errors.New("stream already bound")
)

// Stream is one framed TCP connection to a peer.
//
// Reads are performed by a single reader (the owning worker's reader
// goroutine). Writes are enqueued without blocking and drained by a
// dedicated writer goroutine, so a slow peer never stalls the caller.
type Stream struct {
	conn     net.Conn
	outbound bool
	target   NodeID // node we dialed; empty for inbound streams
	worker   int
	decoder  *wire.Decoder
	metrics  *transportMetrics

	readBuf []byte
	scratch []byte

	writeCh   chan []byte
	done      chan struct{}
	closeOnce sync.Once
	local     atomic.Bool

	mu    sync.Mutex
	node  NodeID
	bound bool

	createdAt    time.Time
	lastActivity atomic.Int64
}

// StreamInfo is a point-in-time description of a stream.
type StreamInfo struct {
	Node         NodeID    `json:"node"`
	Bound        bool      `json:"bound"`
	LocalAddr    string    `json:"localAddr"`
	RemoteAddr   string    `json:"remoteAddr"`
	Outbound     bool      `json:"outbound"`
	Worker       int       `json:"worker"`
	Created      time.Time `json:"created"`
	LastActivity time.Time `json:"lastActivity"`
}

func newStream(conn net.Conn, target NodeID, worker int, decoder *wire.Decoder, queueSize int, m *transportMetrics) *Stream {
	if m == nil {
		m = newTransportMetrics()
	}
	if queueSize <= 0 {
		queueSize = DefaultWriteQueueSize
	}
	now := time.Now()
	s := &Stream{
		conn:      conn,
		outbound:  target != "",
		target:    target,
		worker:    worker,
		decoder:   decoder,
		metrics:   m,
		scratch:   make([]byte, readChunkSize),
		writeCh:   make(chan []byte, queueSize),
		done:      make(chan struct{}),
		createdAt: now,
	}
	s.lastActivity.Store(now.UnixNano())
	m.streamsOpened.Inc()

	go s.writeLoop()
	return s
}

// Write enqueues m for sending. It never blocks.
func (s *Stream) Write(m wire.Message) error {
	if s.IsClosed() {
		return ErrStreamClosed
	}
	select {
	case s.writeCh <- wire.Encode(m):
		return nil
	case <-s.done:
		return ErrStreamClosed
	default:
		return ErrWriteQueueFull
	}
}

// WriteAndClose writes m directly with a deadline and closes the stream.
// Frames still queued may be lost. Used for GOODBYE.
func (s *Stream) WriteAndClose(m wire.Message, timeout time.Duration) error {
	if s.IsClosed() {
		return ErrStreamClosed
	}
	s.local.Store(true)
	defer s.Close()

	_ = s.conn.SetWriteDeadline(time.Now().Add(timeout))
	frame := wire.Encode(m)
	if _, err := s.conn.Write(frame); err != nil {
		return err
	}
	s.metrics.framesSent.Inc()
	s.metrics.bytesSent.Add(len(frame))
	return nil
}

// Read blocks for the next chunk of bytes and returns every complete frame
// buffered so far. Messages and an error may both be returned: frames that
// arrived before an EOF are still delivered.
func (s *Stream) Read() ([]wire.Message, error) {
	n, readErr := s.conn.Read(s.scratch)
	if n > 0 {
		s.touch()
		s.readBuf = append(s.readBuf, s.scratch[:n]...)
		s.metrics.bytesReceived.Add(n)
	}

	msgs, err := s.drain()
	if err != nil {
		return msgs, err
	}
	return msgs, readErr
}

// drain decodes buffered frames and compacts what is left.
func (s *Stream) drain() ([]wire.Message, error) {
	var msgs []wire.Message
	off := 0
	for off < len(s.readBuf) {
		msg, n, err := s.decoder.Decode(s.readBuf[off:])
		if errors.Is(err, wire.ErrNeedMoreData) {
			break
		}
		if err != nil {
			s.metrics.corruptFrames.Inc()
			return msgs, err
		}
		msgs = append(msgs, msg)
		off += n
	}
	if off > 0 {
		s.readBuf = append(s.readBuf[:0], s.readBuf[off:]...)
	}
	s.metrics.framesReceived.Add(len(msgs))
	return msgs, nil
}

func (s *Stream) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.writeCh:
			if _, err := s.conn.Write(frame); err != nil {
				if !s.IsClosed() {
					logging.Debug("Write to %s failed: %v", s.conn.RemoteAddr(), err)
				}
				s.Close()
				return
			}
			s.touch()
			s.metrics.framesSent.Inc()
			s.metrics.bytesSent.Add(len(frame))
		}
	}
}

// SetNode binds the stream to a node identity. A stream can be bound once.
func (s *Stream) SetNode(id NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound {
		return fmt.Errorf("%w: bound to %s, refusing %s", ErrAlreadyBound, s.node, id)
	}
	s.node = id
	s.bound = true
	return nil
}

// Node returns the bound identity, if any.
func (s *Stream) Node() (NodeID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.node, s.bound
}

// Outbound reports whether the local process dialed this connection.
func (s *Stream) Outbound() bool {
	return s.outbound
}

// Close closes the stream. Safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
		s.metrics.streamsClosed.Inc()
	})
	return err
}

// closeLocal closes the stream and marks the close as intentional so the
// resulting read error is not reported as a peer failure.
func (s *Stream) closeLocal() {
	s.local.Store(true)
	s.Close()
}

// closedLocally reports whether this process chose to close the stream.
func (s *Stream) closedLocally() bool {
	return s.local.Load()
}

// IsClosed reports whether Close has been called.
func (s *Stream) IsClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Stream) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the time of the last successful read or write.
func (s *Stream) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// IsIdle reports whether the stream has been silent for longer than timeout.
// A zero timeout disables idleness.
func (s *Stream) IsIdle(timeout time.Duration, now time.Time) bool {
	if timeout <= 0 {
		return false
	}
	return now.Sub(s.LastActivity()) > timeout
}

// Info returns a snapshot for introspection.
func (s *Stream) Info() StreamInfo {
	node, bound := s.Node()
	return StreamInfo{
		Node:         node,
		Bound:        bound,
		LocalAddr:    s.conn.LocalAddr().String(),
		RemoteAddr:   s.conn.RemoteAddr().String(),
		Outbound:     s.outbound,
		Worker:       s.worker,
		Created:      s.createdAt,
		LastActivity: s.LastActivity(),
	}
}
