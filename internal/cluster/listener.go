package cluster

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/concave-dev/lattice/internal/logging"
)

// acceptBackoff is the pause after a transient Accept error
const acceptBackoff = 50 * time.Millisecond

// AcceptListener accepts inbound cluster connections and hands each one to
// the least loaded IO worker.
type AcceptListener struct {
	listener net.Listener
	manager  *ConnectionManager
}

func newAcceptListener(listener net.Listener, manager *ConnectionManager) *AcceptListener {
	return &AcceptListener{listener: listener, manager: manager}
}

// Addr returns the address the listener is bound to.
func (l *AcceptListener) Addr() net.Addr {
	return l.listener.Addr()
}

// run accepts until ctx is cancelled. It returns an error only if the listener
// fails while the manager is still running.
func (l *AcceptListener) run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.listener.Close()
	}()

	logging.Info("Accepting cluster connections on %s", l.listener.Addr())

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("cluster listener closed unexpectedly: %w", err)
			}
			logging.Warn("Accept failed on %s: %v", l.listener.Addr(), err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(acceptBackoff):
			}
			continue
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
			_ = tcp.SetKeepAlive(true)
		}

		w := l.manager.leastLoadedWorker()
		w.AcceptStream(conn)
	}
}
