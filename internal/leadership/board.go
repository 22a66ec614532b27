package leadership

import (
	"fmt"
	"sync"
	"time"

	"github.com/concave-dev/lattice/internal/cluster"
	"github.com/concave-dev/lattice/internal/logging"
	"github.com/concave-dev/lattice/internal/wire"
	"github.com/vmihailenco/msgpack/v5"
)

// Transport is the part of the connection manager the board needs.
type Transport interface {
	Send(msg wire.Message) bool
	Dispatcher() *cluster.Dispatcher
}

// Board shares leadership across the cluster. Local events are broadcast to
// every peer; events received from peers are merged into the manager's
// leader board without reaching local listeners. Renewals are broadcast
// too, and local candidacies are re-announced every half term, so a node
// that joins late learns every leader and candidate within half a term.
type Board struct {
	manager   *Manager
	transport Transport

	unsubscribe     func()
	removeListeners []func()

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewBoard links manager to the cluster transport. Nothing is exchanged
// until Start.
func NewBoard(manager *Manager, transport Transport) *Board {
	return &Board{manager: manager, transport: transport, done: make(chan struct{})}
}

// Start subscribes to peer events and begins broadcasting local ones.
func (b *Board) Start() error {
	unsubscribe, err := b.transport.Dispatcher().Subscribe(wire.LeadershipEvent, b.receive)
	if err != nil {
		return fmt.Errorf("failed to subscribe to leadership events: %w", err)
	}
	b.unsubscribe = unsubscribe
	b.removeListeners = []func(){
		b.manager.AddListener(b.publish),
		b.manager.AddCandidacyListener(b.publish),
	}

	b.wg.Add(1)
	go b.refresh(b.manager.config.renewInterval())
	return nil
}

// Stop detaches the board from the manager and the transport.
func (b *Board) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.wg.Wait()
		for _, remove := range b.removeListeners {
			remove()
		}
		if b.unsubscribe != nil {
			b.unsubscribe()
		}
	})
}

// OnMembershipChange drops the leaderships and candidacies of a node that
// departed or whose streams were lost. A lost node that comes back is
// relearned from its next renewal and candidacy refresh.
func (b *Board) OnMembershipChange(ev cluster.MembershipEvent) {
	if ev.Type != cluster.NodeLost && ev.Type != cluster.NodeDeparted {
		return
	}
	if n := b.manager.ForgetNode(ev.Node.ID); n > 0 {
		logging.Info("Forgot %d leadership(s) held by %s node %s", n, ev.Type, ev.Node.ID)
	}
}

// refresh re-announces local candidacies until Stop.
func (b *Board) refresh(interval time.Duration) {
	defer b.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			for _, ev := range b.manager.candidacies() {
				b.publish(ev)
			}
		}
	}
}

// publish broadcasts a local event.
func (b *Board) publish(ev Event) {
	payload, err := EncodeEvent(ev)
	if err != nil {
		logging.Error("Failed to encode leadership event for %s: %v", ev.Path, err)
		return
	}
	if !b.transport.Send(wire.NewMessage(wire.LeadershipEvent, payload)) {
		logging.Debug("Leadership event %s for %s did not reach every node", ev.Type, ev.Path)
	}
}

// receive merges an event broadcast by a peer.
func (b *Board) receive(msg wire.Message, from cluster.NodeID) {
	ev, err := DecodeEvent(msg.Payload)
	if err != nil {
		logging.Warn("Dropping malformed leadership event from %s: %v", from, err)
		return
	}
	if ev.Node != from {
		logging.Warn("Node %s relayed a leadership event for %s, ignoring", from, ev.Node)
		return
	}
	if b.manager.Observe(ev) {
		logging.Debug("Leader board: %s %s by %s (term %d)", ev.Type, ev.Path, ev.Node, ev.Term)
	}
}

// EncodeEvent serializes an event for the wire.
func EncodeEvent(ev Event) ([]byte, error) {
	return msgpack.Marshal(&ev)
}

// DecodeEvent parses an event read off the wire.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := msgpack.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	if ev.Path == "" || ev.Node == "" {
		return Event{}, fmt.Errorf("leadership event missing path or node")
	}
	return ev, nil
}
