package cluster

import (
	"net"
	"sort"
	"strconv"
	"sync"
	"time"
)

// NodeID uniquely identifies a controller process in the cluster.
type NodeID string

// NodeState is the liveness of a node as seen from the local process.
type NodeState string

const (
	StateActive   NodeState = "ACTIVE"
	StateInactive NodeState = "INACTIVE"
)

// ControllerNode is the identity of one cluster member. Nodes are created the
// first time they are referenced (static seed or HELLO) and afterwards only
// change state; they are never forgotten.
type ControllerNode struct {
	ID    NodeID    `json:"id"`
	IP    string    `json:"ip"`
	Port  int       `json:"port"`
	State NodeState `json:"state"`
}

// Address returns the node's cluster listener address, with IPv6 hosts
// bracketed.
func (n ControllerNode) Address() string {
	return net.JoinHostPort(n.IP, strconv.Itoa(n.Port))
}

// MembershipDelegate receives membership notifications from the connection
// manager. Implementations must not block; they are called from IO worker
// goroutines.
type MembershipDelegate interface {
	// NodeDetected is called when a HELLO binds a stream to a node.
	NodeDetected(id NodeID, ip string, port int) ControllerNode
	// NodeVanished is called when the last stream to a node is lost.
	NodeVanished(id NodeID)
	// NodeRemoved is called when a node said GOODBYE.
	NodeRemoved(id NodeID)
}

// MembershipEventType classifies a membership change.
type MembershipEventType string

const (
	NodeJoined   MembershipEventType = "joined"
	NodeLost     MembershipEventType = "lost"
	NodeDeparted MembershipEventType = "departed"
)

// MembershipEvent is delivered to Membership listeners.
type MembershipEvent struct {
	Type MembershipEventType
	Node ControllerNode
	Time time.Time
}

// Membership is the default MembershipDelegate: an in-memory view of every
// node this process has heard of, with change notification.
type Membership struct {
	mu        sync.RWMutex
	nodes     map[NodeID]*memberRecord
	listeners []func(MembershipEvent)
}

type memberRecord struct {
	node     ControllerNode
	lastSeen time.Time
	departed bool
}

// Member is a snapshot of one node as held by Membership.
type Member struct {
	ControllerNode
	LastSeen time.Time `json:"lastSeen"`
	Departed bool      `json:"departed"`
}

// NewMembership returns an empty membership view.
func NewMembership() *Membership {
	return &Membership{nodes: make(map[NodeID]*memberRecord)}
}

// OnChange registers a listener called synchronously on every change.
func (m *Membership) OnChange(fn func(MembershipEvent)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Seed records a statically configured node as INACTIVE until a stream binds.
func (m *Membership) Seed(node ControllerNode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[node.ID]; ok {
		return
	}
	node.State = StateInactive
	m.nodes[node.ID] = &memberRecord{node: node}
}

// NodeDetected implements MembershipDelegate.
func (m *Membership) NodeDetected(id NodeID, ip string, port int) ControllerNode {
	m.mu.Lock()
	rec, ok := m.nodes[id]
	if !ok {
		rec = &memberRecord{}
		m.nodes[id] = rec
	}
	now := time.Now()
	rec.node = ControllerNode{ID: id, IP: ip, Port: port, State: StateActive}
	rec.lastSeen = now
	rec.departed = false
	node := rec.node
	m.mu.Unlock()

	m.notify(MembershipEvent{Type: NodeJoined, Node: node, Time: now})
	return node
}

// NodeVanished implements MembershipDelegate.
func (m *Membership) NodeVanished(id NodeID) {
	if node, ok := m.deactivate(id, false); ok {
		m.notify(MembershipEvent{Type: NodeLost, Node: node, Time: time.Now()})
	}
}

// NodeRemoved implements MembershipDelegate.
func (m *Membership) NodeRemoved(id NodeID) {
	if node, ok := m.deactivate(id, true); ok {
		m.notify(MembershipEvent{Type: NodeDeparted, Node: node, Time: time.Now()})
	}
}

func (m *Membership) deactivate(id NodeID, departed bool) (ControllerNode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.nodes[id]
	if !ok {
		return ControllerNode{}, false
	}
	rec.node.State = StateInactive
	rec.lastSeen = time.Now()
	if departed {
		rec.departed = true
	}
	return rec.node, true
}

func (m *Membership) notify(ev MembershipEvent) {
	m.mu.RLock()
	listeners := make([]func(MembershipEvent), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// Get returns the member with the given id.
func (m *Membership) Get(id NodeID) (Member, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.nodes[id]
	if !ok {
		return Member{}, false
	}
	return Member{ControllerNode: rec.node, LastSeen: rec.lastSeen, Departed: rec.departed}, true
}

// Members returns copies of all known members sorted by id.
func (m *Membership) Members() []Member {
	m.mu.RLock()
	out := make([]Member, 0, len(m.nodes))
	for _, rec := range m.nodes {
		out = append(out, Member{ControllerNode: rec.node, LastSeen: rec.lastSeen, Departed: rec.departed})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveCount returns the number of ACTIVE members.
func (m *Membership) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rec := range m.nodes {
		if rec.node.State == StateActive {
			n++
		}
	}
	return n
}
