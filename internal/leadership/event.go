package leadership

import (
	"time"

	"github.com/concave-dev/lattice/internal/cluster"
)

// EventType classifies a leadership change.
type EventType string

const (
	// LeaderElected is emitted when a node acquires a path
	LeaderElected EventType = "LEADER_ELECTED"

	// LeaderReelected is emitted on every successful renewal
	LeaderReelected EventType = "LEADER_REELECTED"

	// LeaderBooted is emitted when a node loses or gives up a path
	LeaderBooted EventType = "LEADER_BOOTED"

	// CandidateJoined is emitted when a node starts running for a path, and
	// again on every candidacy refresh
	CandidateJoined EventType = "CANDIDATE_JOINED"

	// CandidateLeft is emitted when a node withdraws from a path
	CandidateLeft EventType = "CANDIDATE_LEFT"
)

// Candidacy reports whether t describes a candidacy rather than a leader.
func (t EventType) Candidacy() bool {
	return t == CandidateJoined || t == CandidateLeft
}

// Event describes one leadership change for one path.
type Event struct {
	Type EventType      `json:"type" msgpack:"type"`
	Path string         `json:"path" msgpack:"path"`
	Node cluster.NodeID `json:"node" msgpack:"node"`
	Term uint64         `json:"term" msgpack:"term"`
	Time time.Time      `json:"time" msgpack:"time"`
}

// Leadership is the current holder of a path as far as this node knows.
type Leadership struct {
	Path    string         `json:"path"`
	Leader  cluster.NodeID `json:"leader"`
	Term    uint64         `json:"term"`
	Elected time.Time      `json:"elected"`
	Renewed time.Time      `json:"renewed"`
}

// Candidate is one node running for a path. Candidates are ordered by the
// time they joined.
type Candidate struct {
	Node  cluster.NodeID `json:"node"`
	Since time.Time      `json:"since"`
}

// Listener receives local leadership events.
type Listener func(Event)
