// Package handlers implements the HTTP handlers behind the latticed status
// and control API. Handlers are built by factories that close over the
// component they read from, so tests can hand in a real manager started on
// a loopback port.
package handlers

import (
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/concave-dev/lattice/internal/cluster"
	"github.com/concave-dev/lattice/internal/leadership"
	"github.com/concave-dev/lattice/internal/wire"
	"github.com/gin-gonic/gin"
)

// ClusterView is the read side of the connection manager.
type ClusterView interface {
	LocalNode() cluster.ControllerNode
	Nodes() []cluster.ControllerNode
	Node(id cluster.NodeID) (cluster.ControllerNode, bool)
	HasStream(id cluster.NodeID) bool
	Streams() []cluster.StreamInfo
	WorkerLoads() []int
	Registry() *wire.Registry
	StartTime() time.Time
}

// MembershipView exposes what the membership store remembers about nodes.
type MembershipView interface {
	Get(id cluster.NodeID) (cluster.Member, bool)
	Members() []cluster.Member
}

// LeadershipControl is the subset of the leadership manager the API drives.
type LeadershipControl interface {
	LocalNode() cluster.NodeID
	RunForLeadership(path string) error
	Withdraw(path string) error
	IsContesting(path string) bool
	GetLeader(path string) (leadership.Leadership, bool)
	LeaderBoard() map[string]leadership.Leadership
	OwnedPaths() []string
	Contests() []string
	Stepdown(path string) bool
	Candidates(path string) []leadership.Candidate
	CandidateBoard() map[string][]leadership.Candidate
}

// MetricsSource is anything that owns a VictoriaMetrics set.
type MetricsSource interface {
	Metrics() *metrics.Set
}

// errorResponse writes the standard error envelope.
func errorResponse(message string) gin.H {
	return gin.H{
		"status":  "error",
		"message": message,
	}
}
