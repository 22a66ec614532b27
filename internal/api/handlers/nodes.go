// Package handlers provides HTTP request handlers for the lattice API.
//
// This file implements the node endpoints. A node listing merges three views:
// the connection manager's monitored set (state and stream presence), the
// membership store (last seen, departed) and the leader board (paths the node
// is known to lead).
//
// ENDPOINTS:
//   - GET /cluster/nodes: every known node including the local one
//   - GET /cluster/nodes/:id: a single node

package handlers

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/concave-dev/lattice/internal/cluster"
	"github.com/gin-gonic/gin"
)

// NodeResponse is one node as reported by the API
type NodeResponse struct {
	ID        cluster.NodeID    `json:"id"`
	Address   string            `json:"address"`
	State     cluster.NodeState `json:"state"`
	Connected bool              `json:"connected"`
	Local     bool              `json:"local"`
	Departed  bool              `json:"departed"`
	LastSeen  time.Time         `json:"lastSeen"`
	Leads     []string          `json:"leads"`
}

// HandleNodes returns every node this process knows about. The optional
// ?state= query filters on ACTIVE or INACTIVE.
func HandleNodes(view ClusterView, members MembershipView, leaders LeadershipControl) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := cluster.NodeState(strings.ToUpper(c.Query("state")))
		if filter != "" && filter != cluster.StateActive && filter != cluster.StateInactive {
			c.JSON(http.StatusBadRequest, errorResponse("state must be ACTIVE or INACTIVE"))
			return
		}

		leads := leadsByNode(leaders)
		nodes := collectNodes(view, members, leads)

		out := nodes[:0]
		for _, n := range nodes {
			if filter == "" || n.State == filter {
				out = append(out, n)
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"data":   out,
			"count":  len(out),
		})
	}
}

// HandleNodeByID returns a specific node by ID
func HandleNodeByID(view ClusterView, members MembershipView, leaders LeadershipControl) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := cluster.NodeID(c.Param("id"))

		for _, n := range collectNodes(view, members, leadsByNode(leaders)) {
			if n.ID == id {
				c.JSON(http.StatusOK, gin.H{
					"status": "success",
					"data":   n,
				})
				return
			}
		}

		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": "Node not found",
			"nodeId":  id,
		})
	}
}

// collectNodes builds the merged node list sorted by id, local node first
func collectNodes(view ClusterView, members MembershipView, leads map[cluster.NodeID][]string) []NodeResponse {
	local := view.LocalNode()
	out := []NodeResponse{{
		ID:        local.ID,
		Address:   local.Address(),
		State:     cluster.StateActive,
		Connected: true,
		Local:     true,
		LastSeen:  time.Now(),
		Leads:     nonNil(leads[local.ID]),
	}}

	remote := make([]NodeResponse, 0)
	for _, node := range view.Nodes() {
		n := NodeResponse{
			ID:        node.ID,
			Address:   node.Address(),
			State:     node.State,
			Connected: view.HasStream(node.ID),
			Leads:     nonNil(leads[node.ID]),
		}
		if members != nil {
			if m, ok := members.Get(node.ID); ok {
				n.LastSeen = m.LastSeen
				n.Departed = m.Departed
			}
		}
		remote = append(remote, n)
	}
	sort.Slice(remote, func(i, j int) bool { return remote[i].ID < remote[j].ID })

	return append(out, remote...)
}

func leadsByNode(leaders LeadershipControl) map[cluster.NodeID][]string {
	out := make(map[cluster.NodeID][]string)
	if leaders == nil {
		return out
	}
	for path, lead := range leaders.LeaderBoard() {
		out[lead.Leader] = append(out[lead.Leader], path)
	}
	for _, paths := range out {
		sort.Strings(paths)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
