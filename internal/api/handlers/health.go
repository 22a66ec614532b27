package handlers

import (
	"net/http"
	"time"

	"github.com/concave-dev/lattice/internal/cluster"
	"github.com/gin-gonic/gin"
)

// Represents the health check response
type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version"`
	Uptime    string         `json:"uptime"`
	Node      cluster.NodeID `json:"node"`
	Peers     int            `json:"peers"`
}

// HandleHealth returns the health status of the local node. The node is
// reported "degraded" while it knows of peers but has no stream to any of them.
func HandleHealth(version string, view ClusterView) gin.HandlerFunc {
	return func(c *gin.Context) {
		local := view.LocalNode()
		nodes := view.Nodes()

		connected := 0
		for _, node := range nodes {
			if view.HasStream(node.ID) {
				connected++
			}
		}

		status := "healthy"
		if len(nodes) > 0 && connected == 0 {
			status = "degraded"
		}

		response := HealthResponse{
			Status:    status,
			Timestamp: time.Now(),
			Version:   version,
			Uptime:    time.Since(view.StartTime()).String(),
			Node:      local.ID,
			Peers:     connected,
		}

		c.JSON(http.StatusOK, response)
	}
}
