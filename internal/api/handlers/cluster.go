// Package handlers provides HTTP request handlers for the lattice API.
//
// This file implements the cluster-wide views: the stream table held by the
// IO workers and a summary of the local process.
//
// ENDPOINTS:
//   - GET /cluster/streams: open streams, bound and unbound
//   - GET /cluster/info: local node, worker loads, counts, subjects, uptime
package handlers

import (
	"net/http"
	"time"

	"github.com/concave-dev/lattice/internal/cluster"
	"github.com/gin-gonic/gin"
)

// ClusterInfo summarizes the local process
type ClusterInfo struct {
	Version     string                 `json:"version"`
	LocalNode   cluster.ControllerNode `json:"localNode"`
	Status      ClusterStatus          `json:"status"`
	WorkerLoads []int                  `json:"workerLoads"`
	Subjects    []string               `json:"subjects"`
	OwnedPaths  []string               `json:"ownedPaths"`
	Contests    []string               `json:"contests"`
	Uptime      time.Duration          `json:"uptime"`
}

// ClusterStatus counts nodes and streams
type ClusterStatus struct {
	TotalNodes   int                       `json:"totalNodes"`
	NodesByState map[cluster.NodeState]int `json:"nodesByState"`
	Streams      int                       `json:"streams"`
	BoundStreams int                       `json:"boundStreams"`
	KnownLeaders int                       `json:"knownLeaders"`
}

// HandleStreams returns every open stream across all IO workers
func HandleStreams(view ClusterView) gin.HandlerFunc {
	return func(c *gin.Context) {
		streams := view.Streams()
		if outbound := c.Query("outbound"); outbound != "" {
			want := outbound == "true"
			filtered := streams[:0]
			for _, s := range streams {
				if s.Outbound == want {
					filtered = append(filtered, s)
				}
			}
			streams = filtered
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"data":   streams,
			"count":  len(streams),
		})
	}
}

// HandleClusterInfo returns a summary of the local process
func HandleClusterInfo(view ClusterView, leaders LeadershipControl, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		nodes := view.Nodes()
		byState := map[cluster.NodeState]int{
			cluster.StateActive:   1, // the local node
			cluster.StateInactive: 0,
		}
		for _, n := range nodes {
			byState[n.State]++
		}

		streams := view.Streams()
		bound := 0
		for _, s := range streams {
			if s.Bound {
				bound++
			}
		}

		subjects := make([]string, 0)
		for _, s := range view.Registry().Subjects() {
			subjects = append(subjects, s.String())
		}

		info := ClusterInfo{
			Version:   version,
			LocalNode: view.LocalNode(),
			Status: ClusterStatus{
				TotalNodes:   len(nodes) + 1,
				NodesByState: byState,
				Streams:      len(streams),
				BoundStreams: bound,
			},
			WorkerLoads: view.WorkerLoads(),
			Subjects:    subjects,
			OwnedPaths:  []string{},
			Contests:    []string{},
			Uptime:      time.Since(view.StartTime()),
		}
		if leaders != nil {
			info.Status.KnownLeaders = len(leaders.LeaderBoard())
			info.OwnedPaths = nonNil(leaders.OwnedPaths())
			info.Contests = nonNil(leaders.Contests())
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"data":   info,
		})
	}
}
