// Package handlers provides HTTP request handlers for the lattice API.
//
// This file implements the leadership endpoints. Paths may contain slashes
// ("devices/of:1"), so the single-path routes use a catch-all parameter.
//
// ENDPOINTS:
//   - GET /leadership: the leader board plus every known candidacy
//   - GET /leadership/*path: the known leader and candidates of one path
//   - POST /leadership/*path: run for leadership of a path
//   - DELETE /leadership/*path: withdraw from a path
//   - POST /stepdown/*path: give up a held path and contest it again
package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/concave-dev/lattice/internal/cluster"
	"github.com/concave-dev/lattice/internal/leadership"
	"github.com/gin-gonic/gin"
)

// LeaderEntry is one row of the leader board
type LeaderEntry struct {
	Path       string                 `json:"path"`
	Leader     cluster.NodeID         `json:"leader,omitempty"`
	Term       uint64                 `json:"term"`
	Elected    *time.Time             `json:"elected,omitempty"`
	Renewed    *time.Time             `json:"renewed,omitempty"`
	Local      bool                   `json:"local"`
	Contesting bool                   `json:"contesting"`
	Candidates []leadership.Candidate `json:"candidates,omitempty"`
}

// HandleLeaderBoard lists every known leadership and every path with a known
// candidate. The optional ?leader= query filters on the leader id.
func HandleLeaderBoard(leaders LeadershipControl) gin.HandlerFunc {
	return func(c *gin.Context) {
		local := leaders.LocalNode()
		filter := cluster.NodeID(c.Query("leader"))

		entries := make(map[string]LeaderEntry)
		for path, lead := range leaders.LeaderBoard() {
			entries[path] = toEntry(lead, local)
		}
		for _, path := range leaders.Contests() {
			e, ok := entries[path]
			if !ok {
				e = LeaderEntry{Path: path}
			}
			e.Contesting = true
			entries[path] = e
		}
		for path, candidates := range leaders.CandidateBoard() {
			e, ok := entries[path]
			if !ok {
				e = LeaderEntry{Path: path}
			}
			e.Candidates = candidates
			entries[path] = e
		}

		out := make([]LeaderEntry, 0, len(entries))
		for _, e := range entries {
			if filter == "" || e.Leader == filter {
				out = append(out, e)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"data":   out,
			"count":  len(out),
		})
	}
}

// HandleLeaderByPath returns the known leader of one path
func HandleLeaderByPath(leaders LeadershipControl) gin.HandlerFunc {
	return func(c *gin.Context) {
		path, ok := pathParam(c)
		if !ok {
			return
		}

		lead, found := leaders.GetLeader(path)
		contesting := leaders.IsContesting(path)
		candidates := leaders.Candidates(path)
		if !found && !contesting && len(candidates) == 0 {
			c.JSON(http.StatusNotFound, gin.H{
				"status":  "error",
				"message": "No known leader",
				"path":    path,
			})
			return
		}

		entry := LeaderEntry{Path: path}
		if found {
			entry = toEntry(lead, leaders.LocalNode())
		}
		entry.Contesting = contesting
		entry.Candidates = candidates

		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"data":   entry,
		})
	}
}

// HandleRunForLeadership starts contesting a path. The election itself is
// asynchronous, so success means the candidacy was accepted.
func HandleRunForLeadership(leaders LeadershipControl) gin.HandlerFunc {
	return func(c *gin.Context) {
		path, ok := pathParam(c)
		if !ok {
			return
		}

		if err := leaders.RunForLeadership(path); err != nil {
			switch {
			case errors.Is(err, leadership.ErrInvalidPath):
				c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			case errors.Is(err, leadership.ErrStopped):
				c.JSON(http.StatusServiceUnavailable, errorResponse(err.Error()))
			default:
				c.JSON(http.StatusInternalServerError, errorResponse(err.Error()))
			}
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"status": "success",
			"data": gin.H{
				"path":       path,
				"contesting": true,
			},
		})
	}
}

// HandleWithdraw stops contesting a path, releasing it if held
func HandleWithdraw(leaders LeadershipControl) gin.HandlerFunc {
	return func(c *gin.Context) {
		path, ok := pathParam(c)
		if !ok {
			return
		}

		if !leaders.IsContesting(path) {
			c.JSON(http.StatusNotFound, gin.H{
				"status":  "error",
				"message": "Not contesting path",
				"path":    path,
			})
			return
		}

		// The candidacy is gone even when the unlock fails; the lease then
		// lapses on its own.
		if err := leaders.Withdraw(path); err != nil {
			c.JSON(http.StatusInternalServerError, errorResponse(err.Error()))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"data": gin.H{
				"path":       path,
				"contesting": false,
			},
		})
	}
}

// HandleStepdown gives up a path this node leads. The node stays a
// candidate and contests the path again.
func HandleStepdown(leaders LeadershipControl) gin.HandlerFunc {
	return func(c *gin.Context) {
		path, ok := pathParam(c)
		if !ok {
			return
		}

		if !leaders.IsContesting(path) {
			c.JSON(http.StatusNotFound, gin.H{
				"status":  "error",
				"message": "Not contesting path",
				"path":    path,
			})
			return
		}
		if !leaders.Stepdown(path) {
			c.JSON(http.StatusConflict, gin.H{
				"status":  "error",
				"message": "Not the leader of path",
				"path":    path,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"data": gin.H{
				"path":       path,
				"leader":     false,
				"contesting": true,
			},
		})
	}
}

// pathParam extracts the catch-all path, writing a 400 when it is empty
func pathParam(c *gin.Context) (string, bool) {
	path := strings.Trim(c.Param("path"), "/")
	if path == "" {
		c.JSON(http.StatusBadRequest, errorResponse("leadership path required"))
		return "", false
	}
	return path, true
}

func toEntry(lead leadership.Leadership, local cluster.NodeID) LeaderEntry {
	elected, renewed := lead.Elected, lead.Renewed
	return LeaderEntry{
		Path:    lead.Path,
		Leader:  lead.Leader,
		Term:    lead.Term,
		Elected: &elected,
		Renewed: &renewed,
		Local:   lead.Leader == local,
	}
}
