package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/concave-dev/lattice/internal/leadership"
	"github.com/gin-gonic/gin"
)

// TestLeadershipHandlers tests run, lookup, listing and withdrawal of a
// slash-separated path
func TestLeadershipHandlers(t *testing.T) {
	f := newFixture(t)
	const path = "devices/of:1"

	w := serve(t, "POST", "/leadership/*path", "/leadership/"+path, HandleRunForLeadership(f.leaders))
	if w.Code != http.StatusAccepted {
		t.Fatalf("HandleRunForLeadership() status = %d, want %d", w.Code, http.StatusAccepted)
	}
	waitFor(t, 2*time.Second, "election", func() bool {
		lead, ok := f.leaders.GetLeader(path)
		return ok && lead.Leader == "node-a"
	})

	w = serve(t, "GET", "/leadership/*path", "/leadership/"+path, HandleLeaderByPath(f.leaders))
	if w.Code != http.StatusOK {
		t.Fatalf("HandleLeaderByPath() status = %d, want %d", w.Code, http.StatusOK)
	}
	entry := decode[LeaderEntry](t, w).Data
	if entry.Path != path || entry.Leader != "node-a" || !entry.Local || !entry.Contesting || entry.Term != 1 {
		t.Errorf("HandleLeaderByPath() = %+v, want local leader of %s at term 1", entry, path)
	}

	f.leaders.Observe(leadership.Event{Type: leadership.LeaderElected, Path: "devices/of:2", Node: "node-b", Term: 4})
	env := decode[[]LeaderEntry](t, serve(t, "GET", "/leadership", "/leadership", HandleLeaderBoard(f.leaders)))
	if env.Count != 2 {
		t.Fatalf("HandleLeaderBoard() count = %d, want 2", env.Count)
	}
	if env.Data[1].Leader != "node-b" || env.Data[1].Local || env.Data[1].Contesting {
		t.Errorf("HandleLeaderBoard() data[1] = %+v, want remote node-b entry", env.Data[1])
	}

	env = decode[[]LeaderEntry](t, serve(t, "GET", "/leadership", "/leadership?leader=node-b", HandleLeaderBoard(f.leaders)))
	if env.Count != 1 || env.Data[0].Path != "devices/of:2" {
		t.Errorf("HandleLeaderBoard(leader=node-b) = %+v, want devices/of:2 only", env.Data)
	}

	w = serve(t, "DELETE", "/leadership/*path", "/leadership/"+path, HandleWithdraw(f.leaders))
	if w.Code != http.StatusOK {
		t.Fatalf("HandleWithdraw() status = %d, want %d", w.Code, http.StatusOK)
	}
	if _, held := f.locks.Holder(path); held {
		t.Error("lock still held after withdraw")
	}

	w = serve(t, "DELETE", "/leadership/*path", "/leadership/"+path, HandleWithdraw(f.leaders))
	if w.Code != http.StatusNotFound {
		t.Errorf("second HandleWithdraw() status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// TestLeadershipHandlers_Errors tests status codes for rejected requests
func TestLeadershipHandlers_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
	}{
		{"lookup unknown path", "GET", "/leadership/nowhere", http.StatusNotFound},
		{"run empty path", "POST", "/leadership/", http.StatusBadRequest},
		{"withdraw empty path", "DELETE", "/leadership/", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, tt.method, "/leadership/*path", tt.target, handlerFor(tt.method, f.leaders))
			if w.Code != tt.wantStatus {
				t.Errorf("%s %s status = %d, want %d", tt.method, tt.target, w.Code, tt.wantStatus)
			}
		})
	}

	f.leaders.Stop()
	w := serve(t, "POST", "/leadership/*path", "/leadership/late", HandleRunForLeadership(f.leaders))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("run on stopped manager status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func handlerFor(method string, leaders LeadershipControl) gin.HandlerFunc {
	switch method {
	case "POST":
		return HandleRunForLeadership(leaders)
	case "DELETE":
		return HandleWithdraw(leaders)
	default:
		return HandleLeaderByPath(leaders)
	}
}

// TestLeadershipHandlers_Stepdown tests stepping down keeps the candidacy
// and is refused for paths this node does not lead
func TestLeadershipHandlers_Stepdown(t *testing.T) {
	f := newFixture(t)
	const path = "devices/of:1"

	w := serve(t, "POST", "/stepdown/*path", "/stepdown/"+path, HandleStepdown(f.leaders))
	if w.Code != http.StatusNotFound {
		t.Errorf("HandleStepdown() on uncontested path status = %d, want %d", w.Code, http.StatusNotFound)
	}
	w = serve(t, "POST", "/stepdown/*path", "/stepdown/", HandleStepdown(f.leaders))
	if w.Code != http.StatusBadRequest {
		t.Errorf("HandleStepdown() on empty path status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	f.leaders.RunForLeadership(path)
	waitFor(t, 2*time.Second, "election", func() bool {
		return len(f.leaders.OwnedPaths()) == 1
	})

	w = serve(t, "POST", "/stepdown/*path", "/stepdown/"+path, HandleStepdown(f.leaders))
	if w.Code != http.StatusOK {
		t.Fatalf("HandleStepdown() status = %d, want %d", w.Code, http.StatusOK)
	}
	if _, held := f.locks.Holder(path); held {
		t.Error("lock still held after stepdown")
	}
	if !f.leaders.IsContesting(path) {
		t.Error("stepdown dropped the candidacy")
	}

	// The node waits half a term before contesting again
	w = serve(t, "POST", "/stepdown/*path", "/stepdown/"+path, HandleStepdown(f.leaders))
	if w.Code != http.StatusConflict {
		t.Errorf("second HandleStepdown() status = %d, want %d", w.Code, http.StatusConflict)
	}
}

// TestLeadershipHandlers_Candidates tests candidates appear on lookups and
// the board, including paths without a leader
func TestLeadershipHandlers_Candidates(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.leaders.Observe(leadership.Event{Type: leadership.CandidateJoined, Path: "jobs/compact", Node: "node-b", Time: now})
	f.leaders.Observe(leadership.Event{Type: leadership.CandidateJoined, Path: "jobs/compact", Node: "node-c", Time: now.Add(time.Second)})

	w := serve(t, "GET", "/leadership/*path", "/leadership/jobs/compact", HandleLeaderByPath(f.leaders))
	if w.Code != http.StatusOK {
		t.Fatalf("HandleLeaderByPath() status = %d, want %d", w.Code, http.StatusOK)
	}
	entry := decode[LeaderEntry](t, w).Data
	if entry.Leader != "" || entry.Contesting || len(entry.Candidates) != 2 || entry.Candidates[0].Node != "node-b" {
		t.Errorf("HandleLeaderByPath() = %+v, want leaderless entry with node-b then node-c", entry)
	}

	env := decode[[]LeaderEntry](t, serve(t, "GET", "/leadership", "/leadership", HandleLeaderBoard(f.leaders)))
	if env.Count != 1 || env.Data[0].Path != "jobs/compact" || len(env.Data[0].Candidates) != 2 {
		t.Errorf("HandleLeaderBoard() = %+v, want jobs/compact with two candidates", env.Data)
	}
}
