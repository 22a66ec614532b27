package handlers

import (
	"net/http"
	"strings"
	"testing"
)

// TestHandleMetrics tests both metric sets and process metrics are exported
func TestHandleMetrics(t *testing.T) {
	f := newFixture(t)

	w := serve(t, "GET", "/metrics", "/metrics", HandleMetrics(f.manager, f.leaders))
	if w.Code != http.StatusOK {
		t.Fatalf("HandleMetrics() status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	for _, want := range []string{
		"lattice_cluster_streams",
		"lattice_leadership_owned_paths",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("HandleMetrics() output missing %q", want)
		}
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
}
