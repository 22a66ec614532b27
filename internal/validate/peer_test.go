package validate

import "testing"

// TestParsePeer tests seed node parsing in id@host:port form
func TestParsePeer(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		expectError  bool
		expectedID   string
		expectedAddr string
	}{
		{
			name:         "valid peer",
			input:        "cosmic-dragon@10.0.0.2:4740",
			expectedID:   "cosmic-dragon",
			expectedAddr: "10.0.0.2:4740",
		},
		{
			name:         "loopback peer",
			input:        "node_1@127.0.0.1:1",
			expectedID:   "node_1",
			expectedAddr: "127.0.0.1:1",
		},
		{name: "missing id", input: "@10.0.0.2:4740", expectError: true},
		{name: "missing address", input: "node-a@", expectError: true},
		{name: "no separator", input: "10.0.0.2:4740", expectError: true},
		{name: "uppercase id", input: "Node@10.0.0.2:4740", expectError: true},
		{name: "unroutable host", input: "node-a@0.0.0.0:4740", expectError: true},
		{name: "port zero", input: "node-a@10.0.0.2:0", expectError: true},
		{name: "hostname instead of ip", input: "node-a@example.com:4740", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peer, err := ParsePeer(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("ParsePeer(%q) error = nil, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePeer(%q) error = %v", tt.input, err)
			}
			if peer.NodeID != tt.expectedID {
				t.Errorf("ParsePeer(%q).NodeID = %q, want %q", tt.input, peer.NodeID, tt.expectedID)
			}
			if peer.Address.String() != tt.expectedAddr {
				t.Errorf("ParsePeer(%q).Address = %q, want %q", tt.input, peer.Address.String(), tt.expectedAddr)
			}
			if peer.String() != tt.input {
				t.Errorf("String() = %q, want %q", peer.String(), tt.input)
			}
		})
	}
}

// TestParsePeerList tests duplicate detection across seeds
func TestParsePeerList(t *testing.T) {
	peers, err := ParsePeerList([]string{"a@10.0.0.1:4740", "b@10.0.0.2:4740"})
	if err != nil {
		t.Fatalf("ParsePeerList() error = %v", err)
	}
	if len(peers) != 2 {
		t.Errorf("len(ParsePeerList()) = %d, want 2", len(peers))
	}

	if _, err := ParsePeerList([]string{"a@10.0.0.1:4740", "a@10.0.0.2:4740"}); err == nil {
		t.Error("ParsePeerList() with duplicate ids error = nil, want error")
	}

	peers, err = ParsePeerList(nil)
	if err != nil || len(peers) != 0 {
		t.Errorf("ParsePeerList(nil) = %v, %v; want empty, nil", peers, err)
	}
}

// TestValidateNonNegativeDuration tests zero and negative durations
func TestValidateNonNegativeDuration(t *testing.T) {
	if err := ValidateNonNegativeDuration(0, "idle timeout"); err != nil {
		t.Errorf("ValidateNonNegativeDuration(0) error = %v, want nil", err)
	}
	if err := ValidateNonNegativeDuration(-1, "idle timeout"); err == nil {
		t.Error("ValidateNonNegativeDuration(-1) error = nil, want error")
	}
	if err := ValidatePositiveCount(0, "workers"); err == nil {
		t.Error("ValidatePositiveCount(0) error = nil, want error")
	}
}
