package wire

import "testing"

func TestDecodeHello(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		expectError bool
		expected    Identity
	}{
		{
			name:     "simple",
			payload:  "node-a:10.0.0.1:4740",
			expected: Identity{ID: "node-a", IP: "10.0.0.1", Port: 4740},
		},
		{
			name:     "id containing colons",
			payload:  "of:0000000000000001:192.168.1.5:9876",
			expected: Identity{ID: "of:0000000000000001", IP: "192.168.1.5", Port: 9876},
		},
		{
			name:     "ipv6 loopback",
			payload:  "node-a:[::1]:4740",
			expected: Identity{ID: "node-a", IP: "::1", Port: 4740},
		},
		{
			name:     "ipv6 with colon id",
			payload:  "of:1:[fe80::1:2]:9876",
			expected: Identity{ID: "of:1", IP: "fe80::1:2", Port: 9876},
		},
		{name: "empty", payload: "", expectError: true},
		{name: "empty brackets", payload: "node-a:[]:4740", expectError: true},
		{name: "brackets without id", payload: "[::1]:4740", expectError: true},
		{name: "missing port", payload: "node-a:10.0.0.1", expectError: true},
		{name: "bad port", payload: "node-a:10.0.0.1:http", expectError: true},
		{name: "port out of range", payload: "node-a:10.0.0.1:70000", expectError: true},
		{name: "missing id", payload: ":10.0.0.1:4740", expectError: true},
		{name: "empty ip", payload: "node-a::4740", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeHello([]byte(tt.payload))
			if tt.expectError {
				if err == nil {
					t.Errorf("DecodeHello(%q) error = nil, want error", tt.payload)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeHello(%q) error = %v", tt.payload, err)
			}
			if got != tt.expected {
				t.Errorf("DecodeHello(%q) = %+v, want %+v", tt.payload, got, tt.expected)
			}
		})
	}
}

func TestEncodeHello_RoundTrip(t *testing.T) {
	id := Identity{ID: "quantum-nebula", IP: "127.0.0.1", Port: 4741}
	msg := EncodeHello(id)
	if msg.Subject != Hello {
		t.Errorf("EncodeHello() subject = %v, want %v", msg.Subject, Hello)
	}
	got, err := DecodeHello(msg.Payload)
	if err != nil {
		t.Fatalf("DecodeHello() error = %v", err)
	}
	if got != id {
		t.Errorf("DecodeHello(EncodeHello()) = %+v, want %+v", got, id)
	}
	if got.Address() != "127.0.0.1:4741" {
		t.Errorf("Address() = %q, want %q", got.Address(), "127.0.0.1:4741")
	}
}

// TestEncodeHello_IPv6 tests an IPv6 identity survives the round trip and
// yields a dialable address
func TestEncodeHello_IPv6(t *testing.T) {
	id := Identity{ID: "node-a", IP: "::1", Port: 4740}
	msg := EncodeHello(id)
	if string(msg.Payload) != "node-a:[::1]:4740" {
		t.Errorf("EncodeHello() payload = %q, want %q", msg.Payload, "node-a:[::1]:4740")
	}
	got, err := DecodeHello(msg.Payload)
	if err != nil {
		t.Fatalf("DecodeHello() error = %v", err)
	}
	if got != id {
		t.Errorf("DecodeHello(EncodeHello()) = %+v, want %+v", got, id)
	}
	if got.Address() != "[::1]:4740" {
		t.Errorf("Address() = %q, want %q", got.Address(), "[::1]:4740")
	}
}
