package validate

import (
	"strings"
	"testing"
)

// TestNodeNameFormat tests node id rules
func TestNodeNameFormat(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError bool
	}{
		{"generated name", "cubic-vertex-3fa2", false},
		{"underscores", "rack_2_node", false},
		{"single character", "a", false},
		{"digits only", "42", false},
		{"empty", "", true},
		{"uppercase", "Node-A", true},
		{"dot", "node.a", true},
		{"space", "node a", true},
		{"at sign", "node@10.0.0.1", true},
		{"leading hyphen", "-node", true},
		{"trailing underscore", "node_", true},
		{"unicode", "nöde", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NodeNameFormat(tt.input)
			if (err != nil) != tt.expectError {
				t.Errorf("NodeNameFormat(%q) error = %v, expectError %v", tt.input, err, tt.expectError)
			}
		})
	}
}

// TestNodeNameFormatErrorMessages tests each rule reports its own message
func TestNodeNameFormatErrorMessages(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "cannot be empty"},
		{"Node", "must contain only lowercase letters"},
		{"node-", "cannot start or end with"},
	}

	for _, tt := range tests {
		err := NodeNameFormat(tt.input)
		if err == nil {
			t.Fatalf("NodeNameFormat(%q) error = nil", tt.input)
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("NodeNameFormat(%q) error = %q, want it to contain %q", tt.input, err, tt.want)
		}
	}
}
