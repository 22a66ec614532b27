package config

import (
	"strings"
	"testing"
)

func resetGlobals() {
	Global.APIAddr = DefaultAPIAddr
	Global.Output = "table"
	Global.Timeout = DefaultTimeout
	Node.StateFilter = ""
	Stream.Outbound = ""
}

// TestValidateAPIAddress tests API address parsing for client connections
func TestValidateAPIAddress(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr string
	}{
		{"loopback", "127.0.0.1:8008", ""},
		{"remote", "10.0.0.5:9000", ""},
		{"unroutable", "0.0.0.0:8008", "unroutable"},
		{"zero port", "127.0.0.1:0", "invalid API address"},
		{"missing port", "127.0.0.1", "invalid API address"},
		{"hostname", "localhost:8008", "invalid API address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetGlobals()
			Global.APIAddr = tt.addr
			err := ValidateAPIAddress()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateAPIAddress() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateAPIAddress() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

// TestValidateOutputFormat tests supported output formats
func TestValidateOutputFormat(t *testing.T) {
	for _, output := range []string{"table", "json"} {
		resetGlobals()
		Global.Output = output
		if err := ValidateOutputFormat(); err != nil {
			t.Errorf("ValidateOutputFormat(%q) error = %v", output, err)
		}
	}

	Global.Output = "yaml"
	if err := ValidateOutputFormat(); err == nil {
		t.Error("ValidateOutputFormat(yaml) should return error")
	}
}

// TestValidateFilters tests filter normalization
func TestValidateFilters(t *testing.T) {
	tests := []struct {
		name         string
		state        string
		outbound     string
		wantState    string
		wantOutbound string
		wantErr      bool
	}{
		{"empty", "", "", "", "", false},
		{"lower state", "active", "", "ACTIVE", "", false},
		{"inactive", "Inactive", "", "INACTIVE", "", false},
		{"bad state", "dead", "", "", "", true},
		{"out alias", "", "out", "", "true", false},
		{"in alias", "", "IN", "", "false", false},
		{"bad direction", "", "sideways", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetGlobals()
			Node.StateFilter = tt.state
			Stream.Outbound = tt.outbound

			err := ValidateFilters()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateFilters() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if Node.StateFilter != tt.wantState {
				t.Errorf("Node.StateFilter = %q, want %q", Node.StateFilter, tt.wantState)
			}
			if Stream.Outbound != tt.wantOutbound {
				t.Errorf("Stream.Outbound = %q, want %q", Stream.Outbound, tt.wantOutbound)
			}
		})
	}
}

// TestValidateTimeout tests the minimum timeout
func TestValidateTimeout(t *testing.T) {
	resetGlobals()
	Global.Timeout = 0
	if err := ValidateTimeout(); err == nil {
		t.Error("ValidateTimeout() with 0 should return error")
	}
	Global.Timeout = 3
	if err := ValidateTimeout(); err != nil {
		t.Errorf("ValidateTimeout() with 3 error = %v", err)
	}
}
