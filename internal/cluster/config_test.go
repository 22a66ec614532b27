package cluster

import (
	"net"
	"testing"
	"time"
)

// TestDefaultConfig tests that the defaults validate
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() error = %v, want nil", err)
	}
	if cfg.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want %d", cfg.Workers, DefaultWorkers)
	}
	if cfg.ReconnectInterval != DefaultReconnectInterval {
		t.Errorf("ReconnectInterval = %v, want %v", cfg.ReconnectInterval, DefaultReconnectInterval)
	}
}

// TestConfig_Validate tests individual field validation
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad bind address", func(c *Config) { c.BindAddr = "not-an-ip" }, true},
		{"bad bind port", func(c *Config) { c.BindPort = 70000 }, true},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"zero reconnect interval", func(c *Config) { c.ReconnectInterval = 0 }, true},
		{"negative initial delay", func(c *Config) { c.ReconnectInitialDelay = -time.Second }, true},
		{"zero initial delay", func(c *Config) { c.ReconnectInitialDelay = 0 }, false},
		{"zero dial timeout", func(c *Config) { c.DialTimeout = 0 }, true},
		{"negative dial rate", func(c *Config) { c.DialRate = -1 }, true},
		{"unlimited dial rate", func(c *Config) { c.DialRate = 0 }, false},
		{"negative idle timeout", func(c *Config) { c.IdleTimeout = -time.Second }, true},
		{"zero write queue", func(c *Config) { c.WriteQueueSize = 0 }, true},
		{"tiny max frame", func(c *Config) { c.MaxFrameSize = 8 }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "LOUD" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestConfig_ValidateWithListener tests that a pre-bound listener skips address checks
func TestConfig_ValidateWithListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()

	cfg := DefaultConfig()
	cfg.BindAddr = ""
	cfg.Listener = ln
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with listener error = %v, want nil", err)
	}

	if got := cfg.advertiseIP(ln); got != "127.0.0.1" {
		t.Errorf("advertiseIP() = %q, want %q", got, "127.0.0.1")
	}
}
