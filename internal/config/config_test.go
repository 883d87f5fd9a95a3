package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
panel:
  bridge_url: "ws://10.1.1.1:9000/ws"
  token: "secret"
  buffer_notifications: false
bridge:
  port: 9000
  allowed_origins:
    - "http://localhost:3000"
simulator:
  max_clients: 3
  event_interval: 500ms
  duplicate_rate: 0.5
logging:
  level: debug
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Panel.BridgeURL != "ws://10.1.1.1:9000/ws" {
		t.Errorf("Panel.BridgeURL = %q", cfg.Panel.BridgeURL)
	}
	if cfg.Panel.Token != "secret" {
		t.Errorf("Panel.Token = %q, want secret", cfg.Panel.Token)
	}
	if cfg.Panel.BufferNotifications {
		t.Error("Panel.BufferNotifications = true, want false")
	}
	if cfg.Bridge.Port != 9000 {
		t.Errorf("Bridge.Port = %d, want 9000", cfg.Bridge.Port)
	}
	if len(cfg.Bridge.AllowedOrigins) != 1 || cfg.Bridge.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("Bridge.AllowedOrigins = %v", cfg.Bridge.AllowedOrigins)
	}
	if cfg.Simulator.MaxClients != 3 {
		t.Errorf("Simulator.MaxClients = %d, want 3", cfg.Simulator.MaxClients)
	}
	if cfg.Simulator.EventInterval != 500*time.Millisecond {
		t.Errorf("Simulator.EventInterval = %v, want 500ms", cfg.Simulator.EventInterval)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}

	// Defaults should still be applied for unspecified fields.
	if cfg.Panel.SubscribeTimeout != 5*time.Second {
		t.Errorf("Panel.SubscribeTimeout = %v, want default 5s", cfg.Panel.SubscribeTimeout)
	}
	if cfg.Simulator.StartingPort != 7878 {
		t.Errorf("Simulator.StartingPort = %d, want default 7878", cfg.Simulator.StartingPort)
	}
	if cfg.Bridge.Host != "127.0.0.1" {
		t.Errorf("Bridge.Host = %q, want default", cfg.Bridge.Host)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Bridge.Port != 7880 {
		t.Errorf("Bridge.Port = %d, want 7880", cfg.Bridge.Port)
	}
	if !cfg.Panel.BufferNotifications {
		t.Error("buffering should default to on")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("panel: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad bridge port", func(c *Config) { c.Bridge.Port = 0 }, "bridge.port"},
		{"negative max conns", func(c *Config) { c.Bridge.MaxConnections = -1 }, "max_connections"},
		{"zero max clients", func(c *Config) { c.Simulator.MaxClients = 0 }, "max_clients"},
		{"zero interval", func(c *Config) { c.Simulator.EventInterval = 0 }, "event_interval"},
		{"rate above one", func(c *Config) { c.Simulator.DuplicateRate = 1.5 }, "duplicate_rate"},
		{"empty url", func(c *Config) { c.Panel.BridgeURL = "" }, "bridge_url"},
		{"zero subscribe timeout", func(c *Config) { c.Panel.SubscribeTimeout = 0 }, "subscribe_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestBridgeAddr(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.BridgeAddr(); got != "127.0.0.1:7880" {
		t.Errorf("BridgeAddr() = %q", got)
	}
}
