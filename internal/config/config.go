package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Panel     PanelConfig     `yaml:"panel"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PanelConfig configures the terminal control panel.
type PanelConfig struct {
	BridgeURL        string        `yaml:"bridge_url"`
	Token            string        `yaml:"token"`
	SubscribeTimeout time.Duration `yaml:"subscribe_timeout"`
	// BufferNotifications holds notifications that arrive while the
	// lifecycle streams are still being established and replays them once
	// all three are live.
	BufferNotifications bool `yaml:"buffer_notifications"`
}

type BridgeConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Token          string   `yaml:"token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxConnections int      `yaml:"max_connections"`
}

// SimulatorConfig drives the stand-in device server behind the bridge.
type SimulatorConfig struct {
	ListenHost    string        `yaml:"listen_host"`
	StartingPort  int           `yaml:"starting_port"`
	MaxClients    int           `yaml:"max_clients"`
	EventInterval time.Duration `yaml:"event_interval"`
	NameDelay     time.Duration `yaml:"name_delay"`
	DuplicateRate float64       `yaml:"duplicate_rate"`
	DropRate      float64       `yaml:"drop_rate"`
	Seed          int64         `yaml:"seed"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	// File is where the panel writes its log; the terminal belongs to the UI.
	File string `yaml:"file"`
}

func defaultConfig() *Config {
	return &Config{
		Panel: PanelConfig{
			BridgeURL:           "ws://127.0.0.1:7880/ws",
			SubscribeTimeout:    5 * time.Second,
			BufferNotifications: true,
		},
		Bridge: BridgeConfig{
			Host: "127.0.0.1",
			Port: 7880,
		},
		Simulator: SimulatorConfig{
			ListenHost:    "0.0.0.0",
			StartingPort:  7878,
			MaxClients:    10,
			EventInterval: 2 * time.Second,
			NameDelay:     1500 * time.Millisecond,
			DuplicateRate: 0.1,
			DropRate:      0.3,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "panel.log",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads a YAML file over the defaults. A missing file yields the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the binaries cannot run with.
func (c *Config) Validate() error {
	if c.Panel.BridgeURL == "" {
		return errors.New("panel.bridge_url must be set")
	}
	if c.Panel.SubscribeTimeout <= 0 {
		return errors.New("panel.subscribe_timeout must be positive")
	}
	if c.Bridge.Port <= 0 || c.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port %d out of range", c.Bridge.Port)
	}
	if c.Bridge.MaxConnections < 0 {
		return errors.New("bridge.max_connections must not be negative")
	}
	if c.Simulator.StartingPort <= 0 || c.Simulator.StartingPort > 65535 {
		return fmt.Errorf("simulator.starting_port %d out of range", c.Simulator.StartingPort)
	}
	if c.Simulator.MaxClients <= 0 {
		return errors.New("simulator.max_clients must be positive")
	}
	if c.Simulator.EventInterval <= 0 {
		return errors.New("simulator.event_interval must be positive")
	}
	if c.Simulator.NameDelay < 0 {
		return errors.New("simulator.name_delay must not be negative")
	}
	for name, rate := range map[string]float64{
		"simulator.duplicate_rate": c.Simulator.DuplicateRate,
		"simulator.drop_rate":      c.Simulator.DropRate,
	} {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("%s %v outside [0,1]", name, rate)
		}
	}
	return nil
}

// BridgeAddr is the host:port the bridge listens on.
func (c *Config) BridgeAddr() string {
	return fmt.Sprintf("%s:%d", c.Bridge.Host, c.Bridge.Port)
}
