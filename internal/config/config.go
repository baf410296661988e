// Package config loads the service configuration from YAML. Every section
// has working defaults so an empty file boots a usable single-node setup
// with file-backed state and no journal.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"quantmind/internal/engine"
	"quantmind/internal/journal"
	"quantmind/internal/model"
)

// Config is the root configuration document.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	HTTP    HTTPConfig    `yaml:"http"`
	State   StateConfig   `yaml:"state"`
	Journal JournalConfig `yaml:"journal"`
	Engine  engine.Config `yaml:"engine"`
}

// LogConfig controls the zerolog setup.
type LogConfig struct {
	// Level is a zerolog level name (trace, debug, info, warn, error).
	Level string `yaml:"level"`

	// Pretty switches to console output for local runs.
	Pretty bool `yaml:"pretty"`
}

// HTTPConfig controls the read-only API server.
type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// RateRPS and RateBurst bound request admission per client.
	RateRPS   float64 `yaml:"rate_rps"`
	RateBurst int     `yaml:"rate_burst"`
}

// StateConfig selects the snapshot backend.
type StateConfig struct {
	// Backend is "file" or "redis".
	Backend string `yaml:"backend"`

	// Dir is the snapshot directory for the file backend.
	Dir string `yaml:"dir"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig connects the redis state backend.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// JournalConfig controls the optional PostgreSQL audit journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`

	journal.Config `yaml:",inline"`
}

// Default returns the full default configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		HTTP: HTTPConfig{
			Addr:         ":8090",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			RateRPS:      20,
			RateBurst:    40,
		},
		State: StateConfig{
			Backend: "file",
			Dir:     "data/state",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "quantmind:state",
			},
		},
		Journal: JournalConfig{Config: journal.DefaultConfig()},
		Engine:  engine.DefaultConfig(),
	}
}

// Load reads YAML from path over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the process cannot run with.
func (c Config) Validate() error {
	switch c.State.Backend {
	case "file":
		if c.State.Dir == "" {
			return fmt.Errorf("%w: file state backend needs a directory", model.ErrValidation)
		}
	case "redis":
		if c.State.Redis.Addr == "" {
			return fmt.Errorf("%w: redis state backend needs an address", model.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown state backend %q", model.ErrValidation, c.State.Backend)
	}

	if c.Journal.Enabled && c.Journal.DSN == "" {
		return fmt.Errorf("%w: journal enabled without a dsn", model.ErrValidation)
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("%w: http addr empty", model.ErrValidation)
	}
	return c.Engine.Validate()
}
