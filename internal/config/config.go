package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	logpkg "github.com/rzbill/logwindow/pkg/log"
)

// Backend names accepted by Config.Backend.
const (
	BackendPebble = "pebble"
	BackendRedis  = "redis"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	Backend      string        `json:"backend" yaml:"backend"`
	MaxBacklog   int           `json:"maxBacklog" yaml:"maxBacklog"`
	SkipEmpty    bool          `json:"skipEmpty" yaml:"skipEmpty"`
	KeyPrefix    string        `json:"keyPrefix" yaml:"keyPrefix"`
	DefaultLimit int           `json:"defaultLimit" yaml:"defaultLimit"`
	Redis        RedisConfig   `json:"redis" yaml:"redis"`
	Ignore       []IgnoreRule  `json:"ignore" yaml:"ignore"`
	Log          logpkg.Config `json:"log" yaml:"log"`

	// ReportLogLevel forwards the server's own log entries at or above this
	// level into the store. Empty disables forwarding.
	ReportLogLevel string `json:"reportLogLevel" yaml:"reportLogLevel"`
}

// RedisConfig addresses the Redis backend.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	PoolSize int    `json:"poolSize" yaml:"poolSize"`
}

// IgnoreRule drops reported messages matching Value. Kind is "text",
// "pattern" or "fields".
type IgnoreRule struct {
	Kind  string `json:"kind" yaml:"kind"`
	Value string `json:"value" yaml:"value"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Backend:      BackendPebble,
		MaxBacklog:   1000,
		SkipEmpty:    true,
		DefaultLimit: 50,
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
		},
		Log: logpkg.Config{
			Level:  "info",
			Format: "text",
		},
		ReportLogLevel: "error",
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the runtime cannot start with.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendPebble:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis backend requires redis.addr")
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.MaxBacklog < 1 {
		return fmt.Errorf("config: maxBacklog must be positive, got %d", c.MaxBacklog)
	}
	if c.DefaultLimit < 1 {
		return fmt.Errorf("config: defaultLimit must be positive, got %d", c.DefaultLimit)
	}
	return nil
}
