package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Backend != BackendPebble {
		t.Fatalf("default backend %q", cfg.Backend)
	}
	if cfg.MaxBacklog != 1000 || cfg.DefaultLimit != 50 {
		t.Fatalf("default limits %d/%d", cfg.MaxBacklog, cfg.DefaultLimit)
	}
	if !cfg.SkipEmpty {
		t.Fatalf("skipEmpty should default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default must validate: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "logwindow.json")
	data := []byte(`{"backend":"redis","maxBacklog":200,"skipEmpty":false,"redis":{"addr":"cache:6379","db":2},"ignore":[{"kind":"text","value":"favicon"}]}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendRedis || cfg.Redis.Addr != "cache:6379" || cfg.Redis.DB != 2 {
		t.Fatalf("redis settings not loaded: %+v", cfg)
	}
	if cfg.MaxBacklog != 200 || cfg.SkipEmpty {
		t.Fatalf("store settings not loaded: %+v", cfg)
	}
	if cfg.DefaultLimit != 50 {
		t.Fatalf("unset fields keep defaults")
	}
	if len(cfg.Ignore) != 1 || cfg.Ignore[0].Value != "favicon" {
		t.Fatalf("ignore rules: %+v", cfg.Ignore)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "logwindow.yaml")
	data := []byte(`
maxBacklog: 10
keyPrefix: "app:"
log:
  level: debug
  format: json
ignore:
  - kind: pattern
    value: "^Rack::Timeout"
  - kind: fields
    value: severity < 2
`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxBacklog != 10 || cfg.KeyPrefix != "app:" {
		t.Fatalf("yaml fields: %+v", cfg)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("log section: %+v", cfg.Log)
	}
	if len(cfg.Ignore) != 2 || cfg.Ignore[1].Kind != "fields" {
		t.Fatalf("ignore rules: %+v", cfg.Ignore)
	}
	if cfg.Backend != BackendPebble {
		t.Fatalf("backend default lost")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"bad.json":     `{"backend":"memcached"}`,
		"zero.json":    `{"maxBacklog":0}`,
		"broken.yaml":  "maxBacklog: [",
		"noaddr.json":  `{"backend":"redis","redis":{"addr":""}}`,
		"garbage.json": `{`,
	}
	for name, body := range cases {
		file := filepath.Join(dir, name)
		if err := os.WriteFile(file, []byte(body), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(file); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxBacklog != Default().MaxBacklog {
		t.Fatalf("expected defaults")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("LOGWINDOW_BACKEND", "REDIS")
	t.Setenv("LOGWINDOW_MAX_BACKLOG", "25")
	t.Setenv("LOGWINDOW_SKIP_EMPTY", "false")
	t.Setenv("LOGWINDOW_REDIS_ADDR", "redis:6380")
	t.Setenv("LOGWINDOW_KEY_PREFIX", "")
	t.Setenv("LOGWINDOW_IGNORE_TEXT", "favicon, healthz")
	t.Setenv("LOGWINDOW_LOG_LEVEL", "warn")
	t.Setenv("LOGWINDOW_DEFAULT_LIMIT", "not-a-number")
	FromEnv(&cfg)
	if cfg.Backend != BackendRedis {
		t.Fatalf("env override backend")
	}
	if cfg.MaxBacklog != 25 || cfg.SkipEmpty {
		t.Fatalf("env override store settings")
	}
	if cfg.Redis.Addr != "redis:6380" {
		t.Fatalf("env override redis addr")
	}
	if cfg.DefaultLimit != 50 {
		t.Fatalf("unparsable values are ignored")
	}
	if len(cfg.Ignore) != 2 || cfg.Ignore[1].Value != "healthz" {
		t.Fatalf("ignore rules from env: %+v", cfg.Ignore)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("env override log level")
	}
}
