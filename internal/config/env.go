package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays LOGWINDOW_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("LOGWINDOW_BACKEND"); v != "" {
		cfg.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("LOGWINDOW_MAX_BACKLOG"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxBacklog = n
		}
	}
	if v := os.Getenv("LOGWINDOW_SKIP_EMPTY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SkipEmpty = b
		}
	}
	if v, ok := os.LookupEnv("LOGWINDOW_KEY_PREFIX"); ok {
		cfg.KeyPrefix = v
	}
	if v := os.Getenv("LOGWINDOW_DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultLimit = n
		}
	}
	if v := os.Getenv("LOGWINDOW_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LOGWINDOW_REDIS_USERNAME"); v != "" {
		cfg.Redis.Username = v
	}
	if v := os.Getenv("LOGWINDOW_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LOGWINDOW_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	if v := os.Getenv("LOGWINDOW_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOGWINDOW_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v, ok := os.LookupEnv("LOGWINDOW_REPORT_LOG_LEVEL"); ok {
		cfg.ReportLogLevel = v
	}
	// LOGWINDOW_IGNORE_TEXT=a,b appends substring rules.
	if v := os.Getenv("LOGWINDOW_IGNORE_TEXT"); v != "" {
		for _, p := range strings.Split(v, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.Ignore = append(cfg.Ignore, IgnoreRule{Kind: "text", Value: p})
			}
		}
	}
}
