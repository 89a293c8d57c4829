// Package config provides loading and environment overlay for logwindow
// configuration. It exposes a Default() baseline, file loading for JSON and
// YAML, and a LOGWINDOW_* environment overlay.
//
// Example:
//
//	cfg, err := config.Load("/etc/logwindow.yaml")
//	if err != nil {
//	    return err
//	}
//	config.FromEnv(&cfg)
//	rt, err := runtime.Open(runtime.Options{DataDir: config.DefaultDataDir(), Config: cfg})
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
package config
