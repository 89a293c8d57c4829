package config

import (
	"os"
	"path/filepath"
)

const appDir = "logwindow"

// DefaultDataDir picks where the pebble backend keeps its files:
// LOGWINDOW_DATA_DIR, then $XDG_DATA_HOME/logwindow, then /var/lib/logwindow
// when /var/lib is writable, then the per-user application directory for the
// host OS, then ./data.
func DefaultDataDir() string {
	if d := os.Getenv("LOGWINDOW_DATA_DIR"); d != "" {
		return d
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appDir)
	}
	if isWritableDir("/var/lib") {
		return filepath.Join("/var/lib", appDir)
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}
	switch {
	case isDir(filepath.Join(home, "Library")):
		return filepath.Join(home, "Library", "Application Support", "Logwindow")
	case isDir(filepath.Join(home, "AppData")):
		return filepath.Join(home, "AppData", "Local", "Logwindow")
	}
	return filepath.Join(home, "."+appDir)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// isWritableDir probes by creating and removing a temp file.
func isWritableDir(path string) bool {
	if !isDir(path) {
		return false
	}
	f, err := os.CreateTemp(path, ".logwindow-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}
