package runtime

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	cfgpkg "github.com/rzbill/logwindow/internal/config"
	"github.com/rzbill/logwindow/internal/logstore"
	"github.com/rzbill/logwindow/internal/message"
	pebblestore "github.com/rzbill/logwindow/internal/storage/pebble"
)

func TestOpenCloseHealth(t *testing.T) {
	dir := t.TempDir()
	rt, err := Open(Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := rt.CheckHealth(context.Background()); err == nil {
		t.Fatalf("expected unhealthy after close")
	}
}

func TestStoreUsesConfig(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.MaxBacklog = 2
	cfg.Ignore = []cfgpkg.IgnoreRule{{Kind: "text", Value: "healthz"}}
	rt, err := Open(Options{DataDir: t.TempDir(), Config: cfg})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()

	ctx := context.Background()
	st := rt.Store()
	for _, text := range []string{"a", "b", "c", "GET /healthz"} {
		if err := st.Report(ctx, logstore.ReportParams{Severity: message.Error, Text: text}); err != nil {
			t.Fatalf("report: %v", err)
		}
	}
	n, err := st.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count=%d", n)
	}
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := cfgpkg.Default()
	cfg.Backend = cfgpkg.BackendRedis
	cfg.Redis.Addr = mr.Addr()
	cfg.KeyPrefix = "lw:"
	rt, err := Open(Options{Config: cfg})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	if err := rt.Store().Report(context.Background(), logstore.ReportParams{Severity: message.Warn, Text: "x"}); err != nil {
		t.Fatalf("report: %v", err)
	}
	if !mr.Exists("lw:LATEST") {
		t.Fatalf("expected prefixed list in redis")
	}
}

func TestOpenErrors(t *testing.T) {
	bad := cfgpkg.Default()
	bad.Ignore = []cfgpkg.IgnoreRule{{Kind: "pattern", Value: "("}}
	if _, err := Open(Options{DataDir: t.TempDir(), Config: bad}); err == nil {
		t.Fatalf("expected ignore compile error")
	}

	if _, err := Open(Options{Config: cfgpkg.Default()}); err == nil {
		t.Fatalf("expected missing data dir error")
	}

	unknown := cfgpkg.Default()
	unknown.Backend = "etcd"
	if _, err := Open(Options{DataDir: t.TempDir(), Config: unknown}); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}
