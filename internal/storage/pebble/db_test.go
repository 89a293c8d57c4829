package pebblestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
)

type testMetrics struct {
	batchCommits int
	batchOps     int
	batchBytes   int
}

func (m *testMetrics) ObserveBatchCommit(d time.Duration, numOps int, bytes int) {
	m.batchCommits++
	m.batchOps += numOps
	m.batchBytes += bytes
}

func newTestDB(t *testing.T) (*DB, *testMetrics) {
	t.Helper()
	dir := t.TempDir()
	metrics := &testMetrics{}
	db, err := Open(Options{
		DataDir:       dir,
		Fsync:         FsyncModeInterval,
		FsyncInterval: 2 * time.Millisecond,
		Metrics:       metrics,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, metrics
}

func snapshotGet(t *testing.T, db *DB, key string) (string, error) {
	t.Helper()
	snap := db.NewSnapshot()
	defer snap.Close()
	v, closer, err := snap.Get([]byte(key))
	if err != nil {
		return "", err
	}
	defer closer.Close()
	return string(v), nil
}

func TestCommitObservedAndVisible(t *testing.T) {
	db, metrics := newTestDB(t)

	b := db.NewIndexedBatch()
	if err := b.Set([]byte("a"), []byte("1"), nil); err != nil {
		t.Fatalf("batch set: %v", err)
	}
	if err := b.Set([]byte("b"), []byte("2"), nil); err != nil {
		t.Fatalf("batch set: %v", err)
	}
	if err := db.CommitBatch(context.Background(), b); err != nil {
		t.Fatalf("commit: %v", err)
	}
	b.Close()

	got, err := snapshotGet(t, db, "b")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "2" {
		t.Fatalf("got %q want %q", got, "2")
	}
	if metrics.batchCommits != 1 || metrics.batchOps != 2 {
		t.Fatalf("want 1 commit with 2 ops, got %d/%d", metrics.batchCommits, metrics.batchOps)
	}
	if metrics.batchBytes == 0 {
		t.Fatalf("expected commit bytes to be recorded")
	}
	if _, err := snapshotGet(t, db, "missing"); !errors.Is(err, pebble.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIndexedBatchReadsOwnWrites(t *testing.T) {
	db, _ := newTestDB(t)

	b := db.NewIndexedBatch()
	defer b.Close()
	if err := b.Set([]byte("k"), []byte("pending"), nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, closer, err := b.Get([]byte("k"))
	if err != nil {
		t.Fatalf("batch get: %v", err)
	}
	if string(v) != "pending" {
		t.Fatalf("batch saw %q", v)
	}
	closer.Close()

	// not visible outside the batch before commit
	if _, err := snapshotGet(t, db, "k"); !errors.Is(err, pebble.ErrNotFound) {
		t.Fatalf("uncommitted write leaked: %v", err)
	}
	if err := db.CommitBatch(context.Background(), b); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := snapshotGet(t, db, "k"); err != nil {
		t.Fatalf("get after commit: %v", err)
	}
}

func TestSnapshotIgnoresLaterCommits(t *testing.T) {
	db, _ := newTestDB(t)
	snap := db.NewSnapshot()
	defer snap.Close()

	b := db.NewIndexedBatch()
	_ = b.Set([]byte("late"), []byte("v"), nil)
	if err := db.CommitBatch(context.Background(), b); err != nil {
		t.Fatalf("commit: %v", err)
	}
	b.Close()

	if _, _, err := snap.Get([]byte("late")); !errors.Is(err, pebble.ErrNotFound) {
		t.Fatalf("snapshot saw later write: %v", err)
	}
}

func TestCommitHonoursCancelledContext(t *testing.T) {
	db, metrics := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := db.NewIndexedBatch()
	defer b.Close()
	_ = b.Set([]byte("x"), []byte("y"), nil)
	if err := db.CommitBatch(ctx, b); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if metrics.batchCommits != 0 {
		t.Fatalf("cancelled commit was observed")
	}
}

func TestPingAfterClose(t *testing.T) {
	db, _ := newTestDB(t)
	if err := db.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := db.Ping(); err == nil {
		t.Fatalf("expected ping error after close")
	}
}

func TestParseFsyncMode(t *testing.T) {
	for in, want := range map[string]FsyncMode{"always": FsyncModeAlways, "interval": FsyncModeInterval, "never": FsyncModeNever} {
		got, err := ParseFsyncMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseFsyncMode(%q)=%v,%v", in, got, err)
		}
	}
	if _, err := ParseFsyncMode("sometimes"); err == nil {
		t.Fatalf("expected error")
	}
}
