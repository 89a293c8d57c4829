package pebblekv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	pebblestore "github.com/rzbill/logwindow/internal/storage/pebble"
	"github.com/rzbill/logwindow/internal/substrate"
	"github.com/rzbill/logwindow/internal/substrate/substratetest"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBackendContract(t *testing.T) {
	substratetest.Run(t, func(t *testing.T) substrate.Backend { return newTestBackend(t) })
}

func TestListSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	require.NoError(t, err)
	_, err = b.RPush(ctx, "l", "a", "b", "c")
	require.NoError(t, err)
	_, _, err = b.LPop(ctx, "l")
	require.NoError(t, err)
	require.NoError(t, b.Close())

	b, err = Open(pebblestore.Options{DataDir: dir})
	require.NoError(t, err)
	defer b.Close()

	got, err := b.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c"}, got)
	_, err = b.RPush(ctx, "l", "d")
	require.NoError(t, err)
	got, err = b.LRange(ctx, "l", -1, -1)
	require.NoError(t, err)
	require.Equal(t, []string{"d"}, got)
}

func TestLRangeFromTail(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		_, err := b.RPush(ctx, "l", string(rune('a'+i%26)))
		require.NoError(t, err)
	}
	got, err := b.LRange(ctx, "l", -3, -2)
	require.NoError(t, err)
	// index 97 and 98
	require.Equal(t, []string{"t", "u"}, got)
}

func TestClosedBackendIsUnavailable(t *testing.T) {
	b, err := Open(pebblestore.Options{DataDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = b.LLen(context.Background(), "l")
	require.ErrorIs(t, err, substrate.ErrUnavailable)
	require.ErrorIs(t, b.Ping(context.Background()), substrate.ErrUnavailable)
}

func TestNamesDoNotCollide(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	require.NoError(t, b.HSet(ctx, "MAP", "k", "v"))
	require.NoError(t, b.HSet(ctx, "MAP2", "k", "w"))
	require.NoError(t, b.Del(ctx, "MAP"))

	v, ok, err := b.HGet(ctx, "MAP2", "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "w", v)
}
