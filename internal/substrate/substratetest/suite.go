// Package substratetest holds a behavioural suite every substrate.Backend
// implementation must pass.
package substratetest

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/logwindow/internal/substrate"
)

// Factory returns a fresh, empty backend. Cleanup is the factory's job.
type Factory func(t *testing.T) substrate.Backend

// Run exercises the full Backend contract against backends built by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Run("ListPushPopRange", func(t *testing.T) { testList(t, newBackend(t)) })
	t.Run("ListRangeClamping", func(t *testing.T) { testRangeClamping(t, newBackend(t)) })
	t.Run("Hash", func(t *testing.T) { testHash(t, newBackend(t)) })
	t.Run("Set", func(t *testing.T) { testSet(t, newBackend(t)) })
	t.Run("Del", func(t *testing.T) { testDel(t, newBackend(t)) })
	t.Run("TxAppliesAll", func(t *testing.T) { testTx(t, newBackend(t)) })
	t.Run("TxAbort", func(t *testing.T) { testTxAbort(t, newBackend(t)) })
	t.Run("ConcurrentPush", func(t *testing.T) { testConcurrentPush(t, newBackend(t)) })
	t.Run("CancelledContext", func(t *testing.T) { testCancelled(t, newBackend(t)) })
}

func testList(t *testing.T, b substrate.Backend) {
	ctx := context.Background()

	n, err := b.LLen(ctx, "l")
	require.NoError(t, err)
	require.Zero(t, n)
	_, ok, err := b.LPop(ctx, "l")
	require.NoError(t, err)
	require.False(t, ok)

	n, err = b.RPush(ctx, "l", "a", "b")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	n, err = b.RPush(ctx, "l", "c")
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	got, err := b.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, got)

	got, err = b.LRange(ctx, "l", -2, -1)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c"}, got)

	v, ok, err := b.LPop(ctx, "l")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", v)

	// push after pop keeps order
	_, err = b.RPush(ctx, "l", "d")
	require.NoError(t, err)
	got, err = b.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c", "d"}, got)

	for i := 0; i < 3; i++ {
		_, ok, err = b.LPop(ctx, "l")
		require.NoError(t, err)
		require.True(t, ok)
	}
	n, err = b.LLen(ctx, "l")
	require.NoError(t, err)
	require.Zero(t, n)
}

func testRangeClamping(t *testing.T, b substrate.Backend) {
	ctx := context.Background()
	_, err := b.RPush(ctx, "l", "0", "1", "2", "3", "4")
	require.NoError(t, err)

	cases := []struct {
		start, stop int64
		want        []string
	}{
		{-10, -4, []string{"0", "1"}},
		{-100, -50, []string{}},
		{3, 100, []string{"3", "4"}},
		{-3, -1, []string{"2", "3", "4"}},
		{4, 2, []string{}},
		{1, 1, []string{"1"}},
	}
	for _, tc := range cases {
		got, err := b.LRange(ctx, "l", tc.start, tc.stop)
		require.NoError(t, err)
		if len(tc.want) == 0 {
			assert.Empty(t, got, "range %d..%d", tc.start, tc.stop)
			continue
		}
		assert.Equal(t, tc.want, got, "range %d..%d", tc.start, tc.stop)
	}

	got, err := b.LRange(ctx, "missing", 0, -1)
	require.NoError(t, err)
	require.Empty(t, got)
}

func testHash(t *testing.T, b substrate.Backend) {
	ctx := context.Background()

	_, ok, err := b.HGet(ctx, "h", "x")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, b.HSet(ctx, "h", "x", "1"))
	require.NoError(t, b.HSet(ctx, "h", "y", "2"))
	require.NoError(t, b.HSet(ctx, "h", "x", "3"))

	v, ok, err := b.HGet(ctx, "h", "x")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "3", v)

	vals, err := b.HMGet(ctx, "h", "y", "nope", "x")
	require.NoError(t, err)
	require.Equal(t, []string{"2", "", "3"}, vals)

	n, err := b.HLen(ctx, "h")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	require.NoError(t, b.HDel(ctx, "h", "x", "nope"))
	n, err = b.HLen(ctx, "h")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func testSet(t *testing.T, b substrate.Backend) {
	ctx := context.Background()

	require.NoError(t, b.SAdd(ctx, "s", "a", "b"))
	require.NoError(t, b.SAdd(ctx, "s", "a"))

	ok, err := b.SIsMember(ctx, "s", "a")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = b.SIsMember(ctx, "s", "z")
	require.NoError(t, err)
	require.False(t, ok)

	members, err := b.SMembers(ctx, "s")
	require.NoError(t, err)
	sort.Strings(members)
	require.Equal(t, []string{"a", "b"}, members)

	require.NoError(t, b.SRem(ctx, "s", "a"))
	members, err = b.SMembers(ctx, "s")
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, members)
}

func testDel(t *testing.T, b substrate.Backend) {
	ctx := context.Background()
	_, err := b.RPush(ctx, "l", "a")
	require.NoError(t, err)
	require.NoError(t, b.HSet(ctx, "h", "f", "v"))
	require.NoError(t, b.SAdd(ctx, "s", "m"))
	require.NoError(t, b.HSet(ctx, "keep", "f", "v"))

	require.NoError(t, b.Del(ctx, "l", "h", "s", "missing"))

	n, err := b.LLen(ctx, "l")
	require.NoError(t, err)
	require.Zero(t, n)
	n, err = b.HLen(ctx, "h")
	require.NoError(t, err)
	require.Zero(t, n)
	members, err := b.SMembers(ctx, "s")
	require.NoError(t, err)
	require.Empty(t, members)
	n, err = b.HLen(ctx, "keep")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func testTx(t *testing.T, b substrate.Backend) {
	ctx := context.Background()
	_, err := b.RPush(ctx, "l", "a", "b", "a", "c")
	require.NoError(t, err)

	err = b.Tx(ctx, func(tx substrate.Tx) error {
		tx.LRem("l", "a")
		tx.RPush("l", "a")
		tx.HSet("h", "k", "v")
		tx.SAdd("s", "m")
		tx.Del("gone")
		return nil
	})
	require.NoError(t, err)

	got, err := b.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c", "a"}, got)
	v, ok, err := b.HGet(ctx, "h", "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)
	ok, err = b.SIsMember(ctx, "s", "m")
	require.NoError(t, err)
	require.True(t, ok)
}

func testTxAbort(t *testing.T, b substrate.Backend) {
	ctx := context.Background()
	boom := assert.AnError
	err := b.Tx(ctx, func(tx substrate.Tx) error {
		tx.HSet("h", "k", "v")
		tx.RPush("l", "x")
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, ok, err := b.HGet(ctx, "h", "k")
	require.NoError(t, err)
	require.False(t, ok)
	n, err := b.LLen(ctx, "l")
	require.NoError(t, err)
	require.Zero(t, n)
}

func testConcurrentPush(t *testing.T, b substrate.Backend) {
	ctx := context.Background()
	const workers, each = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				if _, err := b.RPush(ctx, "l", "x"); err != nil {
					t.Errorf("rpush: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
	n, err := b.LLen(ctx, "l")
	require.NoError(t, err)
	require.EqualValues(t, workers*each, n)
}

func testCancelled(t *testing.T, b substrate.Backend) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.RPush(ctx, "l", "a")
	require.ErrorIs(t, err, context.Canceled)
}
