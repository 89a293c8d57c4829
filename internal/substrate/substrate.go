package substrate

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable wraps every transport or storage failure surfaced by a
// Backend. Callers test for it with errors.Is; no retry is attempted.
var ErrUnavailable = errors.New("substrate unavailable")

// Unavailable wraps err with ErrUnavailable and the failing operation name.
// A nil err stays nil; context cancellation is returned unchanged.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

// Backend is an associative store exposing named lists, hashes and sets plus
// an atomic multi-write transaction. Each name holds exactly one kind of
// collection. Missing collections behave as empty ones.
//
// List offsets follow the usual tail-relative convention: 0 is the head, -1
// the tail, and out-of-range bounds are clamped rather than rejected.
type Backend interface {
	RPush(ctx context.Context, list string, values ...string) (int64, error)
	// LPop removes and returns the head of the list; ok is false when empty.
	LPop(ctx context.Context, list string) (value string, ok bool, err error)
	LLen(ctx context.Context, list string) (int64, error)
	// LRange returns the inclusive range [start, stop].
	LRange(ctx context.Context, list string, start, stop int64) ([]string, error)

	HGet(ctx context.Context, hash, field string) (value string, ok bool, err error)
	// HMGet returns one value per field, in order; missing fields yield "".
	HMGet(ctx context.Context, hash string, fields ...string) ([]string, error)
	HSet(ctx context.Context, hash, field, value string) error
	HDel(ctx context.Context, hash string, fields ...string) error
	HLen(ctx context.Context, hash string) (int64, error)

	SAdd(ctx context.Context, set string, members ...string) error
	SRem(ctx context.Context, set string, members ...string) error
	SIsMember(ctx context.Context, set, member string) (bool, error)
	SMembers(ctx context.Context, set string) ([]string, error)

	// Del drops whole collections.
	Del(ctx context.Context, names ...string) error

	// Tx runs fn and applies the writes it queued atomically: either all of
	// them become visible or none do. Returning an error from fn discards the
	// transaction.
	Tx(ctx context.Context, fn func(Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Tx queues writes for an atomic commit. Operations are applied in order.
type Tx interface {
	RPush(list string, values ...string)
	// LRem removes every occurrence of value from the list.
	LRem(list, value string)
	HSet(hash, field, value string)
	HDel(hash string, fields ...string)
	SAdd(set string, members ...string)
	SRem(set string, members ...string)
	Del(names ...string)
}

// NormalizeRange converts tail-relative [start, stop] offsets for a list of
// length n into absolute, clamped indexes. ok is false when the range is empty.
func NormalizeRange(start, stop, n int64) (from, to int64, ok bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}
