package pebblekv

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/rzbill/logwindow/internal/storage/pebble"
	"github.com/rzbill/logwindow/internal/substrate"
)

// reader is satisfied by both *pebble.Snapshot and an indexed *pebble.Batch.
type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

// Backend implements substrate.Backend on an embedded Pebble database.
//
// Writes are serialized by a single mutex and applied as indexed batches, so
// read-modify-write steps (list sequence allocation, LREM) see a stable view
// and every Tx commits all-or-nothing. Reads go through snapshots and never
// block writers.
type Backend struct {
	db *pebblestore.DB
	mu sync.Mutex
}

var _ substrate.Backend = (*Backend)(nil)

// New wraps db. The Backend takes ownership and closes db on Close.
func New(db *pebblestore.DB) *Backend {
	return &Backend{db: db}
}

// Open opens a Pebble database with opts and wraps it.
func Open(opts pebblestore.Options) (*Backend, error) {
	db, err := pebblestore.Open(opts)
	if err != nil {
		return nil, substrate.Unavailable("open", err)
	}
	return New(db), nil
}

func (b *Backend) Close() error { return b.db.Close() }

func (b *Backend) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return substrate.Unavailable("ping", b.db.Ping())
}

func (b *Backend) read(ctx context.Context, op string, fn func(r reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.db.Ping(); err != nil {
		return substrate.Unavailable(op, err)
	}
	snap := b.db.NewSnapshot()
	defer snap.Close()
	return substrate.Unavailable(op, fn(snap))
}

func (b *Backend) write(ctx context.Context, op string, fn func(batch *pebble.Batch) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.db.Ping(); err != nil {
		return substrate.Unavailable(op, err)
	}
	batch := b.db.NewIndexedBatch()
	defer batch.Close()
	if err := fn(batch); err != nil {
		return substrate.Unavailable(op, err)
	}
	if batch.Empty() {
		return nil
	}
	return substrate.Unavailable(op, b.db.CommitBatch(ctx, batch))
}

func (b *Backend) RPush(ctx context.Context, list string, values ...string) (int64, error) {
	var n int64
	err := b.write(ctx, "rpush", func(batch *pebble.Batch) error {
		var err error
		n, err = rpush(batch, list, values)
		return err
	})
	return n, err
}

func (b *Backend) LPop(ctx context.Context, list string) (string, bool, error) {
	var (
		v  string
		ok bool
	)
	err := b.write(ctx, "lpop", func(batch *pebble.Batch) error {
		var err error
		v, ok, err = lpop(batch, list)
		return err
	})
	return v, ok, err
}

func (b *Backend) LLen(ctx context.Context, list string) (int64, error) {
	var n int64
	err := b.read(ctx, "llen", func(r reader) error {
		m, err := getMeta(r, list)
		n = int64(m.n)
		return err
	})
	return n, err
}

func (b *Backend) LRange(ctx context.Context, list string, start, stop int64) ([]string, error) {
	var out []string
	err := b.read(ctx, "lrange", func(r reader) error {
		var err error
		out, err = lrange(r, list, start, stop)
		return err
	})
	return out, err
}

func (b *Backend) HGet(ctx context.Context, hash, field string) (string, bool, error) {
	var (
		v  string
		ok bool
	)
	err := b.read(ctx, "hget", func(r reader) error {
		var err error
		v, ok, err = getString(r, keyHashField(hash, field))
		return err
	})
	return v, ok, err
}

func (b *Backend) HMGet(ctx context.Context, hash string, fields ...string) ([]string, error) {
	out := make([]string, len(fields))
	err := b.read(ctx, "hmget", func(r reader) error {
		for i, f := range fields {
			v, _, err := getString(r, keyHashField(hash, f))
			if err != nil {
				return err
			}
			out[i] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Backend) HSet(ctx context.Context, hash, field, value string) error {
	return b.write(ctx, "hset", func(batch *pebble.Batch) error {
		return batch.Set(keyHashField(hash, field), []byte(value), nil)
	})
}

func (b *Backend) HDel(ctx context.Context, hash string, fields ...string) error {
	return b.write(ctx, "hdel", func(batch *pebble.Batch) error {
		return deleteKeys(batch, hashKeys(hash, fields))
	})
}

func (b *Backend) HLen(ctx context.Context, hash string) (int64, error) {
	var n int64
	err := b.read(ctx, "hlen", func(r reader) error {
		var err error
		n, err = countPrefix(r, keyHash(hash))
		return err
	})
	return n, err
}

func (b *Backend) SAdd(ctx context.Context, set string, members ...string) error {
	return b.write(ctx, "sadd", func(batch *pebble.Batch) error {
		return sadd(batch, set, members)
	})
}

func (b *Backend) SRem(ctx context.Context, set string, members ...string) error {
	return b.write(ctx, "srem", func(batch *pebble.Batch) error {
		return deleteKeys(batch, setKeys(set, members))
	})
}

func (b *Backend) SIsMember(ctx context.Context, set, member string) (bool, error) {
	var ok bool
	err := b.read(ctx, "sismember", func(r reader) error {
		var err error
		_, ok, err = getString(r, keySetMember(set, member))
		return err
	})
	return ok, err
}

func (b *Backend) SMembers(ctx context.Context, set string) ([]string, error) {
	var out []string
	err := b.read(ctx, "smembers", func(r reader) error {
		prefix := keySet(set)
		keys, _, err := scanPrefix(r, prefix, false)
		if err != nil {
			return err
		}
		out = make([]string, len(keys))
		for i, k := range keys {
			out[i] = string(k[len(prefix):])
		}
		return nil
	})
	return out, err
}

func (b *Backend) Del(ctx context.Context, names ...string) error {
	return b.write(ctx, "del", func(batch *pebble.Batch) error {
		return del(batch, names)
	})
}

// Tx applies the queued writes as one indexed batch. The first failing
// operation aborts the whole transaction.
func (b *Backend) Tx(ctx context.Context, fn func(substrate.Tx) error) error {
	var fnErr error
	err := b.write(ctx, "tx", func(batch *pebble.Batch) error {
		t := &txn{b: batch}
		if fnErr = fn(t); fnErr != nil {
			return fnErr
		}
		return t.err
	})
	if fnErr != nil {
		return fnErr
	}
	return err
}

type txn struct {
	b   *pebble.Batch
	err error
}

func (t *txn) do(fn func() error) {
	if t.err == nil {
		t.err = fn()
	}
}

func (t *txn) RPush(list string, values ...string) {
	t.do(func() error { _, err := rpush(t.b, list, values); return err })
}

func (t *txn) LRem(list, value string) {
	t.do(func() error { return lrem(t.b, list, value) })
}

func (t *txn) HSet(hash, field, value string) {
	t.do(func() error { return t.b.Set(keyHashField(hash, field), []byte(value), nil) })
}

func (t *txn) HDel(hash string, fields ...string) {
	t.do(func() error { return deleteKeys(t.b, hashKeys(hash, fields)) })
}

func (t *txn) SAdd(set string, members ...string) {
	t.do(func() error { return sadd(t.b, set, members) })
}

func (t *txn) SRem(set string, members ...string) {
	t.do(func() error { return deleteKeys(t.b, setKeys(set, members)) })
}

func (t *txn) Del(names ...string) {
	t.do(func() error { return del(t.b, names) })
}

func getString(r reader, key []byte) (string, bool, error) {
	v, closer, err := r.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer closer.Close()
	return string(v), true, nil
}

func getMeta(r reader, list string) (listMeta, error) {
	v, closer, err := r.Get(keyListMeta(list))
	if errors.Is(err, pebble.ErrNotFound) {
		return listMeta{}, nil
	}
	if err != nil {
		return listMeta{}, err
	}
	defer closer.Close()
	m, _ := decodeListMeta(v)
	return m, nil
}

func putMeta(b *pebble.Batch, list string, m listMeta) error {
	if m.n == 0 {
		return b.Delete(keyListMeta(list), nil)
	}
	return b.Set(keyListMeta(list), m.encode(), nil)
}

func rpush(b *pebble.Batch, list string, values []string) (int64, error) {
	m, err := getMeta(b, list)
	if err != nil {
		return 0, err
	}
	for _, v := range values {
		m.lastSeq++
		if err := b.Set(keyListEntry(list, m.lastSeq), []byte(v), nil); err != nil {
			return 0, err
		}
		m.n++
	}
	if err := putMeta(b, list, m); err != nil {
		return 0, err
	}
	return int64(m.n), nil
}

func lpop(b *pebble.Batch, list string) (string, bool, error) {
	m, err := getMeta(b, list)
	if err != nil || m.n == 0 {
		return "", false, err
	}
	prefix := keyListEntries(list)
	iter, err := b.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return "", false, err
	}
	if !iter.First() {
		_ = iter.Close()
		return "", false, nil
	}
	key := append([]byte(nil), iter.Key()...)
	val := string(iter.Value())
	if err := iter.Close(); err != nil {
		return "", false, err
	}
	if err := b.Delete(key, nil); err != nil {
		return "", false, err
	}
	m.n--
	if m.n == 0 {
		m.lastSeq = 0
	}
	return val, true, putMeta(b, list, m)
}

// lrange walks from whichever end of the list is closer to the requested
// window.
func lrange(r reader, list string, start, stop int64) ([]string, error) {
	m, err := getMeta(r, list)
	if err != nil {
		return nil, err
	}
	from, to, ok := substrate.NormalizeRange(start, stop, int64(m.n))
	if !ok {
		return []string{}, nil
	}
	prefix := keyListEntries(list)
	iter, err := r.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	want := int(to - from + 1)
	out := make([]string, 0, want)
	n := int64(m.n)
	if from <= n-1-to {
		i := int64(0)
		for ok := iter.First(); ok && len(out) < want; ok = iter.Next() {
			if i >= from {
				out = append(out, string(iter.Value()))
			}
			i++
		}
		return out, nil
	}

	i := n - 1
	for ok := iter.Last(); ok && len(out) < want; ok = iter.Prev() {
		if i <= to {
			out = append(out, string(iter.Value()))
		}
		i--
	}
	for l, rr := 0, len(out)-1; l < rr; l, rr = l+1, rr-1 {
		out[l], out[rr] = out[rr], out[l]
	}
	return out, nil
}

func lrem(b *pebble.Batch, list, value string) error {
	m, err := getMeta(b, list)
	if err != nil || m.n == 0 {
		return err
	}
	keys, vals, err := scanPrefix(b, keyListEntries(list), true)
	if err != nil {
		return err
	}
	var removed uint64
	for i, k := range keys {
		if vals[i] == value {
			if err := b.Delete(k, nil); err != nil {
				return err
			}
			removed++
		}
	}
	if removed == 0 {
		return nil
	}
	m.n -= removed
	if m.n == 0 {
		m.lastSeq = 0
	}
	return putMeta(b, list, m)
}

func sadd(b *pebble.Batch, set string, members []string) error {
	for _, mbr := range members {
		if err := b.Set(keySetMember(set, mbr), nil, nil); err != nil {
			return err
		}
	}
	return nil
}

func del(b *pebble.Batch, names []string) error {
	for _, name := range names {
		keys, _, err := scanPrefix(b, keyCollection(name), false)
		if err != nil {
			return err
		}
		if err := deleteKeys(b, keys); err != nil {
			return err
		}
	}
	return nil
}

func hashKeys(hash string, fields []string) [][]byte {
	keys := make([][]byte, len(fields))
	for i, f := range fields {
		keys[i] = keyHashField(hash, f)
	}
	return keys
}

func setKeys(set string, members []string) [][]byte {
	keys := make([][]byte, len(members))
	for i, m := range members {
		keys[i] = keySetMember(set, m)
	}
	return keys
}

func deleteKeys(b *pebble.Batch, keys [][]byte) error {
	for _, k := range keys {
		if err := b.Delete(k, nil); err != nil {
			return err
		}
	}
	return nil
}

// scanPrefix copies every key (and optionally value) under prefix. The
// iterator is closed before returning so callers may mutate the batch.
func scanPrefix(r reader, prefix []byte, withValues bool) ([][]byte, []string, error) {
	iter, err := r.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return nil, nil, err
	}
	var (
		keys [][]byte
		vals []string
	)
	for ok := iter.First(); ok; ok = iter.Next() {
		keys = append(keys, append([]byte(nil), iter.Key()...))
		if withValues {
			vals = append(vals, string(iter.Value()))
		}
	}
	return keys, vals, iter.Close()
}

func countPrefix(r reader, prefix []byte) (int64, error) {
	iter, err := r.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return 0, err
	}
	var n int64
	for ok := iter.First(); ok; ok = iter.Next() {
		n++
	}
	return n, iter.Close()
}
