package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rzbill/logwindow/internal/substrate"
)

// Options configures the Redis connection.
type Options struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// Backend implements substrate.Backend with native Redis lists, hashes and
// sets. Tx maps to MULTI/EXEC.
type Backend struct {
	rdb redis.UniversalClient
}

var _ substrate.Backend = (*Backend)(nil)

// Open dials Redis and verifies the connection with PING.
func Open(ctx context.Context, opts Options) (*Backend, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	})
	b := New(rdb)
	if err := b.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return b, nil
}

// New wraps an existing client. The Backend closes it on Close.
func New(rdb redis.UniversalClient) *Backend {
	return &Backend{rdb: rdb}
}

func (b *Backend) Close() error { return b.rdb.Close() }

func (b *Backend) Ping(ctx context.Context) error {
	return wrap(ctx, "ping", b.rdb.Ping(ctx).Err())
}

func (b *Backend) RPush(ctx context.Context, list string, values ...string) (int64, error) {
	if len(values) == 0 {
		return b.LLen(ctx, list)
	}
	n, err := b.rdb.RPush(ctx, list, toArgs(values)...).Result()
	return n, wrap(ctx, "rpush", err)
}

func (b *Backend) LPop(ctx context.Context, list string) (string, bool, error) {
	v, err := b.rdb.LPop(ctx, list).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap(ctx, "lpop", err)
	}
	return v, true, nil
}

func (b *Backend) LLen(ctx context.Context, list string) (int64, error) {
	n, err := b.rdb.LLen(ctx, list).Result()
	return n, wrap(ctx, "llen", err)
}

func (b *Backend) LRange(ctx context.Context, list string, start, stop int64) ([]string, error) {
	v, err := b.rdb.LRange(ctx, list, start, stop).Result()
	if err != nil {
		return nil, wrap(ctx, "lrange", err)
	}
	return v, nil
}

func (b *Backend) HGet(ctx context.Context, hash, field string) (string, bool, error) {
	v, err := b.rdb.HGet(ctx, hash, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap(ctx, "hget", err)
	}
	return v, true, nil
}

func (b *Backend) HMGet(ctx context.Context, hash string, fields ...string) ([]string, error) {
	if len(fields) == 0 {
		return []string{}, nil
	}
	raw, err := b.rdb.HMGet(ctx, hash, fields...).Result()
	if err != nil {
		return nil, wrap(ctx, "hmget", err)
	}
	out := make([]string, len(raw))
	for i, v := range raw {
		if s, ok := v.(string); ok {
			out[i] = s
		}
	}
	return out, nil
}

func (b *Backend) HSet(ctx context.Context, hash, field, value string) error {
	return wrap(ctx, "hset", b.rdb.HSet(ctx, hash, field, value).Err())
}

func (b *Backend) HDel(ctx context.Context, hash string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return wrap(ctx, "hdel", b.rdb.HDel(ctx, hash, fields...).Err())
}

func (b *Backend) HLen(ctx context.Context, hash string) (int64, error) {
	n, err := b.rdb.HLen(ctx, hash).Result()
	return n, wrap(ctx, "hlen", err)
}

func (b *Backend) SAdd(ctx context.Context, set string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return wrap(ctx, "sadd", b.rdb.SAdd(ctx, set, toArgs(members)...).Err())
}

func (b *Backend) SRem(ctx context.Context, set string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return wrap(ctx, "srem", b.rdb.SRem(ctx, set, toArgs(members)...).Err())
}

func (b *Backend) SIsMember(ctx context.Context, set, member string) (bool, error) {
	ok, err := b.rdb.SIsMember(ctx, set, member).Result()
	return ok, wrap(ctx, "sismember", err)
}

func (b *Backend) SMembers(ctx context.Context, set string) ([]string, error) {
	v, err := b.rdb.SMembers(ctx, set).Result()
	if err != nil {
		return nil, wrap(ctx, "smembers", err)
	}
	return v, nil
}

func (b *Backend) Del(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	return wrap(ctx, "del", b.rdb.Del(ctx, names...).Err())
}

// Tx queues fn's writes and sends them in a single MULTI/EXEC. Nothing is
// sent when fn fails.
func (b *Backend) Tx(ctx context.Context, fn func(substrate.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &txn{}
	if err := fn(t); err != nil {
		return err
	}
	if len(t.ops) == 0 {
		return nil
	}
	_, err := b.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, op := range t.ops {
			op(ctx, p)
		}
		return nil
	})
	return wrap(ctx, "tx", err)
}

type txn struct {
	ops []func(context.Context, redis.Pipeliner)
}

func (t *txn) add(op func(context.Context, redis.Pipeliner)) { t.ops = append(t.ops, op) }

func (t *txn) RPush(list string, values ...string) {
	if len(values) == 0 {
		return
	}
	t.add(func(ctx context.Context, p redis.Pipeliner) { p.RPush(ctx, list, toArgs(values)...) })
}

func (t *txn) LRem(list, value string) {
	t.add(func(ctx context.Context, p redis.Pipeliner) { p.LRem(ctx, list, 0, value) })
}

func (t *txn) HSet(hash, field, value string) {
	t.add(func(ctx context.Context, p redis.Pipeliner) { p.HSet(ctx, hash, field, value) })
}

func (t *txn) HDel(hash string, fields ...string) {
	if len(fields) == 0 {
		return
	}
	t.add(func(ctx context.Context, p redis.Pipeliner) { p.HDel(ctx, hash, fields...) })
}

func (t *txn) SAdd(set string, members ...string) {
	if len(members) == 0 {
		return
	}
	t.add(func(ctx context.Context, p redis.Pipeliner) { p.SAdd(ctx, set, toArgs(members)...) })
}

func (t *txn) SRem(set string, members ...string) {
	if len(members) == 0 {
		return
	}
	t.add(func(ctx context.Context, p redis.Pipeliner) { p.SRem(ctx, set, toArgs(members)...) })
}

func (t *txn) Del(names ...string) {
	if len(names) == 0 {
		return
	}
	t.add(func(ctx context.Context, p redis.Pipeliner) { p.Del(ctx, names...) })
}

func toArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// wrap prefers the caller's context error so cancellation is never reported
// as an outage.
func wrap(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	return substrate.Unavailable(op, err)
}
