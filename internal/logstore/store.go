package logstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rzbill/logwindow/internal/ignore"
	"github.com/rzbill/logwindow/internal/message"
	"github.com/rzbill/logwindow/internal/substrate"
	"github.com/rzbill/logwindow/pkg/log"
)

// Collection names, prefixed with Options.KeyPrefix.
const (
	latestName = "LATEST"
	mapName    = "MAP"
	gmapName   = "GMAP"
	savedName  = "SAVED"
)

const (
	DefaultMaxBacklog = 1000
	DefaultLimit      = 50
)

// Options configures a Store.
type Options struct {
	// MaxBacklog bounds the ordered index.
	MaxBacklog int

	// SkipEmpty drops reports with empty text.
	SkipEmpty bool

	// DefaultLimit is the page size used by Latest when none is given, and the
	// window size of retention scans.
	DefaultLimit int
	KeyPrefix    string
	Ignore       *ignore.Set
	Logger       log.Logger
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		MaxBacklog:   DefaultMaxBacklog,
		SkipEmpty:    true,
		DefaultLimit: DefaultLimit,
	}
}

// Store is a bounded, deduplicating window of log messages kept in four
// collections of a substrate.Backend:
//
//	LATEST  list of keys, oldest first, at most MaxBacklog long after a save
//	MAP     key -> serialized message
//	GMAP    grouping key -> message key
//	SAVED   set of protected keys, exempt from eviction
//
// Multi-collection writes go through one backend transaction. Clear and
// ClearAll are exclusive with the other writers of this Store; nothing is
// locked across processes sharing a backend.
type Store struct {
	backend substrate.Backend
	opts    Options
	logger  log.Logger

	latest, content, groups, saved string

	// mu is held shared by writers and exclusively by Clear/ClearAll.
	mu sync.RWMutex
}

// New builds a Store on backend. Zero numeric options fall back to defaults.
func New(backend substrate.Backend, opts Options) *Store {
	if opts.MaxBacklog <= 0 {
		opts.MaxBacklog = DefaultMaxBacklog
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		backend: backend,
		opts:    opts,
		logger:  logger.WithComponent("logstore"),
		latest:  opts.KeyPrefix + latestName,
		content: opts.KeyPrefix + mapName,
		groups:  opts.KeyPrefix + gmapName,
		saved:   opts.KeyPrefix + savedName,
	}
}

// MaxBacklog returns the configured window size.
func (s *Store) MaxBacklog() int { return s.opts.MaxBacklog }

// ReportParams describes one occurrence of an event.
type ReportParams struct {
	Severity  message.Severity
	Progname  string
	Text      string
	Backtrace string
	Env       map[string]any
}

// Report records an occurrence. A recurrence of a stored event (same
// grouping key) bumps the stored entry instead of adding a new one.
// Empty and ignored messages are dropped silently.
//
// The lookup and the write are not atomic: concurrent reports of a new event
// may each save their own entry.
func (s *Store) Report(ctx context.Context, p ReportParams) error {
	if p.Text == "" && s.opts.SkipEmpty {
		return nil
	}
	m := message.New(p.Severity, p.Progname, p.Text)
	m.Backtrace = p.Backtrace
	m.Env = p.Env

	if s.opts.Ignore.Matches(m) {
		s.logger.Debug("message ignored", log.Str("severity", m.Severity.String()))
		return nil
	}

	key, ok, err := s.SimilarKey(ctx, m)
	if err != nil {
		return err
	}
	if ok {
		existing, err := s.load(ctx, key)
		switch {
		case errors.Is(err, ErrNotFound):
			// dangling dedup entry; treat as new
		case err != nil:
			return err
		default:
			existing.Timestamp = m.Timestamp
			existing.Env = m.Env
			existing.Count++
			bumped, err := s.ReplaceAndBump(ctx, existing)
			if err != nil {
				return err
			}
			if bumped {
				return nil
			}
			s.logger.Debug("saving as new", log.Str("key", key), log.Err(ErrEvictedDuringBump))
		}
	}
	return s.Save(ctx, m)
}

// Save persists m as a new entry at the tail of the window, then evicts the
// oldest entry if the window is over capacity. Eviction failures are logged
// and leave the window one over capacity until the next save.
func (s *Store) Save(ctx context.Context, m *message.Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := m.Marshal()
	if err != nil {
		return err
	}
	err = s.backend.Tx(ctx, func(tx substrate.Tx) error {
		tx.HSet(s.content, m.Key, data)
		tx.HSet(s.groups, m.GroupingKey(), m.Key)
		tx.RPush(s.latest, m.Key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("logstore: save %s: %w", m.Key, err)
	}
	s.evict(ctx)
	return nil
}

// evict pops at most one key off the head of the window.
func (s *Store) evict(ctx context.Context) {
	n, err := s.backend.LLen(ctx, s.latest)
	if err != nil {
		s.logger.Warn("eviction skipped", log.Err(err))
		return
	}
	if n <= int64(s.opts.MaxBacklog) {
		return
	}
	key, ok, err := s.backend.LPop(ctx, s.latest)
	if err != nil || !ok {
		if err != nil {
			s.logger.Warn("eviction pop failed", log.Err(err))
		}
		return
	}
	protected, err := s.backend.SIsMember(ctx, s.saved, key)
	if err != nil {
		s.logger.Warn("eviction left entry in place", log.Str("key", key), log.Err(err))
		return
	}
	if protected {
		s.logger.Debug("protected entry left the window", log.Str("key", key))
		return
	}
	if err := s.destroy(ctx, key); err != nil {
		s.logger.Warn("eviction failed", log.Str("key", key), log.Err(err))
	}
}

// destroy removes key from the content map, and its dedup entry when that
// still points at key.
func (s *Store) destroy(ctx context.Context, key string) error {
	data, ok, err := s.backend.HGet(ctx, s.content, key)
	if err != nil || !ok {
		return err
	}
	var (
		fp     string
		ownsFp bool
	)
	if m, err := message.Unmarshal(data); err == nil {
		fp = m.GroupingKey()
		cur, found, err := s.backend.HGet(ctx, s.groups, fp)
		if err != nil {
			return err
		}
		ownsFp = found && cur == key
	}
	return s.backend.Tx(ctx, func(tx substrate.Tx) error {
		tx.HDel(s.content, key)
		if ownsFp {
			tx.HDel(s.groups, fp)
		}
		return nil
	})
}

// ReplaceAndBump overwrites the stored entry for m.Key and moves it to the
// tail of the window. It reports false when the entry no longer exists.
// A protected entry that had already left the window re-enters it, so the
// bump is followed by the same eviction step as Save.
func (s *Store) ReplaceAndBump(ctx context.Context, m *message.Message) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok, err := s.backend.HGet(ctx, s.content, m.Key)
	if err != nil {
		return false, fmt.Errorf("logstore: bump %s: %w", m.Key, err)
	}
	if !ok {
		return false, nil
	}
	data, err := m.Marshal()
	if err != nil {
		return false, err
	}
	err = s.backend.Tx(ctx, func(tx substrate.Tx) error {
		tx.HSet(s.content, m.Key, data)
		tx.LRem(s.latest, m.Key)
		tx.RPush(s.latest, m.Key)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("logstore: bump %s: %w", m.Key, err)
	}
	s.evict(ctx)
	return true, nil
}

// SimilarKey returns the key of the stored entry sharing m's grouping key.
func (s *Store) SimilarKey(ctx context.Context, m *message.Message) (string, bool, error) {
	key, ok, err := s.backend.HGet(ctx, s.groups, m.GroupingKey())
	if err != nil {
		return "", false, fmt.Errorf("logstore: similar key: %w", err)
	}
	return key, ok, nil
}

// Get returns the entry for key with its protected flag set.
func (s *Store) Get(ctx context.Context, key string) (*message.Message, error) {
	m, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	m.Protected, err = s.backend.SIsMember(ctx, s.saved, key)
	if err != nil {
		return nil, fmt.Errorf("logstore: get %s: %w", key, err)
	}
	return m, nil
}

func (s *Store) load(ctx context.Context, key string) (*message.Message, error) {
	data, ok, err := s.backend.HGet(ctx, s.content, key)
	if err != nil {
		return nil, fmt.Errorf("logstore: get %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return message.Unmarshal(data)
}

// Protect exempts key from eviction. It reports false for unknown keys.
func (s *Store) Protect(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok, err := s.backend.HGet(ctx, s.content, key)
	if err != nil {
		return false, fmt.Errorf("logstore: protect %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := s.backend.SAdd(ctx, s.saved, key); err != nil {
		return false, fmt.Errorf("logstore: protect %s: %w", key, err)
	}
	return true, nil
}

// Unprotect makes key evictable again. An entry that already left the window
// while protected is destroyed right away.
func (s *Store) Unprotect(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok, err := s.backend.HGet(ctx, s.content, key)
	if err != nil {
		return false, fmt.Errorf("logstore: unprotect %s: %w", key, err)
	}
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrRetentionInconsistency, key)
	}
	if err := s.backend.SRem(ctx, s.saved, key); err != nil {
		return false, fmt.Errorf("logstore: unprotect %s: %w", key, err)
	}
	inWindow, err := s.InWindow(ctx, key)
	if err != nil {
		return false, fmt.Errorf("logstore: unprotect %s: %w", key, err)
	}
	if !inWindow {
		if err := s.destroy(ctx, key); err != nil {
			return false, fmt.Errorf("logstore: unprotect %s: %w", key, err)
		}
	}
	return true, nil
}

// Clear drops every unprotected entry. Protected entries stay and are put
// back into the window in (timestamp, key) order; the dedup index is rebuilt
// from them.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.backend.SMembers(ctx, s.saved)
	if err != nil {
		return fmt.Errorf("logstore: clear: %w", err)
	}
	if len(keys) == 0 {
		return s.wrap("clear", s.backend.Tx(ctx, func(tx substrate.Tx) error {
			tx.Del(s.latest, s.content, s.groups)
			return nil
		}))
	}

	values, err := s.backend.HMGet(ctx, s.content, keys...)
	if err != nil {
		return fmt.Errorf("logstore: clear: %w", err)
	}
	type survivor struct {
		m    *message.Message
		data string
	}
	var (
		survivors []survivor
		stale     []string
	)
	for i, key := range keys {
		if values[i] == "" {
			stale = append(stale, key)
			continue
		}
		m, err := message.Unmarshal(values[i])
		if err != nil {
			s.logger.Warn("dropping undecodable protected entry", log.Str("key", key), log.Err(err))
			stale = append(stale, key)
			continue
		}
		survivors = append(survivors, survivor{m: m, data: values[i]})
	}
	sort.Slice(survivors, func(i, j int) bool { return survivors[i].m.Compare(survivors[j].m) < 0 })

	err = s.backend.Tx(ctx, func(tx substrate.Tx) error {
		tx.Del(s.latest, s.content, s.groups)
		order := make([]string, 0, len(survivors))
		for _, sv := range survivors {
			tx.HSet(s.content, sv.m.Key, sv.data)
			tx.HSet(s.groups, sv.m.GroupingKey(), sv.m.Key)
			order = append(order, sv.m.Key)
		}
		tx.RPush(s.latest, order...)
		tx.SRem(s.saved, stale...)
		return nil
	})
	return s.wrap("clear", err)
}

// ClearAll drops all four collections, protected entries included.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wrap("clear all", s.backend.Del(ctx, s.latest, s.content, s.groups, s.saved))
}

// Count returns the number of keys in the window. Orphaned protected entries
// are not counted.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.backend.LLen(ctx, s.latest)
	return n, s.wrap("count", err)
}

// Ping checks the backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

func (s *Store) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("logstore: %s: %w", op, err)
}
