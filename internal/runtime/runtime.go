package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	cfgpkg "github.com/rzbill/logwindow/internal/config"
	"github.com/rzbill/logwindow/internal/ignore"
	"github.com/rzbill/logwindow/internal/logstore"
	pebblestore "github.com/rzbill/logwindow/internal/storage/pebble"
	"github.com/rzbill/logwindow/internal/substrate"
	"github.com/rzbill/logwindow/internal/substrate/pebblekv"
	"github.com/rzbill/logwindow/internal/substrate/redisstore"
	logpkg "github.com/rzbill/logwindow/pkg/log"
)

const dialTimeout = 5 * time.Second

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Logger        logpkg.Logger
	// Backend overrides the backend selected by Config. The Runtime takes
	// ownership and closes it.
	Backend substrate.Backend
}

// Runtime wires the configured backend, ignore rules and store for one
// process.
type Runtime struct {
	backend substrate.Backend
	store   *logstore.Store
	config  cfgpkg.Config
	logger  logpkg.Logger
}

// Open builds the backend named by opts.Config and the Store on top of it.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNop()
	}

	rules := make([]ignore.Rule, len(cfg.Ignore))
	for i, r := range cfg.Ignore {
		rules[i] = ignore.Rule{Kind: r.Kind, Value: r.Value}
	}
	ignored, err := ignore.Compile(rules)
	if err != nil {
		return nil, err
	}

	backend := opts.Backend
	if backend == nil {
		backend, err = openBackend(opts, logger)
		if err != nil {
			return nil, err
		}
	}

	store := logstore.New(backend, logstore.Options{
		MaxBacklog:   cfg.MaxBacklog,
		SkipEmpty:    cfg.SkipEmpty,
		DefaultLimit: cfg.DefaultLimit,
		KeyPrefix:    cfg.KeyPrefix,
		Ignore:       ignored,
		Logger:       logger,
	})
	logger.Info("store ready",
		logpkg.Component("runtime"),
		logpkg.Str("backend", cfg.Backend),
		logpkg.Int("max_backlog", cfg.MaxBacklog),
		logpkg.Int("ignore_rules", ignored.Len()),
	)
	return &Runtime{backend: backend, store: store, config: cfg, logger: logger}, nil
}

func openBackend(opts Options, logger logpkg.Logger) (substrate.Backend, error) {
	cfg := opts.Config
	switch cfg.Backend {
	case cfgpkg.BackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		return redisstore.Open(ctx, redisstore.Options{
			Addr:        cfg.Redis.Addr,
			Username:    cfg.Redis.Username,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: dialTimeout,
		})
	case cfgpkg.BackendPebble:
		if opts.DataDir == "" {
			return nil, errors.New("runtime: pebble backend requires a data dir")
		}
		return pebblekv.Open(pebblestore.Options{
			DataDir:       opts.DataDir,
			Fsync:         opts.Fsync,
			FsyncInterval: opts.FsyncInterval,
			Metrics:       newCommitLogger(logger, slowCommitThreshold),
		})
	}
	return nil, fmt.Errorf("runtime: unknown backend %q", cfg.Backend)
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.backend == nil {
		return nil
	}
	err := r.backend.Close()
	r.backend = nil
	return err
}

// CheckHealth pings the backend.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.backend == nil {
		return errors.New("runtime closed")
	}
	return r.backend.Ping(ctx)
}

// Store returns the log store.
func (r *Runtime) Store() *logstore.Store { return r.store }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
