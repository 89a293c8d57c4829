package serverrun

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	cfgpkg "github.com/rzbill/logwindow/internal/config"
	"github.com/rzbill/logwindow/internal/ingest"
	"github.com/rzbill/logwindow/internal/runtime"
	grpcserver "github.com/rzbill/logwindow/internal/server/grpc"
	httpserver "github.com/rzbill/logwindow/internal/server/http"
	pebblestore "github.com/rzbill/logwindow/internal/storage/pebble"
	logpkg "github.com/rzbill/logwindow/pkg/log"
)

// Progname tags entries the server forwards from its own log.
const Progname = "logwindow"

type Options struct {
	DataDir       string
	GRPCAddr      string
	HTTPAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// storeDir is where the pebble backend keeps its files under dataDir.
func storeDir(dataDir string) string {
	if dataDir == "" {
		dataDir = cfgpkg.DefaultDataDir()
	}
	return filepath.Join(dataDir, "store")
}

// buildLogger assembles the process logger from cfg. When ReportLogLevel is
// set, the returned output forwards entries into the store once attached.
func buildLogger(cfg cfgpkg.Config) (logpkg.Logger, *ingest.LogOutput, error) {
	var extra []logpkg.Output
	var forward *ingest.LogOutput
	if cfg.ReportLogLevel != "" {
		lvl, err := logpkg.ParseLevel(cfg.ReportLogLevel)
		if err != nil {
			return nil, nil, err
		}
		forward = ingest.NewLogOutput(lvl, Progname, 0)
		extra = append(extra, forward)
	}
	logger, err := logpkg.ApplyConfig(&cfg.Log, extra...)
	if err != nil {
		if forward != nil {
			_ = forward.Close()
		}
		return nil, nil, err
	}
	return logger, forward, nil
}

// Run starts gRPC and HTTP servers and blocks until ctx is cancelled or a
// server fails.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	procLogger, forward, err := buildLogger(opts.Config)
	if err != nil {
		return err
	}
	if c, ok := procLogger.(io.Closer); ok {
		defer c.Close()
	}

	// Redirect stdlib logs (e.g., Pebble) to our logger
	logpkg.RedirectStdLog(procLogger)

	rt, err := runtime.Open(runtime.Options{
		DataDir:       storeDir(opts.DataDir),
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Config:        opts.Config,
		Logger:        procLogger,
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	if forward != nil {
		forward.Attach(rt.Store())
		// Drain before the backend closes.
		defer forward.Close()
	}

	procLogger.Info("Starting logwindow server",
		logpkg.Str("grpc", opts.GRPCAddr),
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("backend", opts.Config.Backend),
		logpkg.Str("level", opts.Config.Log.Level),
		logpkg.Str("format", opts.Config.Log.Format),
		logpkg.Str("report_log_level", opts.Config.ReportLogLevel),
	)

	gsrv := grpcserver.New(rt, procLogger)
	hsrv := httpserver.New(rt, procLogger)

	sctx, cancel := context.WithCancel(sctx)
	defer cancel()
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		serveErr error
	)
	fail := func(name string, err error) {
		procLogger.Error(name+" server failed", logpkg.Err(err))
		errOnce.Do(func() { serveErr = err })
		cancel()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gsrv.ListenAndServe(sctx, opts.GRPCAddr); err != nil && sctx.Err() == nil {
			fail("grpc", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, opts.HTTPAddr); err != nil && sctx.Err() == nil {
			fail("http", err)
		}
	}()

	<-sctx.Done()
	// Stop the servers before closing the runtime/DB.
	gsrv.Close()
	hsrv.Close()
	wg.Wait()
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}
	procLogger.Info("logwindow server stopped")
	return nil
}
