package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rzbill/logwindow/internal/logstore"
	"github.com/rzbill/logwindow/internal/message"
	"github.com/rzbill/logwindow/pkg/log"
)

// skipComponents are never forwarded so the store's own warnings cannot feed
// back into it.
var skipComponents = map[string]struct{}{
	"logstore": {},
	"ingest":   {},
	"storage":  {},
}

type reporterRef struct{ r Reporter }

// LogOutput is a log.Output that forwards entries at or above a level into a
// Reporter, so a service's own errors show up in its window. Entries are
// queued and reported from a single goroutine; when the queue is full they
// are dropped.
type LogOutput struct {
	min      log.Level
	progname string

	reporter atomic.Pointer[reporterRef]
	dropped  atomic.Int64

	mu     sync.RWMutex
	closed bool
	queue  chan logstore.ReportParams
	done   chan struct{}
}

var _ log.Output = (*LogOutput)(nil)

// NewLogOutput starts the forwarding goroutine. Nothing is reported until
// Attach is called; entries logged earlier are discarded.
func NewLogOutput(min log.Level, progname string, buffer int) *LogOutput {
	if buffer <= 0 {
		buffer = 256
	}
	o := &LogOutput{
		min:      min,
		progname: progname,
		queue:    make(chan logstore.ReportParams, buffer),
		done:     make(chan struct{}),
	}
	go o.run()
	return o
}

// Attach sets the destination. It may be called once the store exists,
// after the logger that owns this output was built.
func (o *LogOutput) Attach(r Reporter) {
	o.reporter.Store(&reporterRef{r: r})
}

// Dropped returns how many entries were discarded because the queue was full.
func (o *LogOutput) Dropped() int64 { return o.dropped.Load() }

func (o *LogOutput) Write(e *log.Entry, _ []byte) error {
	if e.Level < o.min || o.reporter.Load() == nil {
		return nil
	}
	if c, ok := e.Fields[log.ComponentKey].(string); ok {
		if _, skip := skipComponents[c]; skip {
			return nil
		}
	}
	p := logstore.ReportParams{
		Severity:  severityOf(e.Level),
		Progname:  o.progname,
		Text:      e.Message,
		Backtrace: e.Caller,
		Env:       envOf(e),
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return nil
	}
	select {
	case o.queue <- p:
	default:
		o.dropped.Add(1)
	}
	return nil
}

// Close drains the queue and stops the goroutine.
func (o *LogOutput) Close() error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()
	<-o.done
	return nil
}

func (o *LogOutput) run() {
	defer close(o.done)
	for p := range o.queue {
		ref := o.reporter.Load()
		if ref == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		_ = ref.r.Report(ctx, p)
		cancel()
	}
}

func severityOf(l log.Level) message.Severity {
	switch l {
	case log.DebugLevel:
		return message.Debug
	case log.InfoLevel:
		return message.Info
	case log.WarnLevel:
		return message.Warn
	case log.ErrorLevel:
		return message.Error
	case log.FatalLevel:
		return message.Fatal
	}
	return message.Unknown
}

func envOf(e *log.Entry) map[string]any {
	env := make(map[string]any, len(e.Fields)+2)
	for k, v := range e.Fields {
		switch v.(type) {
		case string, bool, int, int64, float64:
			env[k] = v
		default:
			env[k] = fmt.Sprint(v)
		}
	}
	if e.Error != nil {
		env["error"] = e.Error.Error()
	}
	return message.WithProcessEnv(env)
}
