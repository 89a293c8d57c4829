package ingest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/rzbill/logwindow/internal/logstore"
	"github.com/rzbill/logwindow/internal/message"
	"github.com/rzbill/logwindow/pkg/log"
)

const reportTimeout = 2 * time.Second

// Recoverer is HTTP middleware that turns a handler panic into a reported
// Error message carrying the stack and the scrubbed request environment,
// then answers 500. http.ErrAbortHandler is re-panicked untouched.
func Recoverer(reporter Reporter, progname string, logger log.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.NewNop()
	}
	logger = logger.WithComponent("ingest")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				text := fmt.Sprint(rec)
				env := message.EnvFromRequest(r)
				if id := middleware.GetReqID(r.Context()); id != "" {
					env["request_id"] = id
				}
				ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), reportTimeout)
				defer cancel()
				err := reporter.Report(ctx, logstore.ReportParams{
					Severity:  message.Error,
					Progname:  progname,
					Text:      text,
					Backtrace: callerTrace(3),
					Env:       env,
				})
				if err != nil {
					logger.Warn("panic not recorded", log.Str("panic", text), log.Err(err))
				}
				logger.Error("panic recovered", log.Str("panic", text), log.Str("method", r.Method), log.Str("path", r.URL.Path))
				w.WriteHeader(http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
