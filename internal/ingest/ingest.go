package ingest

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/rzbill/logwindow/internal/logstore"
)

// Reporter receives captured events. *logstore.Store implements it.
type Reporter interface {
	Report(ctx context.Context, p logstore.ReportParams) error
}

var _ Reporter = (*logstore.Store)(nil)

// callerTrace renders the current goroutine's stack as "file:line in func"
// lines, skipping skip frames. Frames carry no addresses or goroutine ids,
// so repeated failures at the same site share a grouping key.
func callerTrace(skip int) string {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var b strings.Builder
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, "runtime.") {
			fmt.Fprintf(&b, "%s:%d in %s\n", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
