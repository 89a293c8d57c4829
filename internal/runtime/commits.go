package runtime

import (
	"time"

	logpkg "github.com/rzbill/logwindow/pkg/log"
)

const slowCommitThreshold = 100 * time.Millisecond

// commitLogger reports Pebble batch commits that exceed threshold.
type commitLogger struct {
	logger    logpkg.Logger
	threshold time.Duration
}

func newCommitLogger(logger logpkg.Logger, threshold time.Duration) *commitLogger {
	return &commitLogger{logger: logger.WithComponent("storage"), threshold: threshold}
}

func (c *commitLogger) ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int) {
	if elapsed < c.threshold {
		return
	}
	c.logger.Warn("slow batch commit",
		logpkg.Duration("elapsed", elapsed),
		logpkg.Int("ops", numOps),
		logpkg.Int("bytes", bytes),
	)
}
