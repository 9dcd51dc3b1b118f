// Package retention implements C16: the periodic job that prunes
// ApiCallRecord rows older than the configured retention window, in the
// ticker/re-entrancy-guard shape the teacher's janitor worker used for
// its own cleanup cycle (spec.md §4.16).
package retention

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jeffreasy/mailgate/internal/storage"
)

// DefaultInterval is how often the job runs when not configured.
const DefaultInterval = time.Hour

// DefaultWindowDays is how far back ApiCallRecord rows are kept.
const DefaultWindowDays = 30

// Job runs the retention sweep on a ticker, guarding against overlapping
// executions with a running flag.
type Job struct {
	repo     *storage.ApiCallRepo
	logger   *slog.Logger
	interval time.Duration
	window   time.Duration
	running  int32
	stop     chan struct{}
}

// New builds a Job. interval <= 0 and windowDays <= 0 fall back to the
// package defaults.
func New(repo *storage.ApiCallRepo, logger *slog.Logger, interval time.Duration, windowDays int) *Job {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Job{
		repo:     repo,
		logger:   logger,
		interval: interval,
		window:   time.Duration(windowDays) * 24 * time.Hour,
		stop:     make(chan struct{}),
	}
}

// Run blocks, ticking every interval and deleting expired rows, until
// Stop is called or ctx is canceled. It runs once immediately so a
// freshly-started process doesn't wait a full interval before its first
// sweep.
func (j *Job) Run(ctx context.Context) {
	j.sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep(ctx)
		case <-ctx.Done():
			return
		case <-j.stop:
			return
		}
	}
}

// Stop ends Run without blocking on an in-flight sweep. The ticker must
// not keep the process alive past this call, per spec.md §4.16.
func (j *Job) Stop() {
	close(j.stop)
}

func (j *Job) sweep(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&j.running, 0, 1) {
		j.logger.Warn("retention sweep skipped: previous run still in progress")
		return
	}
	defer atomic.StoreInt32(&j.running, 0)

	cutoff := time.Now().Add(-j.window)
	deleted, err := j.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("retention sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		j.logger.Info("retention sweep complete", "deleted", deleted, "cutoff", cutoff)
	}
}
