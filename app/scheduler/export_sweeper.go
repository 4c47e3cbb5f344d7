// Package scheduler runs periodic maintenance jobs
package scheduler

import (
	"context"
	"log/slog"
	"time"

	businessflow "github.com/amirphl/viewiq/business_flow"
	"github.com/amirphl/viewiq/utils"
)

// StaleExportFailer is the part of the export flow the sweeper drives
type StaleExportFailer interface {
	FailStale(ctx context.Context, staleBefore time.Time) (int64, error)
}

var _ StaleExportFailer = (businessflow.ExportFlow)(nil)

// ExportSweeper periodically fails exports that stayed in progress past staleAfter
type ExportSweeper struct {
	exports    StaleExportFailer
	interval   time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

// NewExportSweeper creates a sweeper; zero durations fall back to a minute and a day
func NewExportSweeper(exports StaleExportFailer, interval, staleAfter time.Duration) *ExportSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	return &ExportSweeper{
		exports:    exports,
		interval:   interval,
		staleAfter: staleAfter,
		now:        utils.UTCNow,
	}
}

// Start launches the sweep loop in a background goroutine and returns a stop function
func (s *ExportSweeper) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()

	return cancel
}

// RunOnce fails every export last touched before now minus staleAfter
func (s *ExportSweeper) RunOnce(ctx context.Context) int64 {
	staleBefore := s.now().Add(-s.staleAfter)
	n, err := s.exports.FailStale(ctx, staleBefore)
	if err != nil {
		slog.ErrorContext(ctx, "scheduler: failed to sweep stale exports", "stale_before", staleBefore, "error", err)
		return n
	}
	if n > 0 {
		slog.InfoContext(ctx, "scheduler: failed stale exports", "count", n, "stale_before", staleBefore)
	}
	return n
}
