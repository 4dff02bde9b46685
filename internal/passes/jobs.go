package passes

import (
	"context"
	"log/slog"
	"time"

	"templeq/pkg/logger"
)

// CompactionJob periodically drops used-pass entries past retention
type CompactionJob struct {
	issuer   *Issuer
	interval time.Duration
	logger   *logger.Logger
	done     chan struct{}
}

// NewCompactionJob creates a compaction job; a non-positive interval means hourly
func NewCompactionJob(issuer *Issuer, interval time.Duration) *CompactionJob {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CompactionJob{
		issuer:   issuer,
		interval: interval,
		logger:   logger.GetDefault(),
		done:     make(chan struct{}),
	}
}

// Start runs the compaction loop in the background
func (j *CompactionJob) Start(ctx context.Context) {
	j.logger.Info("Starting used pass compaction", slog.Duration("interval", j.interval))
	go j.run(ctx)
}

// Stop ends the compaction loop
func (j *CompactionJob) Stop() {
	close(j.done)
	j.logger.Info("Used pass compaction stopped")
}

func (j *CompactionJob) run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.RunOnce(ctx)
		case <-j.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce performs a single compaction pass and returns the entries removed
func (j *CompactionJob) RunOnce(ctx context.Context) int {
	removed, err := j.issuer.Compact(ctx)
	if err != nil {
		j.logger.ErrorWithContext(ctx, "Error compacting used passes", err, nil)
		return 0
	}
	if removed > 0 {
		j.logger.InfoWithContext(ctx, "Compacted used passes", map[string]interface{}{"removed": removed})
	}
	return removed
}
