package queue

import (
	"context"
	"log/slog"
	"time"

	"templeq/pkg/logger"
)

// SweepJob periodically evicts idle sessions from a Manager
type SweepJob struct {
	manager  *Manager
	interval time.Duration
	logger   *logger.Logger
	done     chan struct{}
}

// NewSweepJob creates a sweep job; a non-positive interval means every minute
func NewSweepJob(manager *Manager, interval time.Duration) *SweepJob {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SweepJob{
		manager:  manager,
		interval: interval,
		logger:   logger.GetDefault(),
		done:     make(chan struct{}),
	}
}

func (j *SweepJob) Start(ctx context.Context) {
	j.logger.Info("Starting session sweep", slog.Duration("interval", j.interval), slog.Duration("idle_ttl", j.manager.idleTTL))
	go j.run(ctx)
}

func (j *SweepJob) Stop() {
	close(j.done)
	j.logger.Info("Session sweep stopped")
}

func (j *SweepJob) run(ctx context.Context) {
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

// RunOnce performs a single sweep and returns the sessions evicted
func (j *SweepJob) RunOnce(ctx context.Context) int {
	removed := j.manager.Sweep(j.manager.now())
	if removed > 0 {
		j.logger.InfoWithContext(ctx, "Evicted idle sessions", map[string]interface{}{
			"removed":   removed,
			"remaining": j.manager.Len(),
		})
	}
	return removed
}
