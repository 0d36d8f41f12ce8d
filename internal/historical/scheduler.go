package historical

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler refreshes the served segments on a periodic interval.
type Scheduler struct {
	interval time.Duration
	manager  *Manager
	metrics  *Metrics
}

func NewScheduler(interval time.Duration, manager *Manager, metrics *Metrics) *Scheduler {
	return &Scheduler{
		interval: interval,
		manager:  manager,
		metrics:  metrics,
	}
}

// RunOnce performs a single refresh. Failures are logged and counted; the
// previously served segments stay in place.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	_, err := s.manager.Refresh(ctx)
	s.metrics.refreshed(len(s.manager.Segments()), err)
	if err != nil {
		slog.Error("[Scheduler] Segment refresh failed", "error", err)
	}
	return err
}

// Start refreshes every interval until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting segment refresh scheduler", "interval", s.interval)

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")
			return nil
		}
	}
}
