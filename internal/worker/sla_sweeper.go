package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BreachSweeper marks and publishes newly breached tickets.
type BreachSweeper interface {
	SweepSLABreaches(ctx context.Context, now time.Time) (int, error)
}

// SLASweeper runs the breach sweep on a fixed interval.
type SLASweeper struct {
	sweeper  BreachSweeper
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewSLASweeper builds a sweeper. A non-positive interval defaults to one minute.
func NewSLASweeper(sweeper BreachSweeper, interval time.Duration, logger *zap.Logger) *SLASweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SLASweeper{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *SLASweeper) Run(ctx context.Context) {
	s.logger.Info("sla sweeper started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sla sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Start runs the sweeper in the background. The returned stop cancels it and
// blocks until any in-flight sweep has returned.
func (s *SLASweeper) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// RunOnce performs a single sweep and returns the number of new breaches.
func (s *SLASweeper) RunOnce(ctx context.Context) int {
	count, err := s.sweeper.SweepSLABreaches(ctx, s.now())
	if err != nil {
		s.logger.Error("sla sweep failed", zap.Error(err))
	}
	return count
}
