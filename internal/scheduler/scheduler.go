package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"quizgate/internal/clock"
)

// DefaultInterval is how often the rollover sweep runs
const DefaultInterval = time.Minute

// Ledger is the part of the quota ledger the scheduler drives
type Ledger interface {
	DayRollover(ctx context.Context, now time.Time) (int, error)
}

// Scheduler runs the day-rollover sweep periodically. Ledger reads roll
// counters over lazily as well; the sweep keeps stored rows current for
// clients that read storage directly.
type Scheduler struct {
	ledger   Ledger
	clock    clock.Clock
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	after    []func(ctx context.Context)
	logger   *slog.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(ledger Ledger, clk clock.Clock, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		ledger:   ledger,
		clock:    clk,
		interval: interval,
		stopChan: make(chan struct{}),
		logger:   logger.With("component", "scheduler"),
	}
}

// AfterSweep registers fn to run after every successful sweep. Reads may
// already have rolled a day over lazily, so hooks run even when the sweep
// itself found nothing to do. Call before Start.
func (s *Scheduler) AfterSweep(fn func(ctx context.Context)) {
	s.after = append(s.after, fn)
}

// Start begins the scheduler loop. It sweeps once immediately.
func (s *Scheduler) Start() {
	s.logger.Info("Scheduler started", "interval", s.interval)
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick()
	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stopChan:
			s.logger.Info("Scheduler stopped")
			return
		}
	}
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// RunOnce performs a single sweep and reports how many apps rolled over
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	return s.ledger.DayRollover(ctx, s.clock.Now())
}

// tick performs one cycle of the scheduler
func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	n, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("Failed to roll over daily counters", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("Daily counters rolled over", "apps", n)
	} else {
		s.logger.Debug("Scheduler tick", "rolled_over", 0)
	}

	for _, fn := range s.after {
		fn(ctx)
	}
}
