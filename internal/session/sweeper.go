package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically deletes sessions idle for longer than the TTL.
type Sweeper struct {
	logger    *slog.Logger
	store     Store
	ttl       time.Duration
	schedule  string
	cron      *cron.Cron
	now       func() time.Time
	onExpired func(int64)
}

// NewSweeper creates a sweeper. onExpired, when non-nil, receives the number
// of sessions removed by each run.
func NewSweeper(log *slog.Logger, store Store, ttl time.Duration, schedule string, onExpired func(int64)) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		logger:    log.With(slog.String("service", "session_sweeper")),
		store:     store,
		ttl:       ttl,
		schedule:  schedule,
		now:       time.Now,
		onExpired: onExpired,
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	if s.ttl <= 0 {
		s.logger.Info("session sweeper disabled", slog.Duration("ttl", s.ttl))
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.SweepOnce(ctx); err != nil {
			s.logger.Error("sweep sessions failed", slog.Any("error", err))
		}
	}); err != nil {
		return fmt.Errorf("schedule session sweep %q: %w", s.schedule, err)
	}
	s.cron = c
	c.Start()
	s.logger.Info("session sweeper started", slog.String("schedule", s.schedule), slog.Duration("ttl", s.ttl))
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SweepOnce deletes sessions last updated before now minus the TTL.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.ttl)
	n, err := s.store.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired idle sessions", slog.Int64("count", n), slog.Time("cutoff", cutoff))
	}
	if s.onExpired != nil {
		s.onExpired(n)
	}
	return n, nil
}
