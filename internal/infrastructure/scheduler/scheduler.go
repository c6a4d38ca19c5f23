package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/fintrack/internal/infrastructure/metrics"
	"github.com/iho/fintrack/internal/usecase"
)

const trigger = "scheduler"

// Settler runs one settlement attempt.
type Settler interface {
	Settle(ctx context.Context, input usecase.SettleInput) (*usecase.SettleResult, error)
}

// Config for Scheduler.
type Config struct {
	Settler  Settler
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	Interval time.Duration // Polling interval
	Timeout  time.Duration // Per-run deadline
}

// Scheduler triggers scheduler-originated settlement runs on a fixed
// interval. Runs outside the settlement window return immediately, so the
// interval only has to be shorter than the window.
type Scheduler struct {
	settler  Settler
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	timeout  time.Duration
}

// New creates a new Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = usecase.DefaultRunTimeout
	}

	return &Scheduler{
		settler:  cfg.Settler,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
	}
}

// Start runs until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.interval).
		Msg("settlement scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("settlement scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	result, err := s.settler.Settle(runCtx, usecase.SettleInput{Scheduled: true})
	if err != nil {
		s.metrics.ObserveRun(trigger, metrics.OutcomeError, "", time.Since(start))
		if ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("scheduled settlement failed")
		}
		return
	}

	if result.Skipped {
		s.metrics.ObserveRun(trigger, metrics.OutcomeSkipped, string(result.Reason), time.Since(start))
		s.logger.Debug().
			Str("settle_key", result.Key).
			Str("reason", string(result.Reason)).
			Msg("scheduled settlement skipped")
		return
	}

	s.metrics.ObserveRun(trigger, metrics.OutcomeSettled, "", time.Since(start))
	s.metrics.ObserveSettled(
		result.Totals.Loan.InexactFloat64(),
		result.Totals.Injection.InexactFloat64(),
		result.Totals.Deposit.InexactFloat64(),
		result.Run.Inserted,
		result.Run.CreatedAt,
	)
	s.logger.Info().
		Str("settle_key", result.Key).
		Str("settle_id", result.Run.SettleID).
		Int("inserted", result.Run.Inserted).
		Msg("scheduled settlement completed")
}
