package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/fintrack/internal/domain"
)

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now returns the current time.
func (f ClockFunc) Now() time.Time { return f() }

// SettlementConfig holds the startup settings of the settlement job.
type SettlementConfig struct {
	Mode     domain.Mode
	Location *time.Location
	LockTTL  time.Duration
}

// SettlementUseCase runs periodic interest settlement.
type SettlementUseCase struct {
	transactions TransactionRepository
	settlements  SettlementRepository
	locker       Locker
	clock        Clock
	idGen        IDGenerator
	cfg          SettlementConfig
	logger       zerolog.Logger
}

// NewSettlementUseCase creates a new SettlementUseCase.
func NewSettlementUseCase(
	transactions TransactionRepository,
	settlements SettlementRepository,
	locker Locker,
	clock Clock,
	idGen IDGenerator,
	cfg SettlementConfig,
	logger zerolog.Logger,
) *SettlementUseCase {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	if clock == nil {
		clock = ClockFunc(time.Now)
	}

	return &SettlementUseCase{
		transactions: transactions,
		settlements:  settlements,
		locker:       locker,
		clock:        clock,
		idGen:        idGen,
		cfg:          cfg,
		logger:       logger,
	}
}

// SettleInput describes one invocation.
type SettleInput struct {
	// Scheduled is true for scheduler-originated calls, which are subject
	// to the settlement window.
	Scheduled bool
}

// SettleResult is the outcome of a run.
type SettleResult struct {
	Key     string
	Skipped bool
	Reason  domain.SkipReason
	Totals  domain.InterestTotals
	Run     *domain.SettlementRun
}

func skipped(key string, reason domain.SkipReason) *SettleResult {
	return &SettleResult{Key: key, Skipped: true, Reason: reason}
}

// Settle computes and inserts the interest of the current period at most once.
func (uc *SettlementUseCase) Settle(ctx context.Context, input SettleInput) (*SettleResult, error) {
	now := uc.clock.Now().In(uc.cfg.Location)
	key := uc.cfg.Mode.PeriodKey(now)

	log := uc.logger.With().
		Str("settle_key", key).
		Bool("scheduled", input.Scheduled).
		Bool("test_mode", uc.cfg.Mode.TestMode).
		Logger()

	if input.Scheduled && uc.cfg.Mode.Gated(now) {
		log.Debug().Time("now", now).Msg("outside settlement window")
		return skipped(key, domain.SkipOutsideWindow), nil
	}

	if uc.locker != nil {
		release, err := uc.locker.Acquire(ctx, key, uc.cfg.LockTTL)
		switch {
		case errors.Is(err, domain.ErrLockNotAcquired):
			log.Info().Msg("settlement already running for period")
			return skipped(key, domain.SkipAlreadySettled), nil
		case err != nil:
			// The ledger primary key still guarantees a single run.
			log.Warn().Err(err).Msg("settlement lock unavailable, continuing without it")
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					log.Warn().Err(err).Msg("failed to release settlement lock")
				}
			}()
		}
	}

	settled, err := uc.settlements.IsSettled(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check settlement %s: %w", key, err)
	}
	if settled {
		log.Info().Msg("period already settled")
		return skipped(key, domain.SkipAlreadySettled), nil
	}

	rows, err := uc.transactions.ListApprovedPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved transactions: %w", err)
	}

	totals := domain.Aggregate(rows)
	batch := domain.BuildSettlement(key, totals, now, uc.idGen.Generate)
	batch.TestMode = uc.cfg.Mode.TestMode

	if len(batch.Transactions) == 0 {
		log.Info().Int("rows", len(rows)).Msg("no interest due")
		result := skipped(key, domain.SkipNoInterest)
		result.Totals = totals
		return result, nil
	}

	if err := uc.settlements.Save(ctx, batch); err != nil {
		if errors.Is(err, domain.ErrAlreadySettled) {
			log.Info().Msg("period settled concurrently")
			return skipped(key, domain.SkipAlreadySettled), nil
		}
		return nil, fmt.Errorf("failed to save settlement %s: %w", key, err)
	}

	run := batch.Run()
	log.Info().
		Str("settle_id", run.SettleID).
		Int("inserted", run.Inserted).
		Str("loan_interest", totals.Loan.String()).
		Str("injection_interest", totals.Injection.String()).
		Str("deposit_interest", totals.Deposit.String()).
		Msg("settlement completed")

	return &SettleResult{Key: key, Totals: totals, Run: run}, nil
}

// ListRuns returns recent settlement runs.
func (uc *SettlementUseCase) ListRuns(ctx context.Context, limit, offset int) ([]*domain.SettlementRun, error) {
	limit, offset, err := domain.ValidatePagination(limit, offset)
	if err != nil {
		return nil, err
	}

	return uc.settlements.ListRuns(ctx, limit, offset)
}
