package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/fintrack/internal/domain"
)

// ReconciliationUseCase checks settlement runs against the rows they wrote.
type ReconciliationUseCase struct {
	runs   SettlementRepository
	ledger SettlementLedger
	clock  Clock
	logger zerolog.Logger
}

// NewReconciliationUseCase creates a new reconciliation use case.
func NewReconciliationUseCase(
	runs SettlementRepository,
	ledger SettlementLedger,
	clock Clock,
	logger zerolog.Logger,
) *ReconciliationUseCase {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	return &ReconciliationUseCase{
		runs:   runs,
		ledger: ledger,
		clock:  clock,
		logger: logger,
	}
}

// ReconcileRun compares the ledger entry of key with the sum of its rows.
func (uc *ReconciliationUseCase) ReconcileRun(ctx context.Context, key string) (*domain.ReconciliationResult, error) {
	if err := domain.ValidatePeriodKey(key); err != nil {
		return nil, err
	}

	run, err := uc.ledger.GetRun(ctx, key)
	if err != nil {
		return nil, err
	}

	return uc.reconcile(ctx, run)
}

func (uc *ReconciliationUseCase) reconcile(ctx context.Context, run *domain.SettlementRun) (*domain.ReconciliationResult, error) {
	rows, err := uc.ledger.SumRows(ctx, run.Key)
	if err != nil {
		return nil, err
	}

	result := domain.Reconcile(run, rows, uc.clock.Now().UTC())
	if !result.IsReconciled {
		uc.logger.Warn().
			Str("settle_key", run.Key).
			Str("income_difference", result.IncomeDifference().String()).
			Str("expense_difference", result.ExpenseDifference().String()).
			Int("recorded_rows", result.RecordedRows).
			Int("actual_rows", result.ActualRows).
			Msg("settlement run does not reconcile")
	}

	return result, nil
}

// ReconciliationReport summarizes the most recent runs.
type ReconciliationReport struct {
	TotalRuns      int
	ReconciledRuns int
	Discrepancies  []*domain.ReconciliationResult
	CheckedAt      time.Time
}

// GenerateReport reconciles up to limit of the most recent runs.
func (uc *ReconciliationUseCase) GenerateReport(ctx context.Context, limit int) (*ReconciliationReport, error) {
	limit, _, err := domain.ValidatePagination(limit, 0)
	if err != nil {
		return nil, err
	}

	runs, err := uc.runs.ListRuns(ctx, limit, 0)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		TotalRuns:     len(runs),
		Discrepancies: make([]*domain.ReconciliationResult, 0),
		CheckedAt:     uc.clock.Now().UTC(),
	}

	for _, run := range runs {
		result, err := uc.reconcile(ctx, run)
		if err != nil {
			return nil, fmt.Errorf("reconcile run %s: %w", run.Key, err)
		}

		if result.IsReconciled {
			report.ReconciledRuns++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	return report, nil
}
