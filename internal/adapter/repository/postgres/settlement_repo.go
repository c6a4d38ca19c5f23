package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/fintrack/internal/domain"
)

var transactionColumns = []string{
	"id", "type", "client", "principal", "rate", "status", "remark",
	"settle_id", "settle_key", "source", "timestamp", "created_by", "creator_id", "created_at",
}

// SettlementRepository implements usecase.SettlementRepository and
// usecase.SettlementLedger.
type SettlementRepository struct {
	pool    pgxPool
	retrier *Retrier
}

// NewSettlementRepository creates a new SettlementRepository.
func NewSettlementRepository(pool *pgxpool.Pool, logger zerolog.Logger) *SettlementRepository {
	return newSettlementRepositoryWithPool(pool, NewRetrier(logger))
}

func newSettlementRepositoryWithPool(pool pgxPool, retrier *Retrier) *SettlementRepository {
	return &SettlementRepository{pool: pool, retrier: retrier}
}

// IsSettled reports whether the period already has a ledger entry, a keyed
// settlement row, or an approved interest row carrying the remark marker.
func (r *SettlementRepository) IsSettled(ctx context.Context, key string) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM settlement_runs WHERE settle_key = $1)
			OR EXISTS (
				SELECT 1 FROM transactions
				WHERE status = 'approved'
				  AND type IN ('interest_income', 'interest_expense')
				  AND (settle_key = $1 OR remark ~ $2)
				LIMIT 1
			)
	`

	var settled bool
	if err := r.pool.QueryRow(ctx, query, key, domain.MarkerPattern(key)).Scan(&settled); err != nil {
		return false, fmt.Errorf("%w: check settlement %s: %w", domain.ErrStorage, key, err)
	}

	return settled, nil
}

// Save writes the ledger entry and the settlement rows in one transaction.
// The settlement_runs primary key turns a concurrent duplicate into
// domain.ErrAlreadySettled.
func (r *SettlementRepository) Save(ctx context.Context, batch *domain.SettlementBatch) error {
	return r.retrier.Retry(ctx, func() error {
		return inTx(ctx, r.pool, func(tx pgx.Tx) error {
			return r.save(ctx, tx, batch)
		})
	})
}

func (r *SettlementRepository) save(ctx context.Context, tx pgx.Tx, batch *domain.SettlementBatch) error {
	run := batch.Run()

	_, err := tx.Exec(ctx, `
		INSERT INTO settlement_runs (settle_key, settle_id, inserted, loan_interest, injection_interest, deposit_interest, test_mode, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		run.Key,
		run.SettleID,
		run.Inserted,
		decimalToNumeric(run.LoanInterest),
		decimalToNumeric(run.InjectionInterest),
		decimalToNumeric(run.DepositInterest),
		run.TestMode,
		timeToPgTimestamptz(run.CreatedAt),
	)
	if err != nil {
		if hasCode(err, pgErrUniqueViolation) {
			return fmt.Errorf("%w: %s", domain.ErrAlreadySettled, run.Key)
		}
		return fmt.Errorf("%w: insert settlement run: %w", domain.ErrStorage, err)
	}

	rows := make([][]any, 0, len(batch.Transactions))
	for _, t := range batch.Transactions {
		rows = append(rows, []any{
			t.ID,
			string(t.Type),
			t.Client,
			textToNumeric(t.Principal),
			textToNumeric(t.Rate),
			string(t.Status),
			t.Remark,
			t.SettleID,
			t.SettleKey,
			string(t.Source),
			t.Timestamp,
			t.CreatedBy,
			t.CreatorID,
			timeToPgTimestamptz(t.CreatedAt),
		})
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"transactions"}, transactionColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("%w: insert settlement transactions: %w", domain.ErrStorage, err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("%w: inserted %d of %d settlement transactions", domain.ErrStorage, n, len(rows))
	}

	return nil
}

const runColumns = `settle_key, settle_id, inserted, loan_interest::text, injection_interest::text, deposit_interest::text, test_mode, created_at`

// ListRuns returns recent settlement runs, newest first.
func (r *SettlementRepository) ListRuns(ctx context.Context, limit, offset int) ([]*domain.SettlementRun, error) {
	query := `SELECT ` + runColumns + `
		FROM settlement_runs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list settlement runs: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	var runs []*domain.SettlementRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan settlement run: %w", domain.ErrStorage, err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate settlement runs: %w", domain.ErrStorage, err)
	}

	return runs, nil
}

// GetRun returns the ledger entry of key.
func (r *SettlementRepository) GetRun(ctx context.Context, key string) (*domain.SettlementRun, error) {
	query := `SELECT ` + runColumns + ` FROM settlement_runs WHERE settle_key = $1`

	run, err := scanRun(r.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, key)
		}
		return nil, fmt.Errorf("%w: get settlement run %s: %w", domain.ErrStorage, key, err)
	}

	return run, nil
}

// SumRows totals the approved interest rows tagged with key.
func (r *SettlementRepository) SumRows(ctx context.Context, key string) (domain.SettledRows, error) {
	query := `
		SELECT
			count(*),
			COALESCE(sum(principal) FILTER (WHERE type = 'interest_income'), 0)::text,
			COALESCE(sum(principal) FILTER (WHERE type = 'interest_expense'), 0)::text
		FROM transactions
		WHERE status = 'approved'
		  AND type IN ('interest_income', 'interest_expense')
		  AND settle_key = $1
	`

	var (
		sums    domain.SettledRows
		income  string
		expense string
	)
	if err := r.pool.QueryRow(ctx, query, key).Scan(&sums.Count, &income, &expense); err != nil {
		return domain.SettledRows{}, fmt.Errorf("%w: sum settlement rows %s: %w", domain.ErrStorage, key, err)
	}

	sums.Income = domain.ParseLenient(income)
	sums.Expense = domain.ParseLenient(expense)

	return sums, nil
}

func scanRun(row pgx.Row) (*domain.SettlementRun, error) {
	var (
		run       domain.SettlementRun
		loan      string
		injection string
		deposit   string
		createdAt time.Time
	)

	if err := row.Scan(&run.Key, &run.SettleID, &run.Inserted, &loan, &injection, &deposit, &run.TestMode, &createdAt); err != nil {
		return nil, err
	}

	run.LoanInterest = domain.ParseLenient(loan)
	run.InjectionInterest = domain.ParseLenient(injection)
	run.DepositInterest = domain.ParseLenient(deposit)
	run.CreatedAt = createdAt

	return &run, nil
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(d.String())

	return n
}

func textToNumeric(s string) pgtype.Numeric {
	return decimalToNumeric(domain.ParseLenient(s))
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
