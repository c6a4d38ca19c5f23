package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/fintrack/internal/domain"
)

func fastRetrier() *Retrier {
	r := NewRetrier(zerolog.Nop())
	r.initialInterval = time.Millisecond
	r.maxInterval = 2 * time.Millisecond
	r.maxElapsedTime = time.Second
	return r
}

func testBatch() *domain.SettlementBatch {
	now := time.Date(2024, 5, 6, 0, 1, 0, 0, time.FixedZone("CST", 8*60*60))
	ids := 0
	return domain.BuildSettlement("2024-05-06", domain.InterestTotals{
		Loan:      decimal.NewFromInt(50),
		Injection: decimal.NewFromInt(3),
		Deposit:   decimal.Zero,
	}, now, func() string {
		ids++
		return "01HX" + string(rune('A'+ids))
	})
}

func TestSettlementRepository_IsSettled(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := newSettlementRepositoryWithPool(mock, fastRetrier())

	t.Run("settled", func(t *testing.T) {
		mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM settlement_runs WHERE settle_key = \$1\)[\s\S]*remark ~ \$2`).
			WithArgs("2024-05-06", `(^|\s)autoSettleKey:2024-05-06(\s|$)`).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		settled, err := repo.IsSettled(ctx, "2024-05-06")
		require.NoError(t, err)
		assert.True(t, settled)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure", func(t *testing.T) {
		dbErr := errors.New("connection reset")
		mock.ExpectQuery(`FROM settlement_runs`).
			WithArgs("2024-05-07", `(^|\s)autoSettleKey:2024-05-07(\s|$)`).
			WillReturnError(dbErr)

		_, err := repo.IsSettled(ctx, "2024-05-07")
		assert.ErrorIs(t, err, domain.ErrStorage)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSettlementRepository_Save(t *testing.T) {
	ctx := context.Background()
	batch := testBatch()
	require.Len(t, batch.Transactions, 2)

	t.Run("success", func(t *testing.T) {
		mock := newMockPool(t)
		repo := newSettlementRepositoryWithPool(mock, fastRetrier())

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO settlement_runs`).
			WithArgs(anySettlementRunArgs()...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCopyFrom(pgx.Identifier{"transactions"}, transactionColumns).
			WillReturnResult(2)
		mock.ExpectCommit()

		require.NoError(t, repo.Save(ctx, batch))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate period", func(t *testing.T) {
		mock := newMockPool(t)
		repo := newSettlementRepositoryWithPool(mock, fastRetrier())

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO settlement_runs`).
			WithArgs(anySettlementRunArgs()...).
			WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
		mock.ExpectRollback()

		err := repo.Save(ctx, batch)
		assert.ErrorIs(t, err, domain.ErrAlreadySettled)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retries serialization failure", func(t *testing.T) {
		mock := newMockPool(t)
		repo := newSettlementRepositoryWithPool(mock, fastRetrier())

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO settlement_runs`).
			WithArgs(anySettlementRunArgs()...).
			WillReturnError(&pgconn.PgError{Code: pgErrSerializationFailure})
		mock.ExpectRollback()
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO settlement_runs`).
			WithArgs(anySettlementRunArgs()...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCopyFrom(pgx.Identifier{"transactions"}, transactionColumns).
			WillReturnResult(2)
		mock.ExpectCommit()

		require.NoError(t, repo.Save(ctx, batch))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("copy failure rolls back", func(t *testing.T) {
		mock := newMockPool(t)
		repo := newSettlementRepositoryWithPool(mock, fastRetrier())

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO settlement_runs`).
			WithArgs(anySettlementRunArgs()...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCopyFrom(pgx.Identifier{"transactions"}, transactionColumns).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err := repo.Save(ctx, batch)
		assert.ErrorIs(t, err, domain.ErrStorage)
		assert.NotErrorIs(t, err, domain.ErrAlreadySettled)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSettlementRepository_ListRuns(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := newSettlementRepositoryWithPool(mock, fastRetrier())
	createdAt := time.Date(2024, 5, 6, 0, 1, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM settlement_runs`).
		WithArgs(10, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"settle_key", "settle_id", "inserted", "loan_interest", "injection_interest", "deposit_interest", "test_mode", "created_at",
		}).AddRow("2024-05-06", "1714924860000", 2, "50", "3", "0", false, createdAt))

	runs, err := repo.ListRuns(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	assert.Equal(t, "2024-05-06", runs[0].Key)
	assert.Equal(t, 2, runs[0].Inserted)
	assert.True(t, runs[0].LoanInterest.Equal(decimal.NewFromInt(50)))
	assert.True(t, runs[0].DepositInterest.IsZero())
	assert.Equal(t, createdAt, runs[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepository_GetRun(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := newSettlementRepositoryWithPool(mock, fastRetrier())
	createdAt := time.Date(2024, 5, 6, 0, 1, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(`FROM settlement_runs WHERE settle_key = \$1`).
			WithArgs("2024-05-06").
			WillReturnRows(pgxmock.NewRows([]string{
				"settle_key", "settle_id", "inserted", "loan_interest", "injection_interest", "deposit_interest", "test_mode", "created_at",
			}).AddRow("2024-05-06", "1714924860000", 2, "50", "3", "0", false, createdAt))

		run, err := repo.GetRun(ctx, "2024-05-06")
		require.NoError(t, err)
		assert.Equal(t, 2, run.Inserted)
		assert.True(t, run.InjectionInterest.Equal(decimal.NewFromInt(3)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`FROM settlement_runs WHERE settle_key = \$1`).
			WithArgs("2030-01-01").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetRun(ctx, "2030-01-01")
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
		assert.NotErrorIs(t, err, domain.ErrStorage)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSettlementRepository_SumRows(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := newSettlementRepositoryWithPool(mock, fastRetrier())

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(`FROM transactions\s+WHERE status = 'approved'`).
			WithArgs("2024-05-06").
			WillReturnRows(pgxmock.NewRows([]string{"count", "income", "expense"}).AddRow(2, "50", "3"))

		sums, err := repo.SumRows(ctx, "2024-05-06")
		require.NoError(t, err)
		assert.Equal(t, 2, sums.Count)
		assert.True(t, sums.Income.Equal(decimal.NewFromInt(50)))
		assert.True(t, sums.Expense.Equal(decimal.NewFromInt(3)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		dbErr := errors.New("connection reset")
		mock.ExpectQuery(`FROM transactions`).
			WithArgs("2024-05-07").
			WillReturnError(dbErr)

		_, err := repo.SumRows(ctx, "2024-05-07")
		assert.ErrorIs(t, err, domain.ErrStorage)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// anySettlementRunArgs matches the eight positional arguments of the
// settlement_runs insert without constraining their values.
func anySettlementRunArgs() []interface{} {
	args := make([]interface{}, 8)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}
