package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"

	"github.com/iho/fintrack/internal/domain"
)

func TestInTxCommits(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectCommit()

	called := false
	err := inTx(context.Background(), mockPool, func(tx pgx.Tx) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected fn to run")
	}

	assertExpectations(t, mockPool)
}

func TestInTxBeginError(t *testing.T) {
	mockPool := newMockPool(t)
	mockErr := errors.New("begin failed")
	mockPool.ExpectBegin().WillReturnError(mockErr)

	err := inTx(context.Background(), mockPool, func(pgx.Tx) error {
		t.Fatal("fn must not run without a transaction")
		return nil
	})
	if !errors.Is(err, mockErr) || !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected wrapped begin error, got %v", err)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectRollback()

	fnErr := errors.New("boom")
	err := inTx(context.Background(), mockPool, func(pgx.Tx) error {
		return fnErr
	})
	if !errors.Is(err, fnErr) {
		t.Fatalf("expected fn error, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestInTxCommitError(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	commitErr := errors.New("connection reset")
	mockPool.ExpectCommit().WillReturnError(commitErr)

	err := inTx(context.Background(), mockPool, func(pgx.Tx) error { return nil })
	if !errors.Is(err, commitErr) || !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected wrapped commit error, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func assertExpectations(t *testing.T, pool pgxmock.PgxPoolIface) {
	t.Helper()
	if err := pool.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations were not met: %v", err)
	}
}
