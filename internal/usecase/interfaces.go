package usecase

import (
	"context"
	"time"

	"github.com/iho/fintrack/internal/domain"
)

// TransactionRepository defines data access for the shared transactions table.
type TransactionRepository interface {
	// ListApprovedPrincipal returns approved loan, injection and deposit rows.
	ListApprovedPrincipal(ctx context.Context) ([]*domain.Transaction, error)
}

// SettlementRepository defines data access for settlement runs.
type SettlementRepository interface {
	// IsSettled reports whether a run already exists for the period key.
	IsSettled(ctx context.Context, key string) (bool, error)
	// Save writes the run ledger entry and all its rows atomically.
	// Returns domain.ErrAlreadySettled when the key is already taken.
	Save(ctx context.Context, batch *domain.SettlementBatch) error
	// ListRuns returns recent runs, newest first.
	ListRuns(ctx context.Context, limit, offset int) ([]*domain.SettlementRun, error)
}

// SettlementLedger reads back what a run wrote.
type SettlementLedger interface {
	// GetRun returns the ledger entry for key, or domain.ErrRunNotFound.
	GetRun(ctx context.Context, key string) (*domain.SettlementRun, error)
	// SumRows totals the approved interest rows tagged with key.
	SumRows(ctx context.Context, key string) (domain.SettledRows, error)
}

// Locker serializes runs for the same period key across processes.
type Locker interface {
	// Acquire returns a release func, or domain.ErrLockNotAcquired.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}
