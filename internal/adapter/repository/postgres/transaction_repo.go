package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/fintrack/internal/domain"
)

// principalTypes are the row types that accrue interest.
var principalTypes = []string{
	string(domain.TransactionTypeLoan),
	string(domain.TransactionTypeInjection),
	string(domain.TransactionTypeDeposit),
}

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	pool pgxPool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return newTransactionRepositoryWithPool(pool)
}

func newTransactionRepositoryWithPool(pool pgxPool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// ListApprovedPrincipal returns approved loan, injection and deposit rows.
// Principal and rate come back as text so malformed values reach the domain
// unchanged.
func (r *TransactionRepository) ListApprovedPrincipal(ctx context.Context) ([]*domain.Transaction, error) {
	query := `
		SELECT id, type, principal::text, rate::text, status, created_at
		FROM transactions
		WHERE status = $1 AND type = ANY($2)
	`

	rows, err := r.pool.Query(ctx, query, string(domain.TransactionStatusApproved), principalTypes)
	if err != nil {
		return nil, fmt.Errorf("%w: list approved transactions: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		var (
			tx        domain.Transaction
			kind      string
			status    string
			principal *string
			rate      *string
			createdAt time.Time
		)

		if err := rows.Scan(&tx.ID, &kind, &principal, &rate, &status, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan transaction: %w", domain.ErrStorage, err)
		}

		tx.Type = domain.TransactionType(kind)
		tx.Status = domain.TransactionStatus(status)
		tx.Principal = deref(principal)
		tx.Rate = deref(rate)
		tx.CreatedAt = createdAt
		out = append(out, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate transactions: %w", domain.ErrStorage, err)
	}

	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
