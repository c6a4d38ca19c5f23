package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/iho/fintrack/internal/domain"
)

// MemoryStore is an in-memory TransactionRepository, SettlementRepository
// and SettlementLedger.
// The Func fields override the default behaviour when set.
type MemoryStore struct {
	mu           sync.RWMutex
	transactions []*domain.Transaction
	runs         map[string]*domain.SettlementRun

	IsSettledFunc func(ctx context.Context, key string) (bool, error)
	SaveFunc      func(ctx context.Context, batch *domain.SettlementBatch) error
	ListFunc      func(ctx context.Context) ([]*domain.Transaction, error)
	SaveCalls     int
}

// NewMemoryStore creates a store seeded with rows.
func NewMemoryStore(rows ...*domain.Transaction) *MemoryStore {
	return &MemoryStore{
		transactions: rows,
		runs:         make(map[string]*domain.SettlementRun),
	}
}

// ListApprovedPrincipal returns approved loan, injection and deposit rows.
func (m *MemoryStore) ListApprovedPrincipal(ctx context.Context) ([]*domain.Transaction, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Transaction
	for _, tx := range m.transactions {
		if !tx.IsApproved() {
			continue
		}
		switch tx.Type {
		case domain.TransactionTypeLoan, domain.TransactionTypeInjection, domain.TransactionTypeDeposit:
			out = append(out, tx)
		}
	}
	return out, nil
}

// IsSettled reports whether a run or a marked interest row exists for key.
func (m *MemoryStore) IsSettled(ctx context.Context, key string) (bool, error) {
	if m.IsSettledFunc != nil {
		return m.IsSettledFunc(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.runs[key]; ok {
		return true, nil
	}
	for _, tx := range m.transactions {
		if !tx.IsApproved() {
			continue
		}
		if tx.Type != domain.TransactionTypeInterestIncome && tx.Type != domain.TransactionTypeInterestExpense {
			continue
		}
		if tx.SettleKey == key || domain.RemarkMarks(tx.Remark, key) {
			return true, nil
		}
	}
	return false, nil
}

// Save stores the batch unless its key is already taken.
func (m *MemoryStore) Save(ctx context.Context, batch *domain.SettlementBatch) error {
	m.mu.Lock()
	m.SaveCalls++
	m.mu.Unlock()
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, batch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[batch.Key]; ok {
		return domain.ErrAlreadySettled
	}
	m.runs[batch.Key] = batch.Run()
	m.transactions = append(m.transactions, batch.Transactions...)
	return nil
}

// ListRuns returns stored runs, newest first.
func (m *MemoryStore) ListRuns(ctx context.Context, limit, offset int) ([]*domain.SettlementRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]*domain.SettlementRun, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if offset >= len(runs) {
		return nil, nil
	}
	runs = runs[offset:]
	if limit < len(runs) {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetRun returns the stored run for key.
func (m *MemoryStore) GetRun(ctx context.Context, key string) (*domain.SettlementRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, key)
	}
	return run, nil
}

// SumRows totals the approved interest rows tagged with key.
func (m *MemoryStore) SumRows(ctx context.Context, key string) (domain.SettledRows, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sums := domain.SettledRows{Income: decimal.Zero, Expense: decimal.Zero}
	for _, tx := range m.transactions {
		if !tx.IsApproved() || tx.SettleKey != key {
			continue
		}
		switch tx.Type {
		case domain.TransactionTypeInterestIncome:
			sums.Income = sums.Income.Add(domain.ParseLenient(tx.Principal))
		case domain.TransactionTypeInterestExpense:
			sums.Expense = sums.Expense.Add(domain.ParseLenient(tx.Principal))
		default:
			continue
		}
		sums.Count++
	}
	return sums, nil
}

// Transactions returns a snapshot of all stored rows.
func (m *MemoryStore) Transactions() []*domain.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.Transaction(nil), m.transactions...)
}
