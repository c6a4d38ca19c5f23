package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettledRows sums the approved interest rows written under one period key.
type SettledRows struct {
	Count   int
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// ReconciliationResult compares a run's ledger entry with the rows it wrote.
type ReconciliationResult struct {
	Key             string
	RecordedIncome  decimal.Decimal
	RecordedExpense decimal.Decimal
	RecordedRows    int
	ActualIncome    decimal.Decimal
	ActualExpense   decimal.Decimal
	ActualRows      int
	IsReconciled    bool
	CheckedAt       time.Time
}

// IncomeDifference is recorded minus actual income.
func (r *ReconciliationResult) IncomeDifference() decimal.Decimal {
	return r.RecordedIncome.Sub(r.ActualIncome)
}

// ExpenseDifference is recorded minus actual expense.
func (r *ReconciliationResult) ExpenseDifference() decimal.Decimal {
	return r.RecordedExpense.Sub(r.ActualExpense)
}

// Reconcile checks that the rows of a run still add up to its ledger entry.
// Loan interest is income; injection and deposit interest are expense.
func Reconcile(run *SettlementRun, rows SettledRows, now time.Time) *ReconciliationResult {
	result := &ReconciliationResult{
		Key:             run.Key,
		RecordedIncome:  run.LoanInterest,
		RecordedExpense: run.InjectionInterest.Add(run.DepositInterest),
		RecordedRows:    run.Inserted,
		ActualIncome:    rows.Income,
		ActualExpense:   rows.Expense,
		ActualRows:      rows.Count,
		CheckedAt:       now,
	}

	result.IsReconciled = result.RecordedRows == result.ActualRows &&
		result.IncomeDifference().IsZero() &&
		result.ExpenseDifference().IsZero()

	return result
}
