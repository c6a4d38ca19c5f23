package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestReconcile(t *testing.T) {
	now := time.Date(2024, 5, 6, 1, 0, 0, 0, time.UTC)
	run := &SettlementRun{
		Key:               "2024-05-06",
		Inserted:          3,
		LoanInterest:      decimal.RequireFromString("50"),
		InjectionInterest: decimal.RequireFromString("3.5"),
		DepositInterest:   decimal.RequireFromString("4.5"),
	}

	tests := []struct {
		name        string
		rows        SettledRows
		reconciled  bool
		incomeDiff  string
		expenseDiff string
	}{
		{
			name:        "matching rows",
			rows:        SettledRows{Count: 3, Income: decimal.RequireFromString("50.00"), Expense: decimal.RequireFromString("8")},
			reconciled:  true,
			incomeDiff:  "0",
			expenseDiff: "0",
		},
		{
			name:        "edited row",
			rows:        SettledRows{Count: 3, Income: decimal.RequireFromString("49"), Expense: decimal.RequireFromString("8")},
			incomeDiff:  "1",
			expenseDiff: "0",
		},
		{
			name:        "deleted row",
			rows:        SettledRows{Count: 2, Income: decimal.RequireFromString("50"), Expense: decimal.RequireFromString("3.5")},
			incomeDiff:  "0",
			expenseDiff: "4.5",
		},
		{
			name:        "extra row with no amount change",
			rows:        SettledRows{Count: 4, Income: decimal.RequireFromString("50"), Expense: decimal.RequireFromString("8")},
			incomeDiff:  "0",
			expenseDiff: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Reconcile(run, tt.rows, now)

			if res.IsReconciled != tt.reconciled {
				t.Fatalf("IsReconciled = %v, want %v", res.IsReconciled, tt.reconciled)
			}
			if !res.IncomeDifference().Equal(decimal.RequireFromString(tt.incomeDiff)) {
				t.Fatalf("income difference = %s, want %s", res.IncomeDifference(), tt.incomeDiff)
			}
			if !res.ExpenseDifference().Equal(decimal.RequireFromString(tt.expenseDiff)) {
				t.Fatalf("expense difference = %s, want %s", res.ExpenseDifference(), tt.expenseDiff)
			}
			if !res.CheckedAt.Equal(now) {
				t.Fatalf("CheckedAt = %s", res.CheckedAt)
			}
		})
	}
}
