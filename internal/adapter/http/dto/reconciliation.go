package dto

import (
	"time"

	"github.com/iho/fintrack/internal/domain"
	"github.com/iho/fintrack/internal/usecase"
)

// ReconciliationResponse is the reconciliation result of one run.
type ReconciliationResponse struct {
	OK                bool      `json:"ok"`
	SettleKey         string    `json:"settleKey"`
	Reconciled        bool      `json:"reconciled"`
	RecordedIncome    string    `json:"recordedIncome"`
	ActualIncome      string    `json:"actualIncome"`
	RecordedExpense   string    `json:"recordedExpense"`
	ActualExpense     string    `json:"actualExpense"`
	RecordedRows      int       `json:"recordedRows"`
	ActualRows        int       `json:"actualRows"`
	IncomeDifference  string    `json:"incomeDifference"`
	ExpenseDifference string    `json:"expenseDifference"`
	CheckedAt         time.Time `json:"checkedAt"`
}

// ReconciliationFromDomain converts a domain result to a response.
func ReconciliationFromDomain(r *domain.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		OK:                true,
		SettleKey:         r.Key,
		Reconciled:        r.IsReconciled,
		RecordedIncome:    r.RecordedIncome.String(),
		ActualIncome:      r.ActualIncome.String(),
		RecordedExpense:   r.RecordedExpense.String(),
		ActualExpense:     r.ActualExpense.String(),
		RecordedRows:      r.RecordedRows,
		ActualRows:        r.ActualRows,
		IncomeDifference:  r.IncomeDifference().String(),
		ExpenseDifference: r.ExpenseDifference().String(),
		CheckedAt:         r.CheckedAt,
	}
}

// ReconciliationReportResponse summarizes recent runs.
type ReconciliationReportResponse struct {
	OK             bool                      `json:"ok"`
	TotalRuns      int                       `json:"totalRuns"`
	ReconciledRuns int                       `json:"reconciledRuns"`
	Discrepancies  []*ReconciliationResponse `json:"discrepancies"`
	CheckedAt      time.Time                 `json:"checkedAt"`
}

// ReconciliationReportFromUseCase converts a report to a response.
func ReconciliationReportFromUseCase(report *usecase.ReconciliationReport) *ReconciliationReportResponse {
	discrepancies := make([]*ReconciliationResponse, len(report.Discrepancies))
	for i, d := range report.Discrepancies {
		discrepancies[i] = ReconciliationFromDomain(d)
	}
	return &ReconciliationReportResponse{
		OK:             true,
		TotalRuns:      report.TotalRuns,
		ReconciledRuns: report.ReconciledRuns,
		Discrepancies:  discrepancies,
		CheckedAt:      report.CheckedAt,
	}
}
