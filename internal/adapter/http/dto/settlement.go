package dto

import (
	"time"

	"github.com/iho/fintrack/internal/domain"
)

// SettleResponse is the body of /api/cron/settle.
type SettleResponse struct {
	OK                bool   `json:"ok"`
	Skipped           bool   `json:"skipped,omitempty"`
	Reason            string `json:"reason,omitempty"`
	SettleKey         string `json:"settleKey,omitempty"`
	SettleID          string `json:"settleId,omitempty"`
	Inserted          int    `json:"inserted,omitempty"`
	LoanInterest      string `json:"loanInterest,omitempty"`
	InjectionInterest string `json:"injectionInterest,omitempty"`
	DepositInterest   string `json:"depositInterest,omitempty"`
}

// SkippedResponse builds the body of a run that wrote nothing.
func SkippedResponse(key string, reason domain.SkipReason) *SettleResponse {
	return &SettleResponse{
		OK:        true,
		Skipped:   true,
		Reason:    string(reason),
		SettleKey: key,
	}
}

// SettledResponse builds the body of a run that wrote rows.
func SettledResponse(run *domain.SettlementRun) *SettleResponse {
	return &SettleResponse{
		OK:                true,
		SettleKey:         run.Key,
		SettleID:          run.SettleID,
		Inserted:          run.Inserted,
		LoanInterest:      run.LoanInterest.String(),
		InjectionInterest: run.InjectionInterest.String(),
		DepositInterest:   run.DepositInterest.String(),
	}
}

// SettlementRunResponse represents a settlement run in API responses.
type SettlementRunResponse struct {
	SettleKey         string    `json:"settleKey"`
	SettleID          string    `json:"settleId"`
	Inserted          int       `json:"inserted"`
	LoanInterest      string    `json:"loanInterest"`
	InjectionInterest string    `json:"injectionInterest"`
	DepositInterest   string    `json:"depositInterest"`
	TestMode          bool      `json:"testMode"`
	CreatedAt         time.Time `json:"createdAt"`
}

// SettlementRunsResponse is the body of /api/v1/settlements.
type SettlementRunsResponse struct {
	OK   bool                     `json:"ok"`
	Runs []*SettlementRunResponse `json:"runs"`
}

// SettlementRunsFromDomain converts domain runs to responses.
func SettlementRunsFromDomain(runs []*domain.SettlementRun) *SettlementRunsResponse {
	result := make([]*SettlementRunResponse, len(runs))
	for i, run := range runs {
		result[i] = &SettlementRunResponse{
			SettleKey:         run.Key,
			SettleID:          run.SettleID,
			Inserted:          run.Inserted,
			LoanInterest:      run.LoanInterest.String(),
			InjectionInterest: run.InjectionInterest.String(),
			DepositInterest:   run.DepositInterest.String(),
			TestMode:          run.TestMode,
			CreatedAt:         run.CreatedAt,
		}
	}
	return &SettlementRunsResponse{OK: true, Runs: result}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
