package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/fintrack/internal/adapter/http/dto"
	"github.com/iho/fintrack/internal/domain"
	"github.com/iho/fintrack/internal/usecase"
)

type reconciliationServiceStub struct {
	reconcileFn func(ctx context.Context, key string) (*domain.ReconciliationResult, error)
	reportFn    func(ctx context.Context, limit int) (*usecase.ReconciliationReport, error)
}

func (s *reconciliationServiceStub) ReconcileRun(ctx context.Context, key string) (*domain.ReconciliationResult, error) {
	return s.reconcileFn(ctx, key)
}

func (s *reconciliationServiceStub) GenerateReport(ctx context.Context, limit int) (*usecase.ReconciliationReport, error) {
	return s.reportFn(ctx, limit)
}

func reconcileRequest(key string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/settlements/"+key+"/reconciliation", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("key", key)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestReconciliationHandler_ReconcileRun(t *testing.T) {
	checkedAt := time.Date(2024, 5, 6, 1, 0, 0, 0, time.UTC)
	run := &domain.SettlementRun{Key: "2024-05-06", Inserted: 1, LoanInterest: decimal.NewFromInt(50)}

	tests := []struct {
		name       string
		rows       domain.SettledRows
		wantStatus int
		reconciled bool
	}{
		{"reconciled", domain.SettledRows{Count: 1, Income: decimal.NewFromInt(50), Expense: decimal.Zero}, http.StatusOK, true},
		{"drift", domain.SettledRows{Count: 1, Income: decimal.NewFromInt(40), Expense: decimal.Zero}, http.StatusConflict, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotKey string
			h := NewReconciliationHandler(&reconciliationServiceStub{
				reconcileFn: func(ctx context.Context, key string) (*domain.ReconciliationResult, error) {
					gotKey = key
					return domain.Reconcile(run, tt.rows, checkedAt), nil
				},
			})

			rec := httptest.NewRecorder()
			h.ReconcileRun(rec, reconcileRequest("2024-05-06"))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if gotKey != "2024-05-06" {
				t.Fatalf("unexpected key %q", gotKey)
			}

			var resp dto.ReconciliationResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Reconciled != tt.reconciled || resp.SettleKey != "2024-05-06" || resp.RecordedIncome != "50" {
				t.Fatalf("unexpected response %+v", resp)
			}
		})
	}
}

func TestReconciliationHandler_UnknownRun(t *testing.T) {
	h := NewReconciliationHandler(&reconciliationServiceStub{
		reconcileFn: func(ctx context.Context, key string) (*domain.ReconciliationResult, error) {
			return nil, domain.ErrRunNotFound
		},
	})

	rec := httptest.NewRecorder()
	h.ReconcileRun(rec, reconcileRequest("2030-01-01"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestReconciliationHandler_Report(t *testing.T) {
	checkedAt := time.Date(2024, 5, 6, 1, 0, 0, 0, time.UTC)
	var gotLimit int
	h := NewReconciliationHandler(&reconciliationServiceStub{
		reportFn: func(ctx context.Context, limit int) (*usecase.ReconciliationReport, error) {
			gotLimit = limit
			return &usecase.ReconciliationReport{
				TotalRuns:      3,
				ReconciledRuns: 3,
				Discrepancies:  []*domain.ReconciliationResult{},
				CheckedAt:      checkedAt,
			}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.Report(rec, httptest.NewRequest(http.MethodGet, "/api/v1/settlements/reconciliation?limit=3", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotLimit != 3 {
		t.Fatalf("expected limit 3, got %d", gotLimit)
	}

	var resp dto.ReconciliationReportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalRuns != 3 || resp.ReconciledRuns != 3 || resp.Discrepancies == nil {
		t.Fatalf("unexpected report %+v", resp)
	}
}

func TestReconciliationHandler_ReportStorageError(t *testing.T) {
	h := NewReconciliationHandler(&reconciliationServiceStub{
		reportFn: func(ctx context.Context, limit int) (*usecase.ReconciliationReport, error) {
			return nil, errors.Join(domain.ErrStorage, errors.New("connection reset"))
		},
	})

	rec := httptest.NewRecorder()
	h.Report(rec, httptest.NewRequest(http.MethodGet, "/api/v1/settlements/reconciliation", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
