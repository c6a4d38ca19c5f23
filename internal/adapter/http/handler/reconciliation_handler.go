package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/iho/fintrack/internal/adapter/http/dto"
	"github.com/iho/fintrack/internal/domain"
	"github.com/iho/fintrack/internal/usecase"
)

// ReconciliationService defines the behavior needed by ReconciliationHandler.
type ReconciliationService interface {
	ReconcileRun(ctx context.Context, key string) (*domain.ReconciliationResult, error)
	GenerateReport(ctx context.Context, limit int) (*usecase.ReconciliationReport, error)
}

// ReconciliationHandler checks settlement runs against their rows.
type ReconciliationHandler struct {
	reconciliationUC ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler. A nil
// service answers every request with a configuration error.
func NewReconciliationHandler(reconciliationUC ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliationUC: reconciliationUC}
}

// ReconcileRun reconciles the run named by the key URL parameter.
// A run whose rows no longer match answers 409.
func (h *ReconciliationHandler) ReconcileRun(w http.ResponseWriter, r *http.Request) {
	if h.reconciliationUC == nil {
		status, message := mapDomainError(domain.ErrConfiguration)
		writeError(w, status, message, "")
		return
	}

	key := chi.URLParam(r, "key")

	result, err := h.reconciliationUC.ReconcileRun(r.Context(), key)
	if err != nil {
		status, message := mapDomainError(err)
		if status >= http.StatusInternalServerError {
			zerolog.Ctx(r.Context()).Error().Err(err).Str("settle_key", key).Msg("reconciliation failed")
		}
		writeError(w, status, message, "")
		return
	}

	status := http.StatusOK
	if !result.IsReconciled {
		status = http.StatusConflict
	}

	writeJSON(w, status, dto.ReconciliationFromDomain(result))
}

// Report reconciles the most recent runs.
func (h *ReconciliationHandler) Report(w http.ResponseWriter, r *http.Request) {
	if h.reconciliationUC == nil {
		status, message := mapDomainError(domain.ErrConfiguration)
		writeError(w, status, message, "")
		return
	}

	limit := queryInt(r, "limit", domain.DefaultPageSize)

	report, err := h.reconciliationUC.GenerateReport(r.Context(), limit)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("reconciliation report failed")
		status, message := mapDomainError(err)
		writeError(w, status, message, "")
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationReportFromUseCase(report))
}
