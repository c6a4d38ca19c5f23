package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/fintrack/internal/adapter/http/dto"
	"github.com/iho/fintrack/internal/adapter/http/middleware"
	"github.com/iho/fintrack/internal/domain"
	"github.com/iho/fintrack/internal/infrastructure/metrics"
	"github.com/iho/fintrack/internal/usecase"
)

// SettlementService defines the behavior needed by SettlementHandler.
type SettlementService interface {
	Settle(ctx context.Context, input usecase.SettleInput) (*usecase.SettleResult, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*domain.SettlementRun, error)
}

// SettlementHandlerConfig holds the optional settings of SettlementHandler.
type SettlementHandlerConfig struct {
	// ConfigErr is returned for every request when storage is not
	// configured. The service is never called in that case.
	ConfigErr error
	Timeout   time.Duration
	Metrics   *metrics.Metrics
}

// SettlementHandler handles settlement HTTP requests.
type SettlementHandler struct {
	settlementUC SettlementService
	configErr    error
	timeout      time.Duration
	metrics      *metrics.Metrics
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(settlementUC SettlementService, cfg SettlementHandlerConfig) *SettlementHandler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = usecase.DefaultRunTimeout
	}
	if settlementUC == nil && cfg.ConfigErr == nil {
		cfg.ConfigErr = domain.ErrConfiguration
	}

	return &SettlementHandler{
		settlementUC: settlementUC,
		configErr:    cfg.ConfigErr,
		timeout:      cfg.Timeout,
		metrics:      cfg.Metrics,
	}
}

// Settle runs the settlement job for the current period.
func (h *SettlementHandler) Settle(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	if h.configErr != nil {
		log.Error().Err(h.configErr).Msg("settlement rejected: storage not configured")
		status, message := mapDomainError(h.configErr)
		writeError(w, status, message, "")
		return
	}

	scheduled := middleware.IsScheduled(r.Context())
	trigger := "manual"
	if scheduled {
		trigger = "scheduler"
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	start := time.Now()
	result, err := h.settlementUC.Settle(ctx, usecase.SettleInput{Scheduled: scheduled})
	if err != nil {
		h.metrics.ObserveRun(trigger, metrics.OutcomeError, "", time.Since(start))
		log.Error().Err(err).Str("trigger", trigger).Msg("settlement failed")

		status, message := mapDomainError(err)
		writeError(w, status, message, "")
		return
	}

	if result.Skipped {
		h.metrics.ObserveRun(trigger, metrics.OutcomeSkipped, string(result.Reason), time.Since(start))
		writeJSON(w, http.StatusOK, dto.SkippedResponse(result.Key, result.Reason))
		return
	}

	h.metrics.ObserveRun(trigger, metrics.OutcomeSettled, "", time.Since(start))
	h.metrics.ObserveSettled(
		result.Totals.Loan.InexactFloat64(),
		result.Totals.Injection.InexactFloat64(),
		result.Totals.Deposit.InexactFloat64(),
		result.Run.Inserted,
		result.Run.CreatedAt,
	)

	writeJSON(w, http.StatusOK, dto.SettledResponse(result.Run))
}

// ListRuns lists recent settlement runs.
func (h *SettlementHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.configErr != nil {
		status, message := mapDomainError(h.configErr)
		writeError(w, status, message, "")
		return
	}

	limit := queryInt(r, "limit", domain.DefaultPageSize)
	offset := queryInt(r, "offset", 0)

	runs, err := h.settlementUC.ListRuns(r.Context(), limit, offset)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to list settlement runs")
		}
		status, message := mapDomainError(err)
		writeError(w, status, message, "")
		return
	}

	writeJSON(w, http.StatusOK, dto.SettlementRunsFromDomain(runs))
}
