package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/fintrack/internal/adapter/http/handler"
	"github.com/iho/fintrack/internal/adapter/http/middleware"
	"github.com/iho/fintrack/internal/infrastructure/metrics"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	SettlementHandler     *handler.SettlementHandler
	ReconciliationHandler *handler.ReconciliationHandler
	HealthHandler         *handler.HealthHandler
	CronAuth              *middleware.CronAuth
	RateLimiter           *middleware.RateLimiter
	Metrics               *metrics.Metrics
	MetricsHandler        http.Handler
	Logger                zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.CronAuth == nil {
		cfg.CronAuth = middleware.NewCronAuth("", "")
	}
	if cfg.ReconciliationHandler == nil {
		cfg.ReconciliationHandler = handler.NewReconciliationHandler(nil)
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Metrics(cfg.Metrics))

	r.MethodNotAllowed(handler.MethodNotAllowed)
	r.NotFound(handler.NotFound)

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)

	// Cron-authorized endpoints
	r.Group(func(r chi.Router) {
		r.Use(cfg.CronAuth.Wrap)
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Limit)
		}

		r.Get("/api/cron/settle", cfg.SettlementHandler.Settle)
		r.Post("/api/cron/settle", cfg.SettlementHandler.Settle)
		r.Get("/api/v1/settlements", cfg.SettlementHandler.ListRuns)
		r.Get("/api/v1/settlements/reconciliation", cfg.ReconciliationHandler.Report)
		r.Get("/api/v1/settlements/{key}/reconciliation", cfg.ReconciliationHandler.ReconcileRun)
	})

	return r
}
