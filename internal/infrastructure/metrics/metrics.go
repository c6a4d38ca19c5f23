package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for settlement runs.
const (
	OutcomeSettled = "settled"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// Metrics holds the HTTP and settlement Prometheus metrics.
type Metrics struct {
	HTTPRequests         *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	SettlementRuns     *prometheus.CounterVec
	SettlementSkips    *prometheus.CounterVec
	SettlementDuration *prometheus.HistogramVec
	InterestSettled    *prometheus.CounterVec
	RowsInserted       prometheus.Counter
	LastSettledAt      prometheus.Gauge
}

// New creates the metrics and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fintrack_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fintrack_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),
		SettlementRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_settlement_runs_total",
				Help: "Settlement runs by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		SettlementSkips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_settlement_skips_total",
				Help: "Skipped settlement runs by reason",
			},
			[]string{"reason"},
		),
		SettlementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fintrack_settlement_duration_seconds",
				Help:    "Duration of settlement runs",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"trigger"},
		),
		InterestSettled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_interest_settled_total",
				Help: "Interest amount settled by principal category",
			},
			[]string{"category"},
		),
		RowsInserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "fintrack_settlement_rows_inserted_total",
			Help: "Interest transactions written by settlement runs",
		}),
		LastSettledAt: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fintrack_settlement_last_success_timestamp_seconds",
			Help: "Unix time of the last run that wrote rows",
		}),
	}
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveRun records one settlement run.
func (m *Metrics) ObserveRun(trigger, outcome, reason string, d time.Duration) {
	if m == nil {
		return
	}
	m.SettlementRuns.WithLabelValues(trigger, outcome).Inc()
	m.SettlementDuration.WithLabelValues(trigger).Observe(d.Seconds())
	if outcome == OutcomeSkipped && reason != "" {
		m.SettlementSkips.WithLabelValues(reason).Inc()
	}
}

// ObserveSettled records the amounts of a run that wrote rows.
func (m *Metrics) ObserveSettled(loan, injection, deposit float64, inserted int, at time.Time) {
	if m == nil {
		return
	}
	m.InterestSettled.WithLabelValues("loan").Add(loan)
	m.InterestSettled.WithLabelValues("injection").Add(injection)
	m.InterestSettled.WithLabelValues("deposit").Add(deposit)
	m.RowsInserted.Add(float64(inserted))
	m.LastSettledAt.Set(float64(at.Unix()))
}
