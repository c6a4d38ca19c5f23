package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := New(registry)

	if m.SettlementRuns == nil || m.InterestSettled == nil || m.RowsInserted == nil {
		t.Fatalf("expected key metrics to be initialized: %+v", m)
	}

	m.ObserveRun("manual", OutcomeSettled, "", time.Millisecond)

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}
}

func TestObserveRun(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRun("scheduler", OutcomeSkipped, "already_settled", time.Second)
	m.ObserveRun("scheduler", OutcomeSkipped, "already_settled", time.Second)
	m.ObserveRun("manual", OutcomeError, "", time.Second)

	if got := testutil.ToFloat64(m.SettlementRuns.WithLabelValues("scheduler", OutcomeSkipped)); got != 2 {
		t.Fatalf("expected 2 skipped scheduler runs, got %v", got)
	}
	if got := testutil.ToFloat64(m.SettlementSkips.WithLabelValues("already_settled")); got != 2 {
		t.Fatalf("expected 2 already_settled skips, got %v", got)
	}
	if got := testutil.ToFloat64(m.SettlementRuns.WithLabelValues("manual", OutcomeError)); got != 1 {
		t.Fatalf("expected 1 failed manual run, got %v", got)
	}
}

func TestObserveSettled(t *testing.T) {
	m := New(prometheus.NewRegistry())
	at := time.Unix(1714924860, 0)

	m.ObserveSettled(50, 3, 0.5, 3, at)

	if got := testutil.ToFloat64(m.InterestSettled.WithLabelValues("loan")); got != 50 {
		t.Fatalf("expected loan interest 50, got %v", got)
	}
	if got := testutil.ToFloat64(m.RowsInserted); got != 3 {
		t.Fatalf("expected 3 rows, got %v", got)
	}
	if got := testutil.ToFloat64(m.LastSettledAt); got != float64(at.Unix()) {
		t.Fatalf("unexpected last settled timestamp %v", got)
	}
}

func TestObserveHTTP(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveHTTP("POST", "/api/cron/settle", 200, 20*time.Millisecond)
	m.ObserveHTTP("POST", "/api/cron/settle", 401, time.Millisecond)

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/api/cron/settle", "401")); got != 1 {
		t.Fatalf("expected one 401, got %v", got)
	}
	if got := testutil.CollectAndCount(m.HTTPRequestDuration); got != 1 {
		t.Fatalf("expected one duration series, got %d", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("GET", "/health", 200, time.Millisecond)
	m.ObserveRun("manual", OutcomeSettled, "", time.Second)
	m.ObserveSettled(1, 1, 1, 1, time.Now())
}
