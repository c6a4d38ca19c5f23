package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/iho/fintrack/internal/adapter/http/dto"
)

const (
	checkOK       = "ok"
	checkFailed   = "unhealthy"
	checkDisabled = "disabled"

	readinessTimeout = 5 * time.Second
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	db          Pinger
	redisClient *redis.Client
}

// NewHealthHandler creates a HealthHandler. A nil db reports the service as
// not ready. A nil redisClient skips the Redis check.
func NewHealthHandler(db Pinger, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redisClient: redisClient}
}

// Liveness always answers 200.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": "ok"})
}

// Readiness probes Postgres and Redis concurrently. Postgres is required.
// Redis only guards the settlement lock, so a failed Redis check degrades
// the service without taking it out of rotation.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := dto.HealthResponse{
		Postgres: dto.DependencyCheck{Status: "not configured"},
		Redis:    dto.DependencyCheck{Status: checkDisabled},
	}

	var g errgroup.Group
	if h.db != nil {
		g.Go(func() error {
			resp.Postgres = probe(ctx, h.db.Ping)
			return nil
		})
	}
	if h.redisClient != nil {
		g.Go(func() error {
			resp.Redis = probe(ctx, func(ctx context.Context) error {
				return h.redisClient.Ping(ctx).Err()
			})
			return nil
		})
	}
	_ = g.Wait()

	switch {
	case resp.Postgres.Status != checkOK:
		resp.Status = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
	case resp.Redis.Status == checkFailed:
		resp.OK = true
		resp.Status = "degraded"
		writeJSON(w, http.StatusOK, resp)
	default:
		resp.OK = true
		resp.Status = "ready"
		writeJSON(w, http.StatusOK, resp)
	}
}

func probe(ctx context.Context, ping func(context.Context) error) dto.DependencyCheck {
	start := time.Now()
	err := ping(ctx)
	check := dto.DependencyCheck{Status: checkOK, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		check.Status = checkFailed
		check.Error = err.Error()
	}
	return check
}
