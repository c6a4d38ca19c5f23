package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// PostgreSQL error codes.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
	pgErrUniqueViolation      = "23505"
)

// Retrier re-runs a settlement write when Postgres reports a transient
// conflict. Each attempt must be a complete transaction.
type Retrier struct {
	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	logger          zerolog.Logger
}

// NewRetrier creates a Retrier with three retries over at most ten seconds.
func NewRetrier(logger zerolog.Logger) *Retrier {
	return &Retrier{
		maxRetries:      3,
		initialInterval: 50 * time.Millisecond,
		maxInterval:     time.Second,
		maxElapsedTime:  10 * time.Second,
		logger:          logger,
	}
}

func (r *Retrier) policy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.MaxElapsedTime = r.maxElapsedTime

	return backoff.WithContext(backoff.WithMaxRetries(b, r.maxRetries), ctx)
}

// Retry runs op until it succeeds, fails permanently or the policy gives up.
// The last error is returned unchanged.
func (r *Retrier) Retry(ctx context.Context, op func() error) error {
	attempt := func() error {
		err := op()
		if err != nil && !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		r.logger.Warn().
			Err(err).
			Dur("backoff", wait).
			Msg("transient database error, retrying settlement write")
	}

	return backoff.RetryNotify(attempt, r.policy(ctx), notify)
}

// isRetryableError reports deadlocks, serialization failures and errors
// raised before anything reached the server.
func isRetryableError(err error) bool {
	if hasCode(err, pgErrDeadlock) || hasCode(err, pgErrSerializationFailure) {
		return true
	}
	return pgconn.SafeToRetry(err)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
