package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/iho/fintrack/internal/domain"
)

const (
	// CronSecretHeader carries the shared secret for manual triggers.
	CronSecretHeader = "X-Cron-Secret"
	// DefaultSchedulerUserAgent identifies the hosted cron scheduler.
	DefaultSchedulerUserAgent = "vercel-cron"
)

type scheduledKey struct{}

// WithScheduled marks ctx as carrying a scheduler-originated request.
func WithScheduled(ctx context.Context, scheduled bool) context.Context {
	return context.WithValue(ctx, scheduledKey{}, scheduled)
}

// IsScheduled reports whether CronAuth classified the request as coming
// from the scheduler.
func IsScheduled(ctx context.Context) bool {
	scheduled, _ := ctx.Value(scheduledKey{}).(bool)
	return scheduled
}

// CronAuth authorizes settlement triggers. Requests whose user-agent
// contains the scheduler signature pass without a secret; everything else
// must present CRON_SECRET when one is configured.
type CronAuth struct {
	secret    []byte
	signature string
}

// NewCronAuth creates a new CronAuth.
func NewCronAuth(secret, schedulerUserAgent string) *CronAuth {
	if schedulerUserAgent == "" {
		schedulerUserAgent = DefaultSchedulerUserAgent
	}
	return &CronAuth{
		secret:    []byte(secret),
		signature: strings.ToLower(schedulerUserAgent),
	}
}

// IsScheduler reports whether r comes from the scheduler.
func (a *CronAuth) IsScheduler(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.UserAgent()), a.signature)
}

// Authorize classifies r and returns domain.ErrUnauthorized when a manual
// trigger lacks the configured secret.
func (a *CronAuth) Authorize(r *http.Request) (scheduled bool, err error) {
	if a.IsScheduler(r) {
		return true, nil
	}
	if len(a.secret) > 0 && !a.hasSecret(r) {
		return false, domain.ErrUnauthorized
	}
	return false, nil
}

// Wrap wraps an http.Handler with cron authorization.
func (a *CronAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheduled, err := a.Authorize(r)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithScheduled(r.Context(), scheduled)))
	})
}

func writeAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrUnauthorized) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (a *CronAuth) hasSecret(r *http.Request) bool {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok && a.matches(token) {
		return true
	}
	if header := r.Header.Get(CronSecretHeader); header != "" && a.matches(header) {
		return true
	}
	return false
}

func (a *CronAuth) matches(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), a.secret) == 1
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
