package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/iho/fintrack/internal/adapter/http/dto"
	"github.com/iho/fintrack/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes the common error envelope. ok is always false.
func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Message: details})
}

// mapDomainError maps domain errors to an HTTP status and a public message.
// Storage and unexpected failures carry the underlying error text.
func mapDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, "Method Not Allowed"
	case errors.Is(err, domain.ErrInvalidPeriodKey):
		return http.StatusBadRequest, "Invalid period key"
	case errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound, "Settlement run not found"
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusInternalServerError, configMessage(err)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusInternalServerError, "Settlement timed out"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// configMessage keeps the detail of a configuration error so operators can
// see which setting is missing.
func configMessage(err error) string {
	const base = "Server misconfigured"
	detail, ok := strings.CutPrefix(err.Error(), domain.ErrConfiguration.Error()+": ")
	if !ok || detail == "" {
		return base
	}
	return base + ": " + detail
}

// queryInt reads a non-negative integer query parameter. Missing, malformed
// and negative values yield def.
func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return def
	}
	return n
}

// MethodNotAllowed answers unsupported methods on known routes.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	status, message := mapDomainError(domain.ErrMethodNotAllowed)
	writeError(w, status, message, "")
}

// NotFound answers unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not Found", "")
}
