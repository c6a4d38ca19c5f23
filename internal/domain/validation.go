package domain

import (
	"errors"
	"fmt"
	"time"
)

// Validation errors
var (
	ErrInvalidPeriodKey = errors.New("invalid period key")
)

// Pagination limits
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ValidatePeriodKey accepts a production key (YYYY-MM-DD) or a test-mode
// key (YYYY-MM-DD-HH).
func ValidatePeriodKey(key string) error {
	layout := periodDayLayout
	if len(key) == len(periodHourLayout) {
		layout = periodHourLayout
	}

	t, err := time.Parse(layout, key)
	if err != nil || t.Format(layout) != key {
		return fmt.Errorf("%w: %q", ErrInvalidPeriodKey, key)
	}

	return nil
}

// ValidatePagination validates and normalizes pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
