package usecase

import (
	"time"

	"github.com/iho/fintrack/internal/domain"
)

const (
	// DefaultLockTTL bounds how long a crashed run can block its period.
	DefaultLockTTL = 2 * time.Minute

	// DefaultRunTimeout is the maximum duration of one settlement run.
	DefaultRunTimeout = 30 * time.Second

	// MaxListLimit caps settlement run listings.
	MaxListLimit = domain.MaxPageSize
)
