package domain

import "errors"

var (
	// Request errors
	ErrUnauthorized     = errors.New("unauthorized")
	ErrMethodNotAllowed = errors.New("method not allowed")

	// Configuration errors
	ErrConfiguration = errors.New("server misconfigured")
	ErrInvalidWindow = errors.New("invalid settlement window")

	// Storage errors
	ErrStorage = errors.New("storage error")

	// Settlement errors
	ErrAlreadySettled  = errors.New("settlement period already settled")
	ErrLockNotAcquired = errors.New("settlement lock held by another run")
	ErrRunNotFound     = errors.New("settlement run not found")
)
