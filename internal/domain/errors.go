package domain

import "errors"

// Domain errors
var (
	ErrViewNotFound     = errors.New("view not found")
	ErrViewClosed       = errors.New("view is closed")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrEmptyName        = errors.New("name cannot be empty")
	ErrWrongPassword    = errors.New("wrong reset password")
	ErrInvalidWordBank  = errors.New("invalid word bank")
	ErrStoreUnavailable = errors.New("record store unavailable")
)
