// Package common provides shared utilities and types used across the engine.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Lookup errors.
	ErrStateUnavailable = errors.New("project state unavailable")
	ErrCatalogMiss      = errors.New("equipment type not found in catalog")

	// Detection errors.
	ErrNoMatches       = errors.New("no configuration matched")
	ErrDetectorFailed  = errors.New("detector failed")
	ErrNotInitialized  = errors.New("switchboard not initialized")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
