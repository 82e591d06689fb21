package service

import (
	"errors"
	"fmt"
)

var (
	// ErrAccountNotFound and ErrAccountInactive are distinct on purpose:
	// an inactive account exists and may be reconnected, a missing one is a
	// caller bug.
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountInactive = errors.New("account is not active")
)

// OAuthError carries the platform's own error message from a failed token
// endpoint call. Authorization-code flows cannot be retried server-side, so
// callers must surface this to the user instead of retrying.
type OAuthError struct {
	Platform string
	Message  string
}

func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s oauth error: %s", e.Platform, e.Message)
}

// PlatformError wraps a non-2xx response from a platform's graph/data API.
type PlatformError struct {
	Platform   string
	StatusCode int
	Message    string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Platform, e.StatusCode, e.Message)
}
