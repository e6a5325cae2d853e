package sso

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSource is returned when an identity source cannot be normalized.
	ErrInvalidSource = errors.New("invalid identity source")

	// ErrStateMismatch is returned when the redirect echoes a state value that
	// was not issued for the flow.
	ErrStateMismatch = errors.New("state parameter mismatch")

	// ErrMissingCode is returned when the redirect carries no authorization code.
	ErrMissingCode = errors.New("authorization code missing from redirect")

	// ErrCallbackTimeout is returned when no redirect arrives in time.
	ErrCallbackTimeout = errors.New("timed out waiting for the authorization redirect")
)

// ProviderError is an error redirect from the identity provider, for example
// when the user denies access.
type ProviderError struct {
	Code        string
	Description string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization failed: %s: %s", e.Code, e.Description)
	}
	return "authorization failed: " + e.Code
}
