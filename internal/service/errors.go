package service

import (
	"fmt"
	"net/http"
)

// ConfigurationError is fatal and fails engine construction.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// ValidationError signals malformed caller input (bad email, weak password,
// mismatched reset token). Messages are specific: they carry no security risk.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// DatabaseError wraps a store failure that is not a uniqueness violation.
// It is surfaced as-is and never retried internally.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error: %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// AuthError is the catch-all for provider, hashing and token failures. Code
// is machine-readable; Status is HTTP-style.
type AuthError struct {
	Code    string
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Code, e.Message)
}

func newOAuthError(providerID, message string) *AuthError {
	return &AuthError{
		Code:    "oauth_error",
		Status:  http.StatusBadGateway,
		Message: fmt.Sprintf("%s: %s", providerID, message),
	}
}

func newUnknownProviderError(providerID string) *AuthError {
	return &AuthError{
		Code:    "unknown_provider",
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("unknown oauth provider: %s", providerID),
	}
}

func newProviderNotConfiguredError(providerID string) *AuthError {
	return &AuthError{
		Code:    "provider_not_configured",
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("oauth provider %s has no configured client credentials", providerID),
	}
}
