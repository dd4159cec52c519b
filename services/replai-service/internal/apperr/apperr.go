// Package apperr defines the error taxonomy shared by the service layers and
// its mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthentication indicates an invalid, expired or missing credential
	ErrAuthentication = errors.New("authentication failed")
	// ErrForbidden indicates the caller may not act on the resource
	ErrForbidden = errors.New("permission denied")
	// ErrValidation indicates missing or malformed request fields
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a missing resource
	ErrNotFound = errors.New("not found")
	// ErrNotConnected indicates a mailbox reference used after disconnect
	ErrNotConnected = errors.New("mailbox not connected")
	// ErrConflict indicates the operation conflicts with current state, e.g. paused sync
	ErrConflict = errors.New("conflict")
	// ErrProvider indicates a failure from the mail, calendar, payment or AI vendor
	ErrProvider = errors.New("provider error")
	// ErrPersistence indicates a database failure
	ErrPersistence = errors.New("persistence error")
	// ErrNotImplemented indicates a stub provider or feature
	ErrNotImplemented = errors.New("not implemented")
	// ErrQuotaExceeded indicates the user's plan allowance is used up
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// Validation returns a validation error with a user-facing message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Provider wraps err from a vendor call made during op.
func Provider(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrProvider, op, err)
}

// Persistence wraps err from a database call made during op.
func Persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

// Status maps err onto an HTTP status code.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrQuotaExceeded):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotConnected):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text exposed to API clients. Persistence and unknown
// errors are not echoed back.
func Message(err error) string {
	if Status(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
