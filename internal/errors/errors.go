package errors

import (
	"errors"
	"fmt"
)

// Common error types for the dropzone client core
var (
	// Storage errors
	ErrStorage = errors.New("secure storage failure")

	// Token errors
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidToken     = errors.New("invalid token")
	ErrRefresh          = errors.New("token refresh failed")
	ErrNoRefreshToken   = errors.New("no refresh token stored")
	ErrNotAuthenticated = errors.New("not authenticated")

	// Request errors
	ErrNetwork    = errors.New("network error")
	ErrHTTPStatus = errors.New("unexpected http status")
	ErrValidation = errors.New("validation failed")
)

// StorageError reports a failed read or write against the secure store.
// It is handled inside the session layer and never surfaces to callers.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// RefreshError reports a failed refresh-token exchange. It drives a forced sign-out.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	if e.Err == nil {
		return ErrRefresh.Error()
	}
	return fmt.Sprintf("%s: %v", ErrRefresh, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

func (e *RefreshError) Is(target error) bool { return target == ErrRefresh }

// ValidationError is a client-side input failure. It is never an HTTP error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
