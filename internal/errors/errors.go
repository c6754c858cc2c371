package errors

import (
	"errors"
	"fmt"
)

// Common error types for the admin session client
var (
	// Authentication errors
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrLoginRejected     = errors.New("login rejected")
	ErrAuthExpired       = errors.New("authentication expired")
	ErrRefreshRejected   = errors.New("refresh rejected")
	ErrNoRefreshToken    = errors.New("no refresh token")
	ErrSessionExpired    = errors.New("session expired")
	ErrAlreadyRetried    = errors.New("request already retried")
	ErrRefresherMissing  = errors.New("no refresher attached")
	ErrCredentialStorage = errors.New("credential storage failure")

	// Response errors
	ErrBusiness  = errors.New("business error")
	ErrHTTP      = errors.New("http error")
	ErrTransport = errors.New("transport error")
	ErrDecode    = errors.New("response decode error")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
