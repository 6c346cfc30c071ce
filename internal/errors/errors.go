package errors

import (
	"errors"
	"fmt"
)

// Common error types for the mentoring platform client
var (
	// Authentication errors
	ErrNotAuthenticated = errors.New("not authenticated")

	// Token errors
	ErrNoAccessToken  = errors.New("no access token")
	ErrNoRefreshToken = errors.New("no refresh token")
	ErrSessionExpired = errors.New("session expired")

	// Real-time channel errors
	ErrChannelClosed     = errors.New("channel closed")
	ErrChannelIneligible = errors.New("identity not eligible for channel")

	// Notification errors
	ErrNotDurable = errors.New("notification is not durable")
	ErrNotFound   = errors.New("not found")
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
