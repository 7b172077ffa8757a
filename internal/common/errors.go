// Package common defines shared constants and sentinel errors used across
// client and server layers of DriveKeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStopped is the cooperative-cancellation sentinel. A transfer that
	// was stopped by the user fails all of its in-flight operations with
	// this value; every layer treats it as cleanup, not as a failure.
	ErrStopped = errors.New("stopped")

	// ErrAlreadyExists reports a name collision at the destination.
	ErrAlreadyExists = errors.New("already exists")

	// ErrStorageFull reports that the account storage quota is exceeded.
	// It triggers an upgrade prompt rather than a generic error toast.
	ErrStorageFull = errors.New("storage quota exceeded")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
