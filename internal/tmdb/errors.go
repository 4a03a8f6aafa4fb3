package tmdb

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an upstream failure so callers can branch on
// it structurally instead of matching message text.
type ErrorKind string

const (
	KindTimeout            ErrorKind = "timeout"
	KindConnectionUnstable ErrorKind = "connection_unstable"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindNotFound           ErrorKind = "not_found"
	KindRateLimited        ErrorKind = "rate_limited"
	KindServerError        ErrorKind = "server_error"
	KindUnknown            ErrorKind = "unknown"
)

// Error is the structured failure returned by every client operation.
type Error struct {
	Kind    ErrorKind
	Op      string
	Status  int
	Retries int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("tmdb %s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// retryable reports whether the failure class may succeed on a retry.
// Credential, not-found and rate-limit failures never do; a timeout
// already consumed the full request budget.
func (e *Error) retryable() bool {
	return e.Kind == KindConnectionUnstable || e.Kind == KindServerError
}

// KindOf extracts the error kind from err, or KindUnknown when err is
// not an upstream client error.
func KindOf(err error) ErrorKind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsInvalidCredentials reports whether err is an upstream 401. This is
// a deployment error and must never be retried or swallowed.
func IsInvalidCredentials(err error) bool {
	return KindOf(err) == KindInvalidCredentials
}
