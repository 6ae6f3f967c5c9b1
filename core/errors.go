package core

import (
	"errors"
	"fmt"
)

// ConfigurationError indicates an invalid local input or a violated
// precondition (bad chunking bounds, duplicate metadata keys, missing active
// store). It is always detected before any remote call and is never retried.
type ConfigurationError struct {
	Op     string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// RemoteErrorKind classifies remote service failures so callers can decide
// whether a retry with backoff is appropriate.
type RemoteErrorKind string

const (
	// RemoteInvalidCredential means the supplied credential was rejected.
	RemoteInvalidCredential RemoteErrorKind = "invalid_credential"
	// RemotePermissionDenied means the credential lacks access to the resource.
	RemotePermissionDenied RemoteErrorKind = "permission_denied"
	// RemoteQuotaExceeded means a rate or usage quota was hit.
	RemoteQuotaExceeded RemoteErrorKind = "quota_exceeded"
	// RemoteNotFound means the referenced remote resource does not exist.
	RemoteNotFound RemoteErrorKind = "not_found"
	// RemoteTimeout means the call did not complete in time.
	RemoteTimeout RemoteErrorKind = "timeout"
	// RemoteUnavailable means the service failed transiently (5xx, transport).
	RemoteUnavailable RemoteErrorKind = "unavailable"
	// RemoteInternal covers everything else.
	RemoteInternal RemoteErrorKind = "internal"
)

// Retryable reports whether callers may retry the failed call with backoff.
// Quota errors are retryable because services pair them with a cool-down;
// credential and permission failures must never be silently retried.
func (k RemoteErrorKind) Retryable() bool {
	switch k {
	case RemoteQuotaExceeded, RemoteTimeout, RemoteUnavailable:
		return true
	default:
		return false
	}
}

// RemoteError wraps a failure reported by (or while reaching) the remote
// service with enough detail to pick a recovery strategy.
type RemoteError struct {
	Op         string
	Kind       RemoteErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s (%s)", e.Op, msg, e.Kind)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry with backoff.
func (e *RemoteError) Retryable() bool { return e.Kind.Retryable() }

// StaleReferenceError indicates an operation on a store or upload the remote
// service no longer recognizes, typically after concurrent external deletion.
// It is recoverable: the right response is a cache refresh, not aborting the
// session.
type StaleReferenceError struct {
	Resource string // "store" or "file"
	ID       string
}

func (e *StaleReferenceError) Error() string {
	return fmt.Sprintf("stale %s reference: %s", e.Resource, e.ID)
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsRetryable reports whether err is a remote failure the caller may retry.
func IsRetryable(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Retryable()
}

// IsStale reports whether err is a StaleReferenceError.
func IsStale(err error) bool {
	var se *StaleReferenceError
	return errors.As(err, &se)
}

// IsNotFound reports whether err is a remote not-found failure.
func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Kind == RemoteNotFound
}
