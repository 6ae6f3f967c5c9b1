package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestRemoteErrorKind_Retryable(t *testing.T) {
	retryable := []RemoteErrorKind{RemoteTimeout, RemoteUnavailable, RemoteQuotaExceeded}
	for _, k := range retryable {
		if !k.Retryable() {
			t.Errorf("%s should be retryable", k)
		}
	}
	fatal := []RemoteErrorKind{RemoteInvalidCredential, RemotePermissionDenied, RemoteNotFound, RemoteInternal}
	for _, k := range fatal {
		if k.Retryable() {
			t.Errorf("%s should not be retryable", k)
		}
	}
}

func TestErrorHelpers(t *testing.T) {
	cfg := fmt.Errorf("submit: %w", &ConfigurationError{Op: "chunking", Reason: "bad bounds"})
	if !IsConfiguration(cfg) {
		t.Error("IsConfiguration should see through wrapping")
	}
	if IsRetryable(cfg) || IsStale(cfg) {
		t.Error("configuration errors are neither retryable nor stale")
	}

	remote := &RemoteError{Op: "list stores", Kind: RemoteTimeout, Err: errors.New("deadline exceeded")}
	if !IsRetryable(remote) {
		t.Error("timeouts are retryable")
	}
	if IsNotFound(remote) {
		t.Error("timeout is not a not-found")
	}

	nf := &RemoteError{Op: "delete store", Kind: RemoteNotFound, StatusCode: 404}
	if !IsNotFound(nf) || IsRetryable(nf) {
		t.Error("not-found should be non-retryable and detected")
	}

	stale := fmt.Errorf("delete: %w", &StaleReferenceError{Resource: "store", ID: "fileSearchStores/x"})
	if !IsStale(stale) {
		t.Error("IsStale should see through wrapping")
	}
}

func TestRemoteError_Messages(t *testing.T) {
	e := &RemoteError{Op: "create store", Kind: RemoteQuotaExceeded, Message: "quota exceeded"}
	if e.Error() == "" {
		t.Fatal("empty error string")
	}
	wrapped := &RemoteError{Op: "upload", Kind: RemoteUnavailable, Err: errors.New("connection reset")}
	if wrapped.Error() == "" || errors.Unwrap(wrapped) == nil {
		t.Error("wrapped cause should be reachable")
	}
}
