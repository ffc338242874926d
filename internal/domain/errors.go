package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	ErrNotFound          = errors.New("document store not found")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrBackend           = errors.New("backend failure")
	ErrValidation        = errors.New("validation failed")
)

// NotFoundError reports a missing persisted document store.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("document store not found at %s: run `ragbot ingest` first", e.Path)
}

// Is implements errors.Is
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DimensionMismatchError reports vectors of inconsistent dimensionality.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: store has %d, got %d (was the embedding model changed without re-ingesting?)", e.Expected, e.Got)
}

// Is implements errors.Is
func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

// ValidationError reports a rejected record or request.
type ValidationError struct {
	RecordID string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("invalid record %q: %s", e.RecordID, e.Reason)
	}
	return "invalid input: " + e.Reason
}

// Is implements errors.Is
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError creates a validation error for the given record.
func NewValidationError(recordID, format string, args ...any) *ValidationError {
	return &ValidationError{RecordID: recordID, Reason: fmt.Sprintf(format, args...)}
}

// BackendErrorKind discriminates external gateway failures.
type BackendErrorKind string

const (
	BackendAuth         BackendErrorKind = "auth"
	BackendQuota        BackendErrorKind = "quota"
	BackendConnectivity BackendErrorKind = "connectivity"
	BackendTimeout      BackendErrorKind = "timeout"
	BackendCanceled     BackendErrorKind = "canceled"
	BackendBadResponse  BackendErrorKind = "bad_response"
	BackendUnknown      BackendErrorKind = "unknown"
)

// BackendError wraps a failure of an embedding or generation backend.
type BackendError struct {
	Backend    string
	Op         string
	Kind       BackendErrorKind
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed (%s, http %d): %v", e.Backend, e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed (%s): %v", e.Backend, e.Op, e.Kind, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *BackendError) Unwrap() error { return e.Err }

// Is implements errors.Is
func (e *BackendError) Is(target error) bool { return target == ErrBackend }

// NewBackendError classifies err by status code and context state.
// statusCode is 0 when the backend did not answer over HTTP.
func NewBackendError(backend, op string, statusCode int, err error) *BackendError {
	var existing *BackendError
	if errors.As(err, &existing) {
		return existing
	}
	return &BackendError{
		Backend:    backend,
		Op:         op,
		Kind:       classify(statusCode, err),
		StatusCode: statusCode,
		Err:        err,
	}
}

func classify(statusCode int, err error) BackendErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return BackendTimeout
	case errors.Is(err, context.Canceled):
		return BackendCanceled
	}
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return BackendAuth
	case statusCode == http.StatusTooManyRequests:
		return BackendQuota
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		return BackendTimeout
	case statusCode >= 500:
		return BackendConnectivity
	case statusCode >= 400:
		return BackendBadResponse
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return BackendTimeout
		}
		return BackendConnectivity
	}
	return BackendUnknown
}

// IsBackendKind reports whether err is a BackendError of the given kind.
func IsBackendKind(err error, kind BackendErrorKind) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}

// NewBadResponseError reports a backend reply that could not be used.
func NewBadResponseError(backend, op string, err error) *BackendError {
	return &BackendError{Backend: backend, Op: op, Kind: BackendBadResponse, Err: err}
}
