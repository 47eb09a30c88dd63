// Package crawlerr defines the failure taxonomy shared by the crawler, the analysis layer and the tool surface.
package crawlerr

import (
	"errors"
	"fmt"
)

// Failure kinds as reported to tool callers.
const (
	KindValidation     = "ValidationError"
	KindTimeout        = "TimeoutError"
	KindBlocked        = "BlockedError"
	KindBackend        = "BackendError"
	KindPartialFailure = "PartialFailure"
	KindInternal       = "InternalError"
)

// ValidationError means the request was rejected before any backend interaction.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// TimeoutError means a backend wait exceeded its bound.
type TimeoutError struct {
	Operation string
	Cause     error
}

func (e *TimeoutError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("timeout during %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("timeout during %s", e.Operation)
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// BlockedError means the page served an anti-automation challenge instead of content.
type BlockedError struct {
	URL    string
	Marker string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("anti-automation challenge detected at %s (marker %q)", e.URL, e.Marker)
}

// BackendError means the automation backend failed or produced unusable output.
type BackendError struct {
	Backend string
	Message string
	Cause   error
}

func (e *BackendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s backend error: %s: %v", e.Backend, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s backend error: %s", e.Backend, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// KindOf maps an error to its taxonomy name.
func KindOf(err error) string {
	var (
		validationErr *ValidationError
		timeoutErr    *TimeoutError
		blockedErr    *BlockedError
		backendErr    *BackendError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &blockedErr):
		return KindBlocked
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.As(err, &backendErr):
		return KindBackend
	default:
		return KindInternal
	}
}

// IsRetryable reports whether a fresh backend session may succeed where this one failed.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindBackend:
		return true
	default:
		return false
	}
}
