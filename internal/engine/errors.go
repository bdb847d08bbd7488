package engine

import (
	"errors"
	"fmt"
)

// RuntimeError is a failed hook, carrying enough context to tell which
// delete of which flow failed.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// FlowToken identifies the affected flow.
	FlowToken string

	// Entity is the entity being deleted, as "type/id".
	Entity string

	// Hook names the hook or field that failed.
	Hook string

	// Err is the underlying error.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeHookFailed indicates a registered hook returned an error.
	ErrCodeHookFailed RuntimeErrorCode = "HOOK_FAILED"

	// ErrCodeCascadeFailed indicates the composite manager returned an error.
	ErrCodeCascadeFailed RuntimeErrorCode = "CASCADE_FAILED"

	// ErrCodeQuotaExceeded indicates the flow exceeded its delete quota.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.FlowToken != "" {
		msg += fmt.Sprintf(" (flow=%s, entity=%s)", e.FlowToken, e.Entity)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error, so errors.Is sees store failures
// through the dispatcher.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and QuotaExceededError.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) && re.Code == ErrCodeQuotaExceeded {
		return true
	}
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}

// IsCascadeError returns true if a composite cascade failed.
func IsCascadeError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeCascadeFailed
}
