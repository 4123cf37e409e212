// Package utils provides structured errors and logging shared by the
// poller's packages.
package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns string representation of error severity
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ErrorCode represents predefined error codes for categorization
type ErrorCode string

const (
	ErrCodeTransientNetwork  ErrorCode = "TRANSIENT_NETWORK"
	ErrCodeRateLimited       ErrorCode = "RATE_LIMITED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	ErrCodeConfiguration     ErrorCode = "CONFIGURATION"
	ErrCodeInvalidRange      ErrorCode = "INVALID_RANGE"

	ErrCodeDatabaseError   ErrorCode = "DATABASE_ERROR"
	ErrCodeNotifyFailed    ErrorCode = "NOTIFY_FAILED"
	ErrCodeOutputFailed    ErrorCode = "OUTPUT_FAILED"
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StructuredError provides rich error information for handling and logging
type StructuredError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Severity  ErrorSeverity          `json:"severity"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
	Timestamp time.Time              `json:"timestamp"`
	Retryable bool                   `json:"retryable"`
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error unwrapping
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a StructuredError with the same code
func (e *StructuredError) Is(target error) bool {
	if se, ok := target.(*StructuredError); ok {
		return e.Code == se.Code
	}
	return false
}

// Sentinels usable with errors.Is.
var (
	ErrTransientNetwork  = &StructuredError{Code: ErrCodeTransientNetwork}
	ErrRateLimited       = &StructuredError{Code: ErrCodeRateLimited}
	ErrForbidden         = &StructuredError{Code: ErrCodeForbidden}
	ErrMalformedResponse = &StructuredError{Code: ErrCodeMalformedResponse}
	ErrConfiguration     = &StructuredError{Code: ErrCodeConfiguration}
	ErrInvalidRange      = &StructuredError{Code: ErrCodeInvalidRange}
)

// ErrorBuilder provides a fluent interface for creating structured errors
type ErrorBuilder struct {
	error *StructuredError
}

// NewError creates a new error builder
func NewError(code ErrorCode, message string) *ErrorBuilder {
	return &ErrorBuilder{
		error: &StructuredError{
			Code:      code,
			Message:   message,
			Severity:  SeverityError,
			Timestamp: time.Now(),
			Retryable: defaultRetryable(code),
		},
	}
}

// WithSeverity sets the error severity
func (eb *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	eb.error.Severity = severity
	return eb
}

// WithCause sets the underlying cause
func (eb *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	eb.error.Cause = cause
	return eb
}

// WithContext adds contextual information
func (eb *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	if eb.error.Context == nil {
		eb.error.Context = make(map[string]interface{})
	}
	eb.error.Context[key] = value
	return eb
}

// WithRetryable overrides the retryable flag implied by the code
func (eb *ErrorBuilder) WithRetryable(retryable bool) *ErrorBuilder {
	eb.error.Retryable = retryable
	return eb
}

// Build returns the constructed error
func (eb *ErrorBuilder) Build() *StructuredError {
	return eb.error
}

func defaultRetryable(code ErrorCode) bool {
	switch code {
	case ErrCodeTransientNetwork, ErrCodeRateLimited, ErrCodeForbidden:
		return true
	default:
		return false
	}
}

// WrapError wraps an existing error in a structured error
func WrapError(err error, code ErrorCode, message string) *StructuredError {
	return NewError(code, message).WithCause(err).Build()
}

// CodeOf returns the code of the first StructuredError in err's chain.
// Context cancellation and network errors are classified when no
// StructuredError is present.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeContextCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrCodeTransientNetwork
	}
	return ErrCodeInternal
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return CodeOf(err) == ErrCodeTransientNetwork
}

// WithContext adds contextual information to an already built error.
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}
