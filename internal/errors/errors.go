package errors

import (
	"errors"
	"fmt"
)

// LawError is the structured error type for lawsearch.
// It carries an error code, category, and retryability so callers can decide
// between degrading, retrying, and failing a request.
type LawError struct {
	// Code is the unique error code (e.g., "ERR_301_SOURCE_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Upstream, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *LawError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *LawError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with LawError.
func (e *LawError) Is(target error) bool {
	if t, ok := target.(*LawError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *LawError) WithDetail(key, value string) *LawError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new LawError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *LawError {
	return &LawError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a LawError from an existing error.
// The error's message becomes the LawError message.
func Wrap(code string, err error) *LawError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// NotFound creates a lookup error for an unknown law or article.
func NotFound(what, id string) *LawError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s %q not found", what, id), nil)
}

// SourceUnavailable creates an upstream fetch error after retries exhausted.
func SourceUnavailable(message string, cause error) *LawError {
	return New(ErrCodeSourceUnavailable, message, cause)
}

// RateLimited creates an upstream rate-limit error.
func RateLimited(message string, cause error) *LawError {
	return New(ErrCodeRateLimited, message, cause)
}

// Validation creates an input validation error.
func Validation(message string) *LawError {
	return New(ErrCodeInvalidQuery, message, nil)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error chain contains a LawError with Retryable set.
func IsRetryable(err error) bool {
	var le *LawError
	if errors.As(err, &le) {
		return le.Retryable
	}
	return false
}

// IsNotFound reports whether the error chain contains a not-found error.
func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeNotFound)
}

// HasCode reports whether the error chain contains a LawError with the code.
func HasCode(err error, code string) bool {
	var le *LawError
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

// GetCode extracts the error code from an error chain.
// Returns empty string if no LawError is present.
func GetCode(err error) string {
	var le *LawError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
