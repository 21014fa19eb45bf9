package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the pipeline.
type ErrorCode string

// Content site error codes
const (
	ErrSiteUnavailable ErrorCode = "SITE_UNAVAILABLE"
	ErrSiteBadStatus   ErrorCode = "SITE_BAD_STATUS"
	ErrParseFailed     ErrorCode = "PARSE_FAILED"
	ErrTimeout         ErrorCode = "TIMEOUT"
)

// Pipeline error codes
const (
	ErrInvalidQuery         ErrorCode = "INVALID_QUERY"
	ErrClassificationFailed ErrorCode = "CLASSIFICATION_FAILED"
	ErrSynthesisFailed      ErrorCode = "SYNTHESIS_FAILED"
	ErrSynthesisUnavailable ErrorCode = "SYNTHESIS_UNAVAILABLE"
	ErrInternalError        ErrorCode = "INTERNAL_ERROR"
)

// HTTP surface error codes
const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrMethodNotAllowed   ErrorCode = "METHOD_NOT_ALLOWED"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	URL        string    `json:"url,omitempty"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code returned by the content site.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithURL records the URL that failed.
func (e *Error) WithURL(url string) *Error {
	e.URL = url
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code anywhere in its chain.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
