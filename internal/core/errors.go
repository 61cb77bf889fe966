// Package core provides the wire types and error taxonomy for the grid adapter.
package core

import (
	"fmt"
	"net/http"
)

// ErrorType classifies adapter failures.
type ErrorType string

const (
	// ErrorTypeAuthentication indicates a missing or unusable API key (401)
	ErrorTypeAuthentication ErrorType = "authentication_error"
	// ErrorTypeInvalidRequest indicates malformed client input (400)
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeSubmitFailed indicates the grid rejected or lost the job submission (500)
	ErrorTypeSubmitFailed ErrorType = "submit_failed"
	// ErrorTypeUpstream indicates a non-2xx or malformed response from the grid while polling (500)
	ErrorTypeUpstream ErrorType = "upstream_error"
	// ErrorTypePollTimeout indicates the poll deadline elapsed before the job finished (500)
	ErrorTypePollTimeout ErrorType = "poll_timeout"
	// ErrorTypeInternal is the catch-all for unexpected failures (500)
	ErrorTypeInternal ErrorType = "internal_error"
)

// GatewayError is the base error type for all adapter errors.
//
// Message is safe to show to clients. The wrapped Err carries upstream
// detail (including grid error bodies) and is logged server-side only;
// it must never reach a response body.
type GatewayError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the status code for this error.
// The adapter's surface produces only 400, 401 and 500.
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to the client-facing response body.
// The body is a flat {"error": message} object for compatibility with
// existing consumers of the adapter.
func (e *GatewayError) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"error": e.Message,
	}
}

// NewAuthenticationError creates a missing/invalid key error (401)
func NewAuthenticationError(message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewInvalidRequestError creates a malformed-input error (400)
func NewInvalidRequestError(message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewSubmitFailedError creates a job-submission error. The client sees a
// generic message; the upstream cause stays on Err for logging.
func NewSubmitFailedError(err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeSubmitFailed,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUpstreamError creates a grid-side failure error. The client sees a
// generic message; the upstream status and body stay on Err for logging.
func NewUpstreamError(err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeUpstream,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewPollTimeoutError creates a poll-deadline error (500)
func NewPollTimeoutError(err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypePollTimeout,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewInternalError creates a catch-all internal error (500)
func NewInternalError(err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeInternal,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
