package errors

import (
	"context"
	stderrors "errors"
	"net/http"
)

// NewError creates a new TarjumanError with full control over its fields.
// For most cases use one of the specialized constructors below.
//
// Example:
//
//	err := NewError(InternalError, "encode failed", 500, "req_123", nil, encErr)
func NewError(errType ErrorType, message string, code int, requestID string, details map[string]interface{}, err error) *TarjumanError {
	return &TarjumanError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewValidationError creates a validation error. Use it for any request
// body failure:
//   - malformed JSON
//   - missing urduText
//   - text shorter than the minimum length or over the token cap
//
// Example:
//
//	err := NewValidationError("req_123", "Invalid request", map[string]interface{}{
//	    "field": "urduText",
//	    "code":  "min",
//	})
func NewValidationError(requestID, message string, validationDetails map[string]interface{}) *TarjumanError {
	return &TarjumanError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		Details:   validationDetails,
	}
}

// NewRateLimitError creates a rate limit error. retryAfter is in seconds.
//
// Example:
//
//	err := NewRateLimitError("req_123", 42)
func NewRateLimitError(requestID string, retryAfter int) *TarjumanError {
	return &TarjumanError{
		Type:      RateLimitError,
		Message:   "Too many requests, please try again later.",
		Code:      http.StatusTooManyRequests,
		RequestID: requestID,
		Details: map[string]interface{}{
			"retry_after": retryAfter,
		},
	}
}

// NewAdapterError creates an adapter error for a failed call to the
// generation service. The status code follows the cause: 504 when the
// context deadline was hit, 502 otherwise.
func NewAdapterError(requestID string, err error) *TarjumanError {
	code := http.StatusBadGateway
	if stderrors.Is(err, context.DeadlineExceeded) {
		code = http.StatusGatewayTimeout
	}
	return &TarjumanError{
		Type:      AdapterError,
		Message:   GenericMessage,
		Code:      code,
		RequestID: requestID,
		err:       err,
	}
}

// NewUnavailableAdapterError creates an adapter error for a call that was
// never made because the upstream is known to be failing (open circuit).
func NewUnavailableAdapterError(requestID string, err error) *TarjumanError {
	return &TarjumanError{
		Type:      AdapterError,
		Message:   GenericMessage,
		Code:      http.StatusServiceUnavailable,
		RequestID: requestID,
		err:       err,
	}
}

// NewDecodeError creates a decode error for model output that is not JSON
// or does not have the expected two-string shape.
//
// Example:
//
//	err := NewDecodeError("req_123", map[string]interface{}{"field": "casual"}, parseErr)
func NewDecodeError(requestID string, details map[string]interface{}, err error) *TarjumanError {
	return &TarjumanError{
		Type:      DecodeError,
		Message:   GenericMessage,
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewInternalError creates an internal server error for anything not
// covered above:
//   - panics
//   - response encoding failures
func NewInternalError(requestID string, err error) *TarjumanError {
	return &TarjumanError{
		Type:      InternalError,
		Message:   GenericMessage,
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}

// NewUnavailableError creates a 503 for requests turned away because the
// server is saturated.
func NewUnavailableError(requestID, message string) *TarjumanError {
	return &TarjumanError{
		Type:      UnavailableError,
		Message:   message,
		Code:      http.StatusServiceUnavailable,
		RequestID: requestID,
	}
}

// FromError converts any error into a TarjumanError. Tagged errors pass
// through unchanged; anything else becomes an InternalError.
func FromError(requestID string, err error) *TarjumanError {
	var te *TarjumanError
	if stderrors.As(err, &te) {
		return te.WithRequestID(requestID)
	}
	return NewInternalError(requestID, err)
}
