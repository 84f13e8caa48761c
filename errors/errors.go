// Package errors provides the error handling system for the tarjuman relay.
// It includes tagged error types, JSON response formatting, request ID tracking,
// and integrated logging with Uber's zap logger.
//
// Every failure on the translate route is one of a small set of tagged
// variants (validation, rate limit, adapter, decode, internal). The tag is
// carried to the HTTP boundary, where WriteError maps it to a status code:
//
//	// Type-specific error with context
//	errors.ErrorWithType(w, "Invalid request", errors.ValidationError, http.StatusBadRequest)
//
// For richer errors use the constructors in types.go:
//
//	err := errors.NewValidationError(requestID, "Invalid request", map[string]interface{}{
//	    "field": "urduText",
//	    "code":  "min",
//	})
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the default zap logger instance used throughout the package.
// It is initialized to a production configuration but can be overridden using SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger allows setting a custom zap logger instance.
// A nil logger is ignored.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType represents the category of a failure.
type ErrorType string

const (
	// ValidationError represents a bad or missing request body
	ValidationError ErrorType = "validation_error"
	// RateLimitError represents an exhausted per-client quota
	RateLimitError ErrorType = "rate_limit_error"
	// AdapterError represents a failure calling the generation service
	AdapterError ErrorType = "adapter_error"
	// DecodeError represents non-JSON or wrongly shaped model output
	DecodeError ErrorType = "decode_error"
	// InternalError represents unexpected internal server errors
	InternalError ErrorType = "internal_error"
	// UnavailableError represents a server that cannot take more work right now
	UnavailableError ErrorType = "unavailable_error"
	// NotFoundError represents unknown routes
	NotFoundError ErrorType = "not_found"
)

// GenericMessage is the client-facing message for failures whose cause
// must not leak (adapter, decode and internal errors).
const GenericMessage = "Processing failed"

// TarjumanError is the error type carried from any pipeline stage to the
// HTTP boundary. It serializes to the JSON error body while keeping the
// underlying cause for logging.
type TarjumanError struct {
	// Type categorizes the error for client handling
	Type ErrorType `json:"type"`

	// Message is the human-readable, client-safe description
	Message string `json:"error"`

	// Code is the HTTP status code (not exposed in JSON)
	Code int `json:"-"`

	// RequestID links the error to a specific request
	RequestID string `json:"request_id,omitempty"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`

	// err is the underlying error (not exposed in JSON)
	err error
}

// Error implements the error interface. It combines the error type,
// message, and underlying error (if any).
func (e *TarjumanError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *TarjumanError) Unwrap() error {
	return e.err
}

// Is matches on Type only, so errors.Is(err, &TarjumanError{Type: DecodeError})
// works regardless of message or details.
func (e *TarjumanError) Is(target error) bool {
	t, ok := target.(*TarjumanError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithRequestID returns the error stamped with the given request ID.
// Errors built below the HTTP layer do not know the ID yet.
func (e *TarjumanError) WithRequestID(requestID string) *TarjumanError {
	if e.RequestID == "" {
		e.RequestID = requestID
	}
	return e
}

// TypeRecorder is implemented by response writers that want to know the
// type of the error written through them, such as the metrics middleware.
type TypeRecorder interface {
	RecordErrorType(ErrorType)
}

// WriteError formats and writes a TarjumanError to an http.ResponseWriter.
func WriteError(w http.ResponseWriter, err *TarjumanError) {
	if err.RequestID == "" {
		err.RequestID = w.Header().Get("X-Request-ID")
	}
	if rec, ok := w.(TypeRecorder); ok {
		rec.RecordErrorType(err.Type)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	if encErr := json.NewEncoder(w).Encode(err); encErr != nil {
		DefaultLogger.Warn("failed to write error response",
			zap.Error(encErr),
			zap.String("request_id", err.RequestID),
		)
	}
}

// ErrorWithType writes a bare error of the given type, for responses that
// have no underlying cause (unknown route, wrong method).
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	err := &TarjumanError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: w.Header().Get("X-Request-ID"),
	}
	WriteError(w, err)
}
