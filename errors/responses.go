// Package errors provides error response utilities.
package errors

import (
	"errors"
)

// ErrorResponse is the JSON body returned to clients on failure. Clients
// can switch on Type to tell a bad request from an upstream outage.
type ErrorResponse struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"error"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// As is a wrapper around errors.As for better error type assertion
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is a wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
