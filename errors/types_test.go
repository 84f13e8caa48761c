package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNewValidationError(t *testing.T) {
	requestID := "test-456"
	message := "invalid input"
	details := map[string]interface{}{
		"field": "urduText",
		"code":  "min",
	}

	err := NewValidationError(requestID, message, details)

	if err.Type != ValidationError {
		t.Errorf("Expected error type %v, got %v", ValidationError, err.Type)
	}
	if err.Message != message {
		t.Errorf("Expected message %v, got %v", message, err.Message)
	}
	if err.Code != http.StatusBadRequest {
		t.Errorf("Expected code %v, got %v", http.StatusBadRequest, err.Code)
	}
	if err.RequestID != requestID {
		t.Errorf("Expected requestID %v, got %v", requestID, err.RequestID)
	}
	if err.Details["field"] != details["field"] {
		t.Errorf("Expected details field %v, got %v", details["field"], err.Details["field"])
	}
}

func TestNewRateLimitError(t *testing.T) {
	requestID := "test-789"
	retryAfter := 60

	err := NewRateLimitError(requestID, retryAfter)

	if err.Type != RateLimitError {
		t.Errorf("Expected error type %v, got %v", RateLimitError, err.Type)
	}
	if err.Code != http.StatusTooManyRequests {
		t.Errorf("Expected code %v, got %v", http.StatusTooManyRequests, err.Code)
	}
	if err.Details["retry_after"] != retryAfter {
		t.Errorf("Expected retry_after %v, got %v", retryAfter, err.Details["retry_after"])
	}
}

func TestNewAdapterError(t *testing.T) {
	tests := []struct {
		name     string
		cause    error
		wantCode int
	}{
		{"network failure", errors.New("dial tcp: connection refused"), http.StatusBadGateway},
		{"deadline", fmt.Errorf("call upstream: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAdapterError("req", tt.cause)
			if err.Type != AdapterError {
				t.Errorf("Expected error type %v, got %v", AdapterError, err.Type)
			}
			if err.Code != tt.wantCode {
				t.Errorf("Expected code %v, got %v", tt.wantCode, err.Code)
			}
			if err.Message != GenericMessage {
				t.Errorf("cause leaked into message: %q", err.Message)
			}
			if !errors.Is(err, tt.cause) {
				t.Errorf("Expected cause to be reachable via errors.Is")
			}
		})
	}
}

func TestNewDecodeError(t *testing.T) {
	cause := errors.New("invalid character 'H'")
	err := NewDecodeError("req", map[string]interface{}{"field": "casual"}, cause)

	if err.Type != DecodeError {
		t.Errorf("Expected error type %v, got %v", DecodeError, err.Type)
	}
	if err.Code != http.StatusBadGateway {
		t.Errorf("Expected code %v, got %v", http.StatusBadGateway, err.Code)
	}
	if err.Unwrap() != cause {
		t.Errorf("Expected inner error %v, got %v", cause, err.Unwrap())
	}
}

func TestFromError(t *testing.T) {
	tagged := NewDecodeError("", nil, errors.New("bad"))
	got := FromError("req-1", fmt.Errorf("translate: %w", tagged))
	if got.Type != DecodeError {
		t.Errorf("Expected tagged error to pass through, got %v", got.Type)
	}
	if got.RequestID != "req-1" {
		t.Errorf("Expected request id to be stamped, got %q", got.RequestID)
	}

	plain := FromError("req-2", errors.New("boom"))
	if plain.Type != InternalError || plain.Code != http.StatusInternalServerError {
		t.Errorf("Expected internal error, got %v/%d", plain.Type, plain.Code)
	}
}
