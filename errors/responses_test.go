package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name           string
		err            *TarjumanError
		expectedCode   int
		expectedType   ErrorType
		expectedFields []string
	}{
		{
			name: "rate limit error",
			err: &TarjumanError{
				Type:      RateLimitError,
				Message:   "Too many requests",
				Code:      http.StatusTooManyRequests,
				RequestID: "test-id",
			},
			expectedCode:   http.StatusTooManyRequests,
			expectedType:   RateLimitError,
			expectedFields: []string{"type", "error", "request_id"},
		},
		{
			name: "error with details",
			err: &TarjumanError{
				Type:      ValidationError,
				Message:   "Invalid request",
				Code:      http.StatusBadRequest,
				RequestID: "test-id",
				Details: map[string]interface{}{
					"field": "urduText",
					"code":  "required",
				},
			},
			expectedCode:   http.StatusBadRequest,
			expectedType:   ValidationError,
			expectedFields: []string{"type", "error", "request_id", "details"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteError(rr, tt.err)

			if rr.Code != tt.expectedCode {
				t.Errorf("WriteError() status = %v, want %v", rr.Code, tt.expectedCode)
			}

			contentType := rr.Header().Get("Content-Type")
			if contentType != "application/json" {
				t.Errorf("WriteError() content-type = %v, want application/json", contentType)
			}

			var response map[string]interface{}
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response body: %v", err)
			}

			if errorType, ok := response["type"].(string); !ok || ErrorType(errorType) != tt.expectedType {
				t.Errorf("WriteError() error type = %v, want %v", errorType, tt.expectedType)
			}

			for _, field := range tt.expectedFields {
				if _, exists := response[field]; !exists {
					t.Errorf("WriteError() missing expected field: %s", field)
				}
			}
		})
	}
}

func TestWriteErrorTakesRequestIDFromHeader(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Header().Set("X-Request-ID", "from-header")

	WriteError(rr, NewInternalError("", nil))

	var response ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
	if response.RequestID != "from-header" {
		t.Errorf("request_id = %q, want from-header", response.RequestID)
	}
	if response.Message != GenericMessage {
		t.Errorf("error = %q, want %q", response.Message, GenericMessage)
	}
}
