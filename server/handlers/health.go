package handlers

import (
	"encoding/json"
	"net/http"
)

// StatusSource reports the state shown on /health.
type StatusSource interface {
	CircuitState() string
	InstructionsVersion() string
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status              string `json:"status"`
	Circuit             string `json:"circuit"`
	InstructionsVersion string `json:"instructions_version"`
}

// Health serves GET /health. It answers 200 while the process is up, even
// with the circuit open; callers read the circuit field for upstream state.
func Health(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:              "ok",
			Circuit:             src.CircuitState(),
			InstructionsVersion: src.InstructionsVersion(),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
