// Package handlers provides the HTTP handlers for the tarjuman relay.
//
// The translate handler follows these rules:
// 1. Every failure is a tagged error from the errors package
// 2. Every log line carries the request ID
// 3. Nothing reaches the generation service before validation passes
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/tarjuman/tarjuman/errors"
	"github.com/tarjuman/tarjuman/server/middleware"
	"github.com/tarjuman/tarjuman/server/translation"
	"github.com/tarjuman/tarjuman/server/validation"
)

// Translator produces the two renderings for a piece of text.
type Translator interface {
	Translate(ctx context.Context, text string) (*translation.Result, error)
}

// TranslateHandler serves POST /api/translate.
type TranslateHandler struct {
	validator  *validation.Validator
	translator Translator
	logger     *zap.Logger
}

// NewTranslateHandler creates a handler. All arguments are required.
func NewTranslateHandler(v *validation.Validator, t Translator, logger *zap.Logger) *TranslateHandler {
	return &TranslateHandler{
		validator:  v,
		translator: t,
		logger:     logger,
	}
}

// ServeHTTP runs validate, translate, respond. Rate limiting has already
// happened in middleware.
func (h *TranslateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	req, err := h.validator.Decode(r.Body)
	if err != nil {
		h.fail(w, requestID, err)
		return
	}

	res, err := h.translator.Translate(r.Context(), req.UrduText)
	if err != nil {
		h.fail(w, requestID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		// Headers are gone; all that is left is to record it.
		h.logger.Error("Failed to encode response",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
}

func (h *TranslateHandler) fail(w http.ResponseWriter, requestID string, err error) {
	te := errors.FromError(requestID, err)
	errors.LogError(h.logger, te, requestID)
	errors.WriteError(w, te)
}
