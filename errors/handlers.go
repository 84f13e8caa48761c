package errors

import (
	"net/http"

	"go.uber.org/zap"
)

// LogError logs an error with its context. The underlying cause of a
// TarjumanError is logged even though it never reaches the client.
// A nil logger falls back to DefaultLogger.
func LogError(logger *zap.Logger, err error, requestID string) {
	if logger == nil {
		logger = DefaultLogger
	}
	if te, ok := err.(*TarjumanError); ok {
		fields := []zap.Field{
			zap.String("error_type", string(te.Type)),
			zap.String("message", te.Message),
			zap.Int("code", te.Code),
			zap.String("request_id", requestID),
			zap.Any("details", te.Details),
		}
		if te.err != nil {
			fields = append(fields, zap.NamedError("cause", te.err))
		}
		if te.Code >= http.StatusInternalServerError {
			logger.Error("request error", fields...)
		} else {
			logger.Warn("request rejected", fields...)
		}
		return
	}

	logger.Error("unexpected error",
		zap.Error(err),
		zap.String("request_id", requestID),
	)
}
