package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/tarjuman/tarjuman/errors"
)

// Recovery middleware recovers from panics, logs them and answers with an
// internal_error. http.ErrAbortHandler is re-panicked so net/http can
// abort the connection.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}

					requestID := GetRequestID(r.Context())
					logger.Error("Panic recovered",
						zap.Any("error", rec),
						zap.ByteString("stack", debug.Stack()),
						zap.String("request_id", requestID),
						zap.String("path", r.URL.Path),
					)

					errors.WriteError(w, errors.NewInternalError(
						requestID,
						fmt.Errorf("panic: %v", rec),
					))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
