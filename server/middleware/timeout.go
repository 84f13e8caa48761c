package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout bounds the request context. Handlers that pass the context to
// outbound calls see context.DeadlineExceeded when it fires; the handler
// still writes the response itself. A non-positive timeout disables it.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
