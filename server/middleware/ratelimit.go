package middleware

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tarjuman/tarjuman/errors"
	"github.com/tarjuman/tarjuman/server/metrics"
	"github.com/tarjuman/tarjuman/server/ratelimit"
)

// RateLimit middleware enforces limiter per client key. Every response
// carries RateLimit-Limit, RateLimit-Remaining and RateLimit-Reset;
// rejected ones also get Retry-After and a rate_limit_error. If the
// limiter itself fails the request is let through.
func RateLimit(limiter ratelimit.Limiter, keyFn ratelimit.KeyFunc, m *metrics.Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = ratelimit.ClientAddress(false)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			requestID := GetRequestID(r.Context())

			d, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("Rate limiter unavailable, allowing request",
					zap.String("request_id", requestID),
					zap.String("client", key),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			now := time.Now()
			resetSecs := int(d.RetryAfter(now) / time.Second)
			h := w.Header()
			h.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("RateLimit-Reset", strconv.Itoa(resetSecs))

			if !d.Allowed {
				if m != nil {
					m.RateLimitHits.Inc()
				}
				h.Set("Retry-After", strconv.Itoa(resetSecs))
				logger.Info("Rate limit exceeded",
					zap.String("request_id", requestID),
					zap.String("client", key),
					zap.Time("reset_at", d.ResetAt),
				)
				errors.WriteError(w, errors.NewRateLimitError(requestID, resetSecs))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
