package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tarjuman/tarjuman/errors"
	"github.com/tarjuman/tarjuman/server/metrics"
)

// PrometheusMetrics middleware records HTTP metrics using Prometheus.
// Requests are labelled by route pattern so unknown paths cannot blow up
// label cardinality.
func PrometheusMetrics(m *metrics.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			endpoint := endpointLabel(r)

			m.ActiveRequests.WithLabelValues(endpoint).Inc()
			defer m.ActiveRequests.WithLabelValues(endpoint).Dec()

			ww := &typedWriter{WrapResponseWriter: middleware.NewWrapResponseWriter(w, r.ProtoMajor)}
			next.ServeHTTP(ww, r)

			code := ww.Status()
			if code == 0 {
				code = http.StatusOK
			}

			m.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
			m.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

			if code >= 400 {
				errType := ww.errType
				if errType == "" {
					errType = UntypedError
				}
				m.ErrorsTotal.WithLabelValues(string(errType)).Inc()
			}
		})
	}
}

// UntypedError labels error statuses written without a TarjumanError.
const UntypedError errors.ErrorType = "untyped"

// typedWriter picks up the error type from errors.WriteError.
type typedWriter struct {
	middleware.WrapResponseWriter
	errType errors.ErrorType
}

func (w *typedWriter) RecordErrorType(t errors.ErrorType) {
	w.errType = t
}

// endpointLabel resolves the chi route pattern for r before routing has
// happened.
func endpointLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	if rctx.Routes != nil {
		tctx := chi.NewRouteContext()
		if rctx.Routes.Match(tctx, r.Method, r.URL.Path) {
			if p := tctx.RoutePattern(); p != "" {
				return p
			}
		}
	}
	return "unmatched"
}
