package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesTarjumanMetrics(t *testing.T) {
	m := NewMetrics()
	m.TranslationsTotal.WithLabelValues(OutcomeSuccess).Inc()
	m.RateLimitHits.Inc()
	m.UpstreamDuration.WithLabelValues("responses").Observe(1.5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	for _, name := range []string{
		"tarjuman_http_requests_total",
		"tarjuman_translations_total",
		"tarjuman_rate_limit_hits_total",
		"tarjuman_upstream_duration_seconds",
		"go_goroutines",
	} {
		assert.Contains(t, string(body), name)
	}
}

func TestTranslationOutcomesPreinitialized(t *testing.T) {
	m := NewMetrics()
	for _, outcome := range []string{OutcomeSuccess, OutcomeAdapterError, OutcomeDecodeError, OutcomeCircuitOpen} {
		assert.Equal(t, float64(0), testutil.ToFloat64(m.TranslationsTotal.WithLabelValues(outcome)))
	}
}

func TestSeparateRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	a.ErrorsTotal.WithLabelValues("decode_error").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(a.ErrorsTotal.WithLabelValues("decode_error")))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.ErrorsTotal.WithLabelValues("decode_error")))
	assert.NotSame(t, a.Registry(), b.Registry())
}
