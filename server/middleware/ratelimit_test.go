package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tarjuman/tarjuman/server/metrics"
	"github.com/tarjuman/tarjuman/server/middleware"
	"github.com/tarjuman/tarjuman/server/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doFrom(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/translate", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitMetrics(t *testing.T) {
	m := metrics.NewMetrics()
	limiter := ratelimit.NewFixedWindow(30, time.Minute)
	handler := middleware.RequestID(
		middleware.RateLimit(limiter, ratelimit.ClientAddress(false), m, zaptest.NewLogger(t))(okHandler()),
	)

	testIP := "127.0.0.1"

	for i := 1; i <= 30; i++ {
		rec := doFrom(handler, testIP+":1234")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		assert.Equal(t, "30", rec.Header().Get("RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(30-i), rec.Header().Get("RateLimit-Remaining"))
	}

	// The 31st request in the window is rejected
	rec := doFrom(handler, testIP+":5678")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("RateLimit-Remaining"))

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.True(t, retryAfter > 0 && retryAfter <= 60, "retry after %d", retryAfter)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "rate_limit_error", body["type"])
	assert.Equal(t, rec.Header().Get("X-Request-ID"), body["request_id"])

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RateLimitHits))

	// A different client is unaffected
	rec = doFrom(handler, "127.0.0.2:1234")
	assert.Equal(t, http.StatusOK, rec.Code)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis: connection refused")
}

func TestRateLimitFailsOpen(t *testing.T) {
	handler := middleware.RateLimit(failingLimiter{}, nil, nil, zaptest.NewLogger(t))(okHandler())

	rec := doFrom(handler, "127.0.0.1:1234")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("RateLimit-Limit"))
}

func TestRateLimitTrustsForwardedFor(t *testing.T) {
	limiter := ratelimit.NewFixedWindow(1, time.Minute)
	handler := middleware.RateLimit(limiter, ratelimit.ClientAddress(true), nil, nil)(okHandler())

	send := func(xff string) int {
		req := httptest.NewRequest("POST", "/api/translate", nil)
		req.RemoteAddr = "10.0.0.1:1234" // the proxy
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.1"))
	assert.Equal(t, http.StatusOK, send("203.0.113.2, 10.0.0.1"))
}
