package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCircuitBreaker(t *testing.T) {
	logger := zaptest.NewLogger(t)

	// Helper function to create a new circuit breaker for each test
	newCB := func() *CircuitBreaker {
		cb, err := NewCircuitBreaker(Config{
			Name:             "test",
			MaxRequests:      1,
			Interval:         time.Second,
			Timeout:          100 * time.Millisecond,
			FailureThreshold: 2,
			TestMode:         true,
		}, logger, nil)
		require.NoError(t, err)
		return cb
	}

	t.Run("Initially Closed", func(t *testing.T) {
		cb := newCB()
		assert.Equal(t, gobreaker.StateClosed, cb.State())
		assert.Equal(t, "test", cb.Name())
	})

	t.Run("Opens After Failures", func(t *testing.T) {
		cb := newCB()

		err := cb.Execute(func() error { return errors.New("error 1") })
		assert.Error(t, err)
		assert.Equal(t, gobreaker.StateClosed, cb.State())

		err = cb.Execute(func() error { return errors.New("error 2") })
		assert.Error(t, err)
		assert.Equal(t, gobreaker.StateOpen, cb.State())

		called := false
		err = cb.Execute(func() error {
			called = true
			return nil
		})
		assert.False(t, called)
		assert.True(t, IsOpen(err))
		assert.Equal(t, "circuit breaker is open", err.Error())
	})

	t.Run("Closes After Success", func(t *testing.T) {
		cb := newCB()
		for i := 0; i < 2; i++ {
			_ = cb.Execute(func() error { return errors.New("failure") })
		}
		require.Equal(t, gobreaker.StateOpen, cb.State())

		time.Sleep(150 * time.Millisecond)
		assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

		err := cb.Execute(func() error { return nil })
		assert.NoError(t, err)
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})

	t.Run("Reopens On Half-Open Failure", func(t *testing.T) {
		cb := newCB()
		for i := 0; i < 2; i++ {
			_ = cb.Execute(func() error { return errors.New("failure") })
		}
		time.Sleep(150 * time.Millisecond)

		err := cb.Execute(func() error { return errors.New("failure in half-open") })
		assert.Error(t, err)
		assert.Equal(t, gobreaker.StateOpen, cb.State())
	})

	t.Run("Success Resets Consecutive Failures", func(t *testing.T) {
		cb := newCB()
		_ = cb.Execute(func() error { return errors.New("failure") })
		_ = cb.Execute(func() error { return nil })
		_ = cb.Execute(func() error { return errors.New("failure") })

		assert.Equal(t, gobreaker.StateClosed, cb.State())
		counts := cb.Counts()
		assert.Equal(t, uint32(3), counts.Requests)
		assert.Equal(t, uint32(2), counts.TotalFailures)
		assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	})

	t.Run("Canceled Calls Do Not Count", func(t *testing.T) {
		cb := newCB()
		for i := 0; i < 3; i++ {
			err := cb.Execute(func() error {
				return fmt.Errorf("upstream: %w", context.Canceled)
			})
			assert.ErrorIs(t, err, context.Canceled)
		}
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})
}

func TestCircuitBreakerConfigErrors(t *testing.T) {
	_, err := NewCircuitBreaker(Config{FailureThreshold: 1}, nil, nil)
	assert.Error(t, err)

	_, err = NewCircuitBreaker(Config{Name: "x"}, nil, nil)
	assert.Error(t, err)
}

func TestCircuitBreakerMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	cb, err := NewCircuitBreaker(Config{
		Name:             "metrics",
		MaxRequests:      1,
		Timeout:          time.Minute,
		FailureThreshold: 1,
	}, zaptest.NewLogger(t), registry)
	require.NoError(t, err)

	assert.Equal(t, float64(0), testutil.ToFloat64(cb.stateGauge))

	_ = cb.Execute(func() error { return errors.New("boom") })

	assert.Equal(t, float64(gobreaker.StateOpen), testutil.ToFloat64(cb.stateGauge))
	assert.Equal(t, float64(1), testutil.ToFloat64(cb.tripsTotal))

	// Registering a second breaker with the same name must fail.
	_, err = NewCircuitBreaker(Config{Name: "metrics", FailureThreshold: 1}, nil, registry)
	assert.Error(t, err)
}
