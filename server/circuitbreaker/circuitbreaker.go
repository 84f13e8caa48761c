// Package circuitbreaker guards the outbound generation call. It wraps
// sony/gobreaker and exports the breaker state to Prometheus.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config holds configuration for the circuit breaker
type Config struct {
	Name             string
	MaxRequests      uint32        // Requests allowed through while half-open
	Interval         time.Duration // Cyclic period for clearing counts while closed
	Timeout          time.Duration // Time spent open before trying half-open
	FailureThreshold uint32        // Consecutive failures before opening
	TestMode         bool          // Skip metric registration in test mode
}

// CircuitBreaker wraps a gobreaker.CircuitBreaker with logging and metrics.
type CircuitBreaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger

	stateGauge prometheus.Gauge
	tripsTotal prometheus.Counter
}

// NewCircuitBreaker creates a new circuit breaker. Metrics are registered
// on registry unless cfg.TestMode is set or registry is nil.
func NewCircuitBreaker(cfg Config, logger *zap.Logger, registry *prometheus.Registry) (*CircuitBreaker, error) {
	if cfg.Name == "" {
		return nil, errors.New("circuit breaker name is required")
	}
	if cfg.FailureThreshold == 0 {
		return nil, fmt.Errorf("circuit breaker %s: failure threshold must be positive", cfg.Name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := &CircuitBreaker{
		name:   cfg.Name,
		logger: logger,
		stateGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "tarjuman_circuit_breaker_state",
			Help:        "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
			ConstLabels: prometheus.Labels{"name": cfg.Name},
		}),
		tripsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "tarjuman_circuit_breaker_trips_total",
			Help:        "Total number of times the circuit breaker has tripped",
			ConstLabels: prometheus.Labels{"name": cfg.Name},
		}),
	}

	if !cfg.TestMode && registry != nil {
		if err := registry.Register(cb.stateGauge); err != nil {
			return nil, fmt.Errorf("register circuit breaker state: %w", err)
		}
		if err := registry.Register(cb.tripsTotal); err != nil {
			return nil, fmt.Errorf("register circuit breaker trips: %w", err)
		}
	}

	threshold := cfg.FailureThreshold
	cb.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: cb.onStateChange,
		// A caller hanging up says nothing about the upstream.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return cb, nil
}

// onStateChange runs with the gobreaker mutex held; it must not call back
// into the breaker.
func (cb *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	cb.stateGauge.Set(float64(to))
	if to == gobreaker.StateOpen {
		cb.tripsTotal.Inc()
		cb.logger.Warn("Circuit breaker tripped",
			zap.String("name", name),
			zap.String("from", from.String()),
		)
		return
	}
	cb.logger.Info("Circuit breaker state changed",
		zap.String("name", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// Execute runs f if the breaker allows it. While open it returns an error
// matching ErrCircuitOpen without calling f.
func (cb *CircuitBreaker) Execute(f func() error) error {
	_, err := cb.breaker.Execute(func() (interface{}, error) {
		return nil, f()
	})
	return err
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Counts returns the request counts of the current generation.
func (cb *CircuitBreaker) Counts() gobreaker.Counts {
	return cb.breaker.Counts()
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}
