package circuitbreaker

import (
	"errors"

	"github.com/sony/gobreaker"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker is open
	ErrCircuitOpen = gobreaker.ErrOpenState

	// ErrTooManyRequests is returned when the half-open trial request quota is used up
	ErrTooManyRequests = gobreaker.ErrTooManyRequests
)

// IsOpen reports whether err means the call was refused by the breaker.
func IsOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}
