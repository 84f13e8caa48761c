// Package ratelimit provides per-client request caps for the translate
// route. Limiter implementations are interchangeable so the process-local
// counters can be swapped for a shared store without touching the handler.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tarjuman/tarjuman/config"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the client should wait before the window
// resets, rounded up to whole seconds.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	if rem := wait % time.Second; rem != 0 {
		wait += time.Second - rem
	}
	return wait
}

// Limiter counts requests per key over a window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Janitor is implemented by limiters that keep process-local state and
// need idle entries removed.
type Janitor interface {
	Run(ctx context.Context, every time.Duration)
}

// New builds the limiter selected by cfg.Algorithm.
func New(cfg config.RateLimitConfig) (Limiter, error) {
	switch cfg.Algorithm {
	case "", "fixed_window":
		return NewFixedWindow(cfg.Requests, cfg.Window), nil
	case "token_bucket":
		return NewTokenBucket(cfg.Requests, cfg.Window), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisWindow(rdb, cfg.Requests, cfg.Window, WithPrefix(cfg.Redis.Prefix)), nil
	default:
		return nil, fmt.Errorf("unknown rate limit algorithm: %s", cfg.Algorithm)
	}
}

// KeyFunc extracts the client identity from a request.
type KeyFunc func(r *http.Request) string

// ClientAddress keys clients by remote address. With trustXFF set, the
// first X-Forwarded-For hop wins; only enable it behind a trusted proxy.
func ClientAddress(trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if trustXFF {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}
