package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWindow is a fixed-window counter kept in Redis so several relay
// instances share one quota per client.
type RedisWindow struct {
	rdb    redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// RedisOption configures a RedisWindow.
type RedisOption func(*RedisWindow)

// WithPrefix sets the key namespace (default "tarjuman:ratelimit").
func WithPrefix(prefix string) RedisOption {
	return func(w *RedisWindow) {
		if p := strings.Trim(prefix, ":"); p != "" {
			w.prefix = p
		}
	}
}

// NewRedisWindow returns a limiter allowing limit requests per window.
func NewRedisWindow(rdb redis.UniversalClient, limit int, window time.Duration, opts ...RedisOption) *RedisWindow {
	w := &RedisWindow{
		rdb:    rdb,
		limit:  limit,
		window: window,
		prefix: "tarjuman:ratelimit",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Allow implements Limiter. The request that opens a window sets its
// expiry; later ones only read the remaining TTL.
func (w *RedisWindow) Allow(ctx context.Context, key string) (Decision, error) {
	k := w.prefix + ":" + key

	pipe := w.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("redis rate limit %s: %w", key, err)
	}

	left := ttl.Val()
	if left < 0 {
		// New key, or a key left without expiry by an earlier failure.
		if err := w.rdb.PExpire(ctx, k, w.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("redis rate limit expire %s: %w", key, err)
		}
		left = w.window
	}

	count := int(incr.Val())
	remaining := w.limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= w.limit,
		Limit:     w.limit,
		Remaining: remaining,
		ResetAt:   w.now().Add(left),
	}, nil
}

// Ping checks connectivity; used at startup.
func (w *RedisWindow) Ping(ctx context.Context) error {
	return w.rdb.Ping(ctx).Err()
}

// Close releases the underlying client.
func (w *RedisWindow) Close() error {
	return w.rdb.Close()
}
