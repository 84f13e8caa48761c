package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket gives each key a golang.org/x/time/rate limiter with a burst
// of limit and a refill of limit per window. Unlike FixedWindow it never
// lets a client send 2*limit requests across a window boundary.
type TokenBucket struct {
	mu      sync.Mutex
	entries map[string]*bucketEntry
	limit   int
	window  time.Duration
	every   rate.Limit
	idleTTL time.Duration
	now     func() time.Time
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewTokenBucket returns a limiter allowing bursts of limit requests and
// a sustained rate of limit per window.
func NewTokenBucket(limit int, window time.Duration) *TokenBucket {
	return &TokenBucket{
		entries: make(map[string]*bucketEntry),
		limit:   limit,
		window:  window,
		every:   rate.Every(window / time.Duration(limit)),
		idleTTL: window,
		now:     time.Now,
	}
}

// Allow implements Limiter.
func (b *TokenBucket) Allow(_ context.Context, key string) (Decision, error) {
	now := b.now()

	b.mu.Lock()
	ent, ok := b.entries[key]
	if !ok {
		ent = &bucketEntry{lim: rate.NewLimiter(b.every, b.limit)}
		b.entries[key] = ent
	}
	ent.lastSeen = now
	b.mu.Unlock()

	allowed := ent.lim.AllowN(now, 1)
	tokens := ent.lim.TokensAt(now)

	remaining := int(math.Floor(tokens))
	if remaining < 0 {
		remaining = 0
	}

	// Time until the bucket is full again.
	missing := float64(b.limit) - tokens
	resetAt := now
	if missing > 0 {
		resetAt = now.Add(time.Duration(missing / float64(b.every) * float64(time.Second)))
	}

	return Decision{
		Allowed:   allowed,
		Limit:     b.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Cleanup drops keys idle for longer than one window; by then their
// bucket has refilled and a fresh limiter is equivalent.
func (b *TokenBucket) Cleanup() {
	cutoff := b.now().Add(-b.idleTTL)

	b.mu.Lock()
	defer b.mu.Unlock()

	for k, ent := range b.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(b.entries, k)
		}
	}
}

// Run implements Janitor. It blocks until ctx is done.
func (b *TokenBucket) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = b.window
	}
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			b.Cleanup()
		}
	}
}
