package ratelimit

import (
	"context"
	"sync"
	"time"
)

// FixedWindow is a process-local fixed-window counter. The first request
// from a key opens a window; at most limit requests pass until it ends,
// then the count starts over.
type FixedWindow struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	limit   int
	window  time.Duration
	now     func() time.Time
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// NewFixedWindow returns a limiter allowing limit requests per window.
func NewFixedWindow(limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{
		entries: make(map[string]*windowEntry),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow implements Limiter.
func (f *FixedWindow) Allow(_ context.Context, key string) (Decision, error) {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	ent, ok := f.entries[key]
	if !ok || !now.Before(ent.resetAt) {
		ent = &windowEntry{resetAt: now.Add(f.window)}
		f.entries[key] = ent
	}

	ent.count++
	remaining := f.limit - ent.count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   ent.count <= f.limit,
		Limit:     f.limit,
		Remaining: remaining,
		ResetAt:   ent.resetAt,
	}, nil
}

// Cleanup drops entries whose window has ended.
func (f *FixedWindow) Cleanup() {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	for k, ent := range f.entries {
		if !now.Before(ent.resetAt) {
			delete(f.entries, k)
		}
	}
}

// Len returns the number of tracked keys.
func (f *FixedWindow) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Run implements Janitor. It blocks until ctx is done.
func (f *FixedWindow) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = f.window
	}
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			f.Cleanup()
		}
	}
}
