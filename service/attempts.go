package service

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultSignAttempts = 5
	DefaultSignWindow   = 5 * time.Minute
)

// AttemptLimiter counts attempts per key in fixed windows.
type AttemptLimiter interface {
	// Hit records one attempt for key. allowed is false once the count exceeds the limit;
	// retryAfter is the time left in the current window.
	Hit(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
	Close() error
}

type attemptWindow struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps counters in process memory.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*attemptWindow
	limit   int
	window  time.Duration
	now     func() time.Time
	lastGC  time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*attemptWindow),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Hit(ctx context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.gc(now)

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &attemptWindow{resetAt: now.Add(l.window)}
		l.windows[key] = w
	}
	w.count++
	return w.count <= l.limit, w.resetAt.Sub(now), nil
}

// gc drops expired windows at most once per window. Must be called with the lock held.
func (l *MemoryLimiter) gc(now time.Time) {
	if now.Sub(l.lastGC) < l.window {
		return
	}
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
	l.lastGC = now
}

func (l *MemoryLimiter) Close() error { return nil }
