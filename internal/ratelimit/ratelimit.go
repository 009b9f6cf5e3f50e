// Package ratelimit is the per-caller admission gate in front of report creation.
package ratelimit

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	DefaultLimit  = 10
	DefaultWindow = 10 * time.Minute

	// sweepThreshold bounds the table; expired buckets are dropped once it is exceeded.
	sweepThreshold = 10000
)

type Clock func() time.Time

type bucket struct {
	count   int
	resetAt time.Time
}

// Decision is the outcome of one admission check. RetryAfter is set only when OK is false.
type Decision struct {
	OK         bool
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds for the Retry-After header.
func (d Decision) RetryAfterSeconds() int {
	if d.RetryAfter <= 0 {
		return 0
	}
	return int((d.RetryAfter + time.Second - 1) / time.Second)
}

// Limiter is a fixed-window counter per key. A window starts on the first request for a key
// and resets on the first request after it expires.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
	now     Clock
}

func New(limit int, window time.Duration, clock Clock) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = time.Now
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		now:     clock,
	}
}

func (l *Limiter) Allow(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if ok && b.resetAt.After(now) {
		if b.count >= l.limit {
			return Decision{OK: false, RetryAfter: b.resetAt.Sub(now)}
		}
		b.count++
		return Decision{OK: true}
	}

	if !ok && len(l.buckets) >= sweepThreshold {
		l.sweep(now)
	}
	l.buckets[key] = &bucket{count: 1, resetAt: now.Add(l.window)}
	return Decision{OK: true}
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if !b.resetAt.After(now) {
			delete(l.buckets, k)
		}
	}
}

// CallerKey derives the caller identity from proxy headers, falling back to "unknown".
func CallerKey(h http.Header) string {
	raw := h.Get("X-Forwarded-For")
	if raw == "" {
		raw = h.Get("X-Real-IP")
	}
	first, _, _ := strings.Cut(raw, ",")
	if first = strings.TrimSpace(first); first != "" {
		return first
	}
	return "unknown"
}
