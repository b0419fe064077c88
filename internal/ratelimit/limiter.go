// Package ratelimit bounds login attempts per client address to slow down
// credential brute-forcing.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token-bucket limiter per client key.
type Limiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

// NewLimiter allows attempts requests per window for each key, with the
// full allowance available as an initial burst.
func NewLimiter(attempts int, window time.Duration) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Every(window / time.Duration(attempts)),
		burst:    attempts,
	}
}

// Allow reports whether another attempt is permitted for key.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}
