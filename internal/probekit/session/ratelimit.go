package session

import (
	"sync"
	"time"
)

// rateLimiter is a fixed-interval token bucket. The token count is
// decremented per execute call and replenished to capacity once the
// interval elapses. Exhaustion fails fast; nothing queues.
type rateLimiter struct {
	mu         sync.Mutex
	capacity   int
	tokens     int
	interval   time.Duration
	lastRefill time.Time
	now        func() time.Time
}

func newRateLimiter(capacity int, interval time.Duration, now func() time.Time) *rateLimiter {
	return &rateLimiter{
		capacity:   capacity,
		tokens:     capacity,
		interval:   interval,
		lastRefill: now(),
		now:        now,
	}
}

// allow consumes one token if available. Refill happens lazily on the first
// call after an interval boundary.
func (l *rateLimiter) allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastRefill) >= l.interval {
		l.tokens = l.capacity
		l.lastRefill = now
	}
	if l.tokens <= 0 {
		return false
	}
	l.tokens--
	return true
}
