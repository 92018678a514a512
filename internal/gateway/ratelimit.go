package gateway

import (
	"sync"
	"time"
)

// bucket is a token bucket refilled continuously at rate tokens per second.
type bucket struct {
	tokens   float64
	lastTime time.Time
}

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	max     float64
	rate    float64 // tokens per second
	now     func() time.Time
	lastGC  time.Time
}

// NewRateLimiter allows ratePerMinute sustained requests per key with bursts of maxBurst.
func NewRateLimiter(maxBurst int, ratePerMinute float64) *RateLimiter {
	if maxBurst <= 0 {
		maxBurst = 10
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 60
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		max:     float64(maxBurst),
		rate:    ratePerMinute / 60.0,
		now:     time.Now,
	}
}

// Allow takes one token from key's bucket. It never blocks.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.gc(now)

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.max, lastTime: now}
		rl.buckets[key] = b
	}

	b.tokens += now.Sub(b.lastTime).Seconds() * rl.rate
	if b.tokens > rl.max {
		b.tokens = rl.max
	}
	b.lastTime = now

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return true
	}
	return false
}

// RetryAfter is how long an empty bucket needs to earn one token.
func (rl *RateLimiter) RetryAfter() time.Duration {
	return time.Duration(float64(time.Second) / rl.rate)
}

// gc drops buckets that have been idle long enough to be full again.
func (rl *RateLimiter) gc(now time.Time) {
	if now.Sub(rl.lastGC) < time.Minute {
		return
	}
	rl.lastGC = now
	full := time.Duration(rl.max / rl.rate * float64(time.Second))
	for k, b := range rl.buckets {
		if now.Sub(b.lastTime) > full {
			delete(rl.buckets, k)
		}
	}
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
