// Package middleware provides HTTP middleware for the public API
// surface. Payment providers retry aggressively, so the IPN endpoints
// sit behind a per-IP token bucket.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a token-bucket limiter keyed by caller identity.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	cleanup time.Duration
	now     func() time.Time
	stop    chan struct{}
}

type bucket struct {
	tokens     float64
	limit      float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewRateLimiter creates a limiter and starts its stale-bucket sweep.
// Stop ends the sweep.
func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		cleanup: 10 * time.Minute,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop terminates the background sweep. Safe to call once.
func (rl *RateLimiter) Stop() {
	if rl.stop != nil {
		close(rl.stop)
	}
}

// Allow consumes one token from the key's bucket. A fresh key starts
// with a full bucket of limit tokens refilling at limit per hour.
func (rl *RateLimiter) Allow(key string, limit int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{
			tokens:     float64(limit),
			limit:      float64(limit),
			refillRate: float64(limit) / 3600.0,
			lastRefill: rl.now(),
		}
		rl.buckets[key] = b
	}

	now := rl.now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	if b.tokens > b.limit {
		b.tokens = b.limit
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Remaining reports how many tokens the key has left, without refill.
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok := rl.buckets[key]; ok {
		return int(b.tokens)
	}
	return 0
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := rl.now().Add(-rl.cleanup)
			for key, b := range rl.buckets {
				if b.lastRefill.Before(cutoff) {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// LimitByIP rejects callers that exceed requestsPerHour with a 429.
// Responses carry X-RateLimit headers so well-behaved providers can
// back off before hitting the limit.
func (rl *RateLimiter) LimitByIP(requestsPerHour int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()

		if !rl.Allow(key, requestsPerHour) {
			c.Header("X-RateLimit-Limit", strconv.Itoa(requestsPerHour))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining(key)))
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":      false,
				"message": "Too many requests. Slow down.",
			})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(requestsPerHour))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining(key)))
		c.Next()
	}
}
