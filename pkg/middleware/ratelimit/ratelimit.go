// Package ratelimit guards the public API against abusive clients. The
// local limiter keeps token buckets per key in process; the Redis
// limiter shares a counter across replicas.
package ratelimit

import (
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/crudkit/crudkit/pkg/server/router"
)

// RateLimiter decides whether the request identified by key may proceed.
// Implementations must be safe for concurrent use.
type RateLimiter interface {
	Allow(key string) bool
}

// TokenBucketLimiter keeps an independent token bucket per key. Bursts up
// to the burst size pass immediately; sustained traffic is capped at the
// configured rate.
type TokenBucketLimiter struct {
	limiters sync.Map
	rate     rate.Limit
	burst    int
}

// NewTokenBucketLimiter creates a per-key token bucket limiter allowing
// requestsPerSecond on average with bursts up to burst.
func NewTokenBucketLimiter(requestsPerSecond int, burst int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		rate:  rate.Limit(requestsPerSecond),
		burst: burst,
	}
}

// Allow reports whether a request for key is within its budget.
func (l *TokenBucketLimiter) Allow(key string) bool {
	return l.getLimiter(key).Allow()
}

func (l *TokenBucketLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := l.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(l.rate, l.burst)
	actual, _ := l.limiters.LoadOrStore(key, limiter)
	return actual.(*rate.Limiter)
}

// Config configures the rate limiting middleware.
type Config struct {
	// RequestsPerSecond is the sustained per-key budget.
	RequestsPerSecond int

	// Burst is the short-term allowance on top of the sustained budget.
	Burst int

	// KeyFunc extracts the limiting key, typically the client IP.
	KeyFunc func(router.Context) string
}

// RateLimit returns middleware that rejects over-budget requests with 429
// and a Retry-After header.
func RateLimit(limiter RateLimiter, cfg Config) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			key := cfg.KeyFunc(c)

			if !limiter.Allow(key) {
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"message":        "rate limit exceeded",
					"success_status": false,
					"error":          "RateLimited",
				})
			}

			return next(c)
		}
	}
}

// ExtractIPFromRequest returns the client IP, honoring X-Forwarded-For
// and X-Real-IP before falling back to RemoteAddr.
func ExtractIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
