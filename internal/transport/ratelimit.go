package transport

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter provides per-host token buckets so a burst of lifecycle calls
// cannot flood one backend.
type RateLimiter struct {
	limiters   map[string]*rate.Limiter
	mu         sync.RWMutex
	rateLimit  rate.Limit
	burstLimit int
}

// NewRateLimiter creates a rate limiter with the given requests per second and burst.
// A non-positive rate disables limiting.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(ratePerSecond)
	if ratePerSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters:   make(map[string]*rate.Limiter),
		rateLimit:  limit,
		burstLimit: burst,
	}
}

// Allow reports whether a request to host may proceed now.
func (r *RateLimiter) Allow(host string) bool {
	return r.getLimiter(host).Allow()
}

// Wait blocks until a request to host is allowed or the context is done.
func (r *RateLimiter) Wait(ctx context.Context, host string) error {
	return r.getLimiter(host).Wait(ctx)
}

func (r *RateLimiter) getLimiter(host string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[host]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = r.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(r.rateLimit, r.burstLimit)
	r.limiters[host] = limiter
	return limiter
}
