// Package limiter throttles completion calls with a shared token bucket.
package limiter

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/sweetpotato0/ai-devteam/middleware"
)

// RateLimiter delays completion calls so the backend sees at most
// perSecond requests on average, with bursts of up to burst calls.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a rate limiting middleware. A non-positive burst is
// treated as one.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (m *RateLimiter) Name() string {
	return "RateLimiter"
}

// Execute waits for a token. A cancelled call context aborts the wait.
func (m *RateLimiter) Execute(ctx *middleware.Context, next middleware.Handler) error {
	if err := m.limiter.Wait(ctx.Context()); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", ctx.Worker, err)
	}
	return next(ctx)
}
