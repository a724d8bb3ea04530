// Package papersources holds the transport shared by remote page fetchers:
// a politeness rate limiter and a retrying HTTP client.
package papersources

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket that spaces requests to a remote service.
// It is safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing ratePerSecond sustained requests
// with the given burst.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// NewIntervalLimiter creates a limiter that admits one request per interval.
// arXiv asks clients for no more than one request every three seconds,
// which is NewIntervalLimiter(3*time.Second).
func NewIntervalLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Wait blocks until a request is allowed or the context is canceled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
