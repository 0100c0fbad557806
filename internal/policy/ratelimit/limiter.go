// Package ratelimit throttles outbound requests to the data source.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter spaces out requests against a single host. TEFAS throttles
// aggressive clients, so the crawler keeps a polite request rate even when
// several workers fetch pages in parallel.
type Limiter struct {
	limiter *rate.Limiter
}

// Config holds limiter settings. A non-positive RequestsPerSecond disables
// throttling.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(r, burst)}
}

// Wait blocks until the next request may go out, respecting the context.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}
