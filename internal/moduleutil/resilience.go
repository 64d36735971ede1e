// Package moduleutil provides network-resilience helpers for module
// authors: a shared rate limiter and a per-module circuit breaker, so
// modules that call out to external services (DNS, whois, HTTP APIs)
// don't each hand-roll backoff. An open breaker is surfaced as a
// transient module.Error so the scheduler retries it like any other
// rerun-eligible failure.
package moduleutil

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/akowasch/domainsearch/internal/module"
)

// Limiter wraps golang.org/x/time/rate for outbound probe calls.
type Limiter struct {
	l *rate.Limiter
}

// NewLimiter allows burst calls immediately and ratePerSec afterward.
func NewLimiter(ratePerSec float64, burst int) *Limiter {
	return &Limiter{l: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.l.Wait(ctx)
}

// Breaker wraps sony/gobreaker for one module's external calls.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker opens after 5 consecutive failures and probes again
// after 30s half-open, reasonable defaults for a per-module probe.
func NewBreaker(name string) *Breaker {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(st)}
}

// Do runs fn through the breaker. An open breaker, or any error fn
// returns, is surfaced as a transient module.Error so the scheduler
// treats it as rerun-eligible rather than permanent.
func (b *Breaker) Do(moduleName string, fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if err == nil {
		return nil
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return module.NewError(true, "%s: circuit open: %v", moduleName, err)
	}
	return module.NewError(true, "%s: %v", moduleName, err)
}
