// Package ratelimit spaces outbound requests per host with token buckets.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/tgc-rag/internal/metrics"
)

// Pacer guarantees a minimum gap between requests to the same host. A Pacer
// belongs to one crawl call; nothing is shared across calls.
type Pacer struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
}

// NewPacer builds a Pacer with the given per-host gap. A zero gap never waits.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

// Interval returns the configured gap.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Wait blocks until rawURL's host may be requested again.
func (p *Pacer) Wait(ctx context.Context, rawURL string) error {
	site := metrics.SanitizeSite(rawURL)
	limiter := p.limiterFor(site)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacer wait for %s: %w", site, err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(site, waited)
	}
	return nil
}

func (p *Pacer) limiterFor(site string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	limiter, ok := p.limiters[site]
	if !ok {
		limit := rate.Inf
		if p.interval > 0 {
			limit = rate.Every(p.interval)
		}
		limiter = rate.NewLimiter(limit, 1)
		p.limiters[site] = limiter
	}
	return limiter
}
