package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jobnorm/internal/model"
)

// Limiter enforces a minimum delay between consecutive requests to the
// postings API, so a multi-page crawl does not trip the provider's quota.
type Limiter struct {
	mu       sync.Mutex
	lastCall time.Time
	minDelay time.Duration
}

// NewLimiter creates a limiter that enforces minDelay between requests.
func NewLimiter(minDelay time.Duration) *Limiter {
	return &Limiter{minDelay: minDelay}
}

// Wait blocks until minDelay has elapsed since the previous request, or the
// context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := time.Now()

	if l.lastCall.IsZero() {
		// First request — no wait needed.
		l.lastCall = now
		l.mu.Unlock()
		return nil
	}

	elapsed := now.Sub(l.lastCall)
	if elapsed >= l.minDelay {
		// Enough time has passed — proceed immediately.
		l.lastCall = now
		l.mu.Unlock()
		return nil
	}

	// Need to wait for the remainder.
	remaining := l.minDelay - elapsed
	l.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait: %w", ctx.Err())
	case <-time.After(remaining):
	}

	// Record the actual time after waiting.
	l.mu.Lock()
	l.lastCall = time.Now()
	l.mu.Unlock()

	return nil
}

// PacedFetcher is a decorator that paces page requests before delegating to
// the wrapped PageFetcher.
type PacedFetcher struct {
	inner   model.PageFetcher
	limiter *Limiter
}

// NewPacedFetcher wraps a PageFetcher with request pacing. Fetchers hitting
// the same API quota should share the same limiter instance.
func NewPacedFetcher(inner model.PageFetcher, limiter *Limiter) *PacedFetcher {
	return &PacedFetcher{inner: inner, limiter: limiter}
}

// FetchPage waits for the limiter to allow a request, then delegates to the
// wrapped fetcher.
func (f *PacedFetcher) FetchPage(ctx context.Context, page int) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return f.inner.FetchPage(ctx, page)
}
