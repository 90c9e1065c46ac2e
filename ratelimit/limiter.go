// Package ratelimit provides the per-client token bucket limiter applied at
// the HTTP boundary.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-approvals/core"
)

// maxBuckets caps the number of tracked clients so an attacker rotating keys
// or addresses cannot exhaust memory.
const maxBuckets = 100_000

const (
	cleanupInterval = 5 * time.Minute
	bucketMaxAge    = 10 * time.Minute
)

type ThrottledError struct {
	Client     string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("ratelimit: client %q throttled for %s", strings.TrimSpace(e.Client), e.RetryAfter)
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{
		"client": strings.TrimSpace(e.Client),
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.ApprovalErrorRateLimited).
		WithMetadata(metadata)
}

type bucket struct {
	tokens   int
	lastFill time.Time
}

// Limiter is a token bucket limiter keyed by client identity. Callers decide
// what the identity is; the HTTP layer uses the client IP so one misbehaving
// integration cannot starve the rest.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    int
	burst   int
	now     func() time.Time
}

// NewLimiter creates a Limiter allowing ratePerSec sustained requests with
// the given burst. A background goroutine evicts stale buckets until ctx is
// cancelled.
func NewLimiter(ctx context.Context, ratePerSec, burst int) (*Limiter, error) {
	if ratePerSec <= 0 {
		return nil, fmt.Errorf("ratelimit: rate must be positive, got %d", ratePerSec)
	}
	if burst <= 0 {
		return nil, fmt.Errorf("ratelimit: burst must be positive, got %d", burst)
	}
	limiter := &Limiter{
		buckets: make(map[string]*bucket),
		rate:    ratePerSec,
		burst:   burst,
		now:     time.Now,
	}
	go limiter.startCleanup(ctx)
	return limiter, nil
}

// Allow consumes one token for the client. It returns a ThrottledError when
// the bucket is empty or when the bucket table is full and the client is new.
func (l *Limiter) Allow(client string) error {
	if l == nil {
		return fmt.Errorf("ratelimit: limiter is nil")
	}
	client = strings.TrimSpace(client)
	if client == "" {
		client = "unknown"
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[client]
	if !ok {
		if len(l.buckets) >= maxBuckets {
			return ThrottledError{Client: client, RetryAfter: l.retryHint()}
		}
		b = &bucket{tokens: l.burst, lastFill: now}
		l.buckets[client] = b
	}

	refill := int(now.Sub(b.lastFill).Seconds() * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
		b.lastFill = now
	}

	if b.tokens <= 0 {
		return ThrottledError{Client: client, RetryAfter: l.retryHint()}
	}
	b.tokens--
	return nil
}

func (l *Limiter) retryHint() time.Duration {
	hint := time.Second / time.Duration(l.rate)
	if hint < time.Millisecond {
		hint = time.Millisecond
	}
	return hint
}

func (l *Limiter) startCleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for client, b := range l.buckets {
				if now.Sub(b.lastFill) > bucketMaxAge {
					delete(l.buckets, client)
				}
			}
			l.mu.Unlock()
		}
	}
}
