// Package ratelimit provides per-provider token-bucket request pacing.
// Each provider has an independent bucket: exhausting one provider's budget
// never affects another's availability. Buckets permit short bursts up to
// their capacity rather than enforcing a fixed inter-request interval.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultCapacity is the bucket capacity used when a provider has not
	// been configured explicitly.
	DefaultCapacity = 5
	// DefaultPerMinute is the refill rate used when a provider has not
	// been configured explicitly.
	DefaultPerMinute = 30

	secondsPerMinute = 60
)

// bucket pairs a limiter with its configured settings so Reset can rebuild
// it at full capacity.
type bucket struct {
	limiter   *rate.Limiter
	capacity  int
	perMinute int
}

// Limiter governs outbound request pacing across providers. Safe for
// concurrent use: token deduction and refill are handled atomically by the
// underlying rate.Limiter, and the bucket map is mutex-guarded.
type Limiter struct {
	mu              sync.Mutex
	buckets         map[string]*bucket
	defaultCapacity int
}

// NewLimiter creates a limiter whose lazily-created buckets hold
// defaultCapacity tokens. A non-positive capacity falls back to
// DefaultCapacity.
func NewLimiter(defaultCapacity int) *Limiter {
	if defaultCapacity <= 0 {
		defaultCapacity = DefaultCapacity
	}
	return &Limiter{
		buckets:         make(map[string]*bucket),
		defaultCapacity: defaultCapacity,
	}
}

// Configure sets a provider's refill rate (tokens per minute). The bucket
// is created full; reconfiguring with unchanged settings keeps the existing
// bucket and its current token count.
func (l *Limiter) Configure(providerID string, perMinute int) {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[providerID]; ok && b.perMinute == perMinute {
		return
	}
	l.buckets[providerID] = newBucket(l.defaultCapacity, perMinute)
}

// TryAcquire attempts to take one token without blocking.
func (l *Limiter) TryAcquire(providerID string) bool {
	return l.bucketFor(providerID).limiter.Allow()
}

// Acquire blocks until a token is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context, providerID string) error {
	if err := l.bucketFor(providerID).limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for provider %s: %w", providerID, err)
	}
	return nil
}

// Status returns the remaining whole tokens and the bucket capacity.
func (l *Limiter) Status(providerID string) (remaining, capacity int) {
	b := l.bucketFor(providerID)

	tokens := int(math.Floor(b.limiter.Tokens()))
	if tokens < 0 {
		tokens = 0
	}
	if tokens > b.capacity {
		tokens = b.capacity
	}
	return tokens, b.capacity
}

// Reset refills a provider's bucket to capacity. Resetting an unknown
// provider is a no-op.
func (l *Limiter) Reset(providerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[providerID]
	if !ok {
		return
	}
	l.buckets[providerID] = newBucket(b.capacity, b.perMinute)
}

// bucketFor returns a provider's bucket, creating one with default settings
// on first request.
func (l *Limiter) bucketFor(providerID string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[providerID]
	if !ok {
		b = newBucket(l.defaultCapacity, DefaultPerMinute)
		l.buckets[providerID] = b
	}
	return b
}

// newBucket builds a full bucket with the given capacity and refill rate.
func newBucket(capacity, perMinute int) *bucket {
	interval := time.Duration(float64(time.Minute) / float64(perMinute))
	return &bucket{
		limiter:   rate.NewLimiter(rate.Every(interval), capacity),
		capacity:  capacity,
		perMinute: perMinute,
	}
}
