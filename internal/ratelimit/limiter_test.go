package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/chefstream/harvester/internal/ratelimit"
)

func TestLimiter_BurstCapacityCeiling(t *testing.T) {
	t.Parallel()

	l := ratelimit.NewLimiter(3)
	l.Configure("provider-a", 60)

	for i := 0; i < 3; i++ {
		if !l.TryAcquire("provider-a") {
			t.Fatalf("expected token %d to be available", i+1)
		}
	}
	if l.TryAcquire("provider-a") {
		t.Fatal("expected bucket to be empty after draining capacity")
	}
}

func TestLimiter_ProvidersAreIndependent(t *testing.T) {
	t.Parallel()

	l := ratelimit.NewLimiter(1)
	l.Configure("provider-a", 60)
	l.Configure("provider-b", 60)

	if !l.TryAcquire("provider-a") {
		t.Fatal("expected provider-a token")
	}
	if !l.TryAcquire("provider-b") {
		t.Fatal("draining provider-a must not affect provider-b")
	}
	if l.TryAcquire("provider-a") {
		t.Fatal("provider-a should be empty")
	}
}

func TestLimiter_AcquireBlocksUntilRefill(t *testing.T) {
	t.Parallel()

	l := ratelimit.NewLimiter(1)
	// 6000 per minute refills every 10ms.
	l.Configure("provider-a", 6000)

	if !l.TryAcquire("provider-a") {
		t.Fatal("expected initial token")
	}

	start := time.Now()
	if err := l.Acquire(context.Background(), "provider-a"); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Acquire took too long: %v", elapsed)
	}
}

func TestLimiter_AcquireHonorsContext(t *testing.T) {
	t.Parallel()

	l := ratelimit.NewLimiter(1)
	// One request per minute: the next token is a minute away.
	l.Configure("provider-a", 1)
	if !l.TryAcquire("provider-a") {
		t.Fatal("expected initial token")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Acquire(ctx, "provider-a"); err == nil {
		t.Fatal("expected context error while waiting for refill")
	}
}

func TestLimiter_ResetRefillsBucket(t *testing.T) {
	t.Parallel()

	l := ratelimit.NewLimiter(2)
	l.Configure("provider-a", 1)

	l.TryAcquire("provider-a")
	l.TryAcquire("provider-a")
	if l.TryAcquire("provider-a") {
		t.Fatal("expected empty bucket")
	}

	l.Reset("provider-a")
	if !l.TryAcquire("provider-a") {
		t.Fatal("expected full bucket after reset")
	}
}

func TestLimiter_StatusReportsRemaining(t *testing.T) {
	t.Parallel()

	l := ratelimit.NewLimiter(5)
	l.Configure("provider-a", 1)

	remaining, capacity := l.Status("provider-a")
	if capacity != 5 {
		t.Fatalf("expected capacity 5, got %d", capacity)
	}
	if remaining != 5 {
		t.Fatalf("expected 5 remaining, got %d", remaining)
	}

	l.TryAcquire("provider-a")
	l.TryAcquire("provider-a")

	remaining, _ = l.Status("provider-a")
	if remaining != 3 {
		t.Fatalf("expected 3 remaining, got %d", remaining)
	}
}

func TestLimiter_ConfigureKeepsBucketOnSameRate(t *testing.T) {
	t.Parallel()

	l := ratelimit.NewLimiter(2)
	l.Configure("provider-a", 1)
	l.TryAcquire("provider-a")

	// Reconfiguring with an unchanged rate must not refill the bucket.
	l.Configure("provider-a", 1)
	remaining, _ := l.Status("provider-a")
	if remaining != 1 {
		t.Fatalf("expected 1 remaining after reconfigure, got %d", remaining)
	}

	// A changed rate rebuilds the bucket full.
	l.Configure("provider-a", 2)
	remaining, _ = l.Status("provider-a")
	if remaining != 2 {
		t.Fatalf("expected full bucket after rate change, got %d", remaining)
	}
}

func TestLimiter_UnconfiguredProviderUsesDefaults(t *testing.T) {
	t.Parallel()

	l := ratelimit.NewLimiter(ratelimit.DefaultCapacity)
	if !l.TryAcquire("never-configured") {
		t.Fatal("expected default bucket to issue tokens")
	}
}
