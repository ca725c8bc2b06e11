package core

import (
	"context"
	"testing"
	"time"
)

func TestMemoryAttemptLimiter_BlocksAfterMaxFailures(t *testing.T) {
	limiter := NewMemoryAttemptLimiter(3, time.Minute)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		allowed, err := limiter.Allow(ctx, "claim:user-7")
		if err != nil || !allowed {
			t.Fatalf("attempt %d: expected allowed, got %v %v", i, allowed, err)
		}
		count, err := limiter.RecordFailure(ctx, "claim:user-7")
		if err != nil {
			t.Fatalf("record failure: %v", err)
		}
		if count != i {
			t.Fatalf("expected count %d, got %d", i, count)
		}
	}
	allowed, err := limiter.Allow(ctx, "claim:user-7")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatalf("expected limiter to block after max failures")
	}
	if allowed, _ := limiter.Allow(ctx, "claim:user-8"); !allowed {
		t.Fatalf("expected other key to be allowed")
	}
}

func TestMemoryAttemptLimiter_WindowExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryAttemptLimiter(1, time.Minute)
	limiter.Now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := limiter.RecordFailure(ctx, "claim:user-7"); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if allowed, _ := limiter.Allow(ctx, "claim:user-7"); allowed {
		t.Fatalf("expected block inside window")
	}
	now = now.Add(61 * time.Second)
	if allowed, _ := limiter.Allow(ctx, "claim:user-7"); !allowed {
		t.Fatalf("expected allow after window")
	}
}

func TestMemoryAttemptLimiter_Reset(t *testing.T) {
	limiter := NewMemoryAttemptLimiter(1, time.Minute)
	ctx := context.Background()
	_, _ = limiter.RecordFailure(ctx, "claim:user-7")
	if err := limiter.Reset(ctx, "claim:user-7"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if allowed, _ := limiter.Allow(ctx, "claim:user-7"); !allowed {
		t.Fatalf("expected allow after reset")
	}
	if _, err := limiter.Allow(ctx, " "); err == nil {
		t.Fatalf("expected error for blank key")
	}
}
