package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_PerHost(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "http://data.gdeltproject.org/gdeltv2/lastupdate.txt"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := limiter.Wait(ctx, "http://data.gdeltproject.org/gdeltv2/a.zip"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := limiter.Wait(ctx, "http://mirror.example.org/a.zip"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	if limiter.Hosts() != 2 {
		t.Errorf("expected 2 hosts, got %d", limiter.Hosts())
	}
}

func TestLimiter_Throttles(t *testing.T) {
	limiter := NewLimiter(20, 1) // one token every 50ms
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.Wait(ctx, "http://example.com/x"); err != nil {
			t.Fatalf("wait failed: %v", err)
		}
	}

	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected throttling, 3 requests took %v", elapsed)
	}
}

func TestLimiter_ContextCanceled(t *testing.T) {
	limiter := NewLimiter(0.1, 1)
	ctx, cancel := context.WithCancel(context.Background())

	_ = limiter.Wait(ctx, "http://example.com") // consume burst
	cancel()

	if err := limiter.Wait(ctx, "http://example.com"); err == nil {
		t.Error("expected error for canceled context")
	}
}
