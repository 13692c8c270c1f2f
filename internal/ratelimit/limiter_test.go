package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNewLimiterBurst(t *testing.T) {
	limiter := NewLimiter("yahoo", 60)

	if limiter.Name() != "yahoo" {
		t.Errorf("Expected name 'yahoo', got '%s'", limiter.Name())
	}

	for i := 0; i < 3; i++ {
		if !limiter.Allow() {
			t.Errorf("Request %d should have been allowed", i)
		}
	}
}

func TestLimiterWait(t *testing.T) {
	limiter := NewLimiter("test", 120)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Wait took too long")
	}
}

func TestLimiterBackoff(t *testing.T) {
	limiter := NewLimiter("test", 60)

	if limiter.Backoff() != 0 {
		t.Fatalf("Expected no backoff initially, got %s", limiter.Backoff())
	}

	limiter.SignalRateLimited()
	after1 := limiter.Backoff()
	if after1 <= 0 {
		t.Error("Backoff should start after rate limit signal")
	}

	limiter.SignalRateLimited()
	after2 := limiter.Backoff()
	if after2 <= after1 {
		t.Error("Backoff should continue to increase")
	}

	limiter.ResetBackoff()
	if limiter.Backoff() != 0 {
		t.Error("Backoff should reset to zero")
	}
}

func TestLimiterWaitHonoursBackoff(t *testing.T) {
	limiter := NewLimiter("test", 600)
	limiter.SignalRateLimited()

	start := time.Now()
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if time.Since(start) < initialBackoff {
		t.Errorf("Expected Wait to sleep at least %s", initialBackoff)
	}
}

func TestLimiterContextCancellation(t *testing.T) {
	limiter := NewLimiter("test", 1)

	for i := 0; i < 5; i++ {
		limiter.Allow()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Error("Expected error from cancelled context")
	}
}
