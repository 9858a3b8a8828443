package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFetchPolicyNoLimits(t *testing.T) {
	policy := NewFetchPolicy(0, 0, 0)

	for i := 0; i < 5; i++ {
		waited, err := policy.Wait(context.Background())
		if err != nil {
			t.Fatalf("Wait returned error: %v", err)
		}
		if waited > 50*time.Millisecond {
			t.Errorf("Expected no wait without limits, waited %s", waited)
		}
	}
}

func TestFetchPolicyJitterBounded(t *testing.T) {
	policy := NewFetchPolicy(0, 1, 20*time.Millisecond)

	for i := 0; i < 20; i++ {
		if j := policy.jitter(); j < 0 || j >= 20*time.Millisecond {
			t.Errorf("jitter %s out of [0, 20ms)", j)
		}
	}
}

func TestFetchPolicyRateLimit(t *testing.T) {
	// 20 rps with burst 1: the third request waits roughly 100ms in total
	policy := NewFetchPolicy(20, 1, 0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := policy.Wait(ctx); err != nil {
			t.Fatalf("Wait returned error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("Expected rate limiting to delay requests, took %s", elapsed)
	}
}

func TestFetchPolicyCancelled(t *testing.T) {
	policy := NewFetchPolicy(0, 1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := policy.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
