package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	if cfg.Delay != 200*time.Millisecond {
		t.Errorf("Delay = %v, want 200ms", cfg.Delay)
	}

	if cfg.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", cfg.BackoffMultiplier)
	}

	if cfg.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", cfg.MaxDelay)
	}

	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %v, want 5", cfg.MaxAttempts)
	}
}

func TestPortalConfig(t *testing.T) {
	cfg := PortalConfig(3)
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %v, want 3", cfg.MaxAttempts)
	}
	if cfg.Delay != time.Second {
		t.Errorf("Delay = %v, want 1s", cfg.Delay)
	}

	// Invalid attempt counts fall back to the default of 3
	cfg = PortalConfig(0)
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts for zero input = %v, want 3", cfg.MaxAttempts)
	}
}

func TestNew_WithNilConfig(t *testing.T) {
	l := New(nil)

	if l == nil {
		t.Fatal("New(nil) returned nil")
	}

	if l.config.Delay != 200*time.Millisecond {
		t.Errorf("Default Delay = %v, want 200ms", l.config.Delay)
	}
}

func TestLimiter_Wait(t *testing.T) {
	cfg := &Config{
		Delay:             10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          1 * time.Second,
		MaxAttempts:       3,
	}

	l := New(cfg)
	ctx := context.Background()

	start := time.Now()
	err := l.Wait(ctx)
	elapsed := time.Since(start)

	if err != nil {
		t.Errorf("Wait() returned error: %v", err)
	}

	// First wait should be quick (limiter starts with burst of 1)
	if elapsed > 100*time.Millisecond {
		t.Errorf("First Wait() took %v, expected < 100ms", elapsed)
	}
}

func TestLimiter_Wait_CancelledContext(t *testing.T) {
	cfg := &Config{
		Delay:             1 * time.Second,
		BackoffMultiplier: 2.0,
		MaxDelay:          30 * time.Second,
		MaxAttempts:       3,
	}

	l := New(cfg)

	// Use up the initial burst
	_ = l.Wait(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("Wait() with canceled context should return error")
	}
}

func TestLimiter_HandleError_Classification(t *testing.T) {
	cfg := &Config{
		Delay:             100 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          1 * time.Second,
		MaxAttempts:       3,
	}

	testCases := []struct {
		name        string
		errMsg      string
		shouldRetry bool
	}{
		{"429 error", "status 429: Too Many Requests", true},
		{"rate limit text", "rate limit exceeded", true},
		{"navigation timeout", "timeout waiting for selector", true},
		{"maintenance page", "service temporarily unavailable", true},
		{"connection refused", "connection refused", false},
		{"generic 500 error", "internal server error 500", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := New(cfg)

			shouldRetry, waitTime := l.HandleError(errors.New(tc.errMsg))

			if shouldRetry != tc.shouldRetry {
				t.Errorf("HandleError(%q).shouldRetry = %v, want %v", tc.errMsg, shouldRetry, tc.shouldRetry)
			}

			if !tc.shouldRetry && waitTime != 0 {
				t.Errorf("HandleError(%q).waitTime = %v, want 0 for non-retryable error", tc.errMsg, waitTime)
			}
		})
	}
}

func TestLimiter_HandleError_CustomRetryable(t *testing.T) {
	marker := errors.New("portal said come back later")
	cfg := &Config{
		Delay:             10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          time.Second,
		MaxAttempts:       3,
		Retryable:         func(err error) bool { return errors.Is(err, marker) },
	}

	l := New(cfg)

	if retry, _ := l.HandleError(marker); !retry {
		t.Error("custom classifier should retry the marker error")
	}
	if retry, _ := l.HandleError(errors.New("429 rate limit")); retry {
		t.Error("custom classifier should override the default matching")
	}
}

func TestLimiter_HandleError_ExponentialBackoff(t *testing.T) {
	cfg := &Config{
		Delay:             100 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          10 * time.Second,
		MaxAttempts:       5,
	}

	l := New(cfg)
	retryErr := errors.New("429 rate limit")

	shouldRetry, waitTime1 := l.HandleError(retryErr)
	if !shouldRetry {
		t.Error("First error should be retryable")
	}

	shouldRetry, waitTime2 := l.HandleError(retryErr)
	if !shouldRetry {
		t.Error("Second error should be retryable")
	}

	if waitTime2 <= waitTime1 {
		t.Errorf("Second waitTime (%v) should be greater than first (%v)", waitTime2, waitTime1)
	}
}

func TestLimiter_HandleError_MaxAttempts(t *testing.T) {
	cfg := &Config{
		Delay:             100 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          10 * time.Second,
		MaxAttempts:       3,
	}

	l := New(cfg)
	retryErr := errors.New("429 rate limit")

	for i := 0; i < 2; i++ {
		shouldRetry, _ := l.HandleError(retryErr)
		if !shouldRetry {
			t.Errorf("Error %d should be retryable", i+1)
		}
	}

	shouldRetry, _ := l.HandleError(retryErr)
	if shouldRetry {
		t.Error("Error at MaxAttempts should not be retryable")
	}
}

func TestLimiter_HandleError_MaxDelay(t *testing.T) {
	cfg := &Config{
		Delay:             1 * time.Second,
		BackoffMultiplier: 10.0,
		MaxDelay:          5 * time.Second,
		MaxAttempts:       10,
	}

	l := New(cfg)
	retryErr := errors.New("429 rate limit")

	var lastWaitTime time.Duration
	for i := 0; i < 5; i++ {
		_, waitTime := l.HandleError(retryErr)
		lastWaitTime = waitTime
	}

	if lastWaitTime > cfg.MaxDelay {
		t.Errorf("waitTime (%v) exceeded MaxDelay (%v)", lastWaitTime, cfg.MaxDelay)
	}
}

func TestLimiter_Success(t *testing.T) {
	cfg := &Config{
		Delay:             100 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          10 * time.Second,
		MaxAttempts:       5,
	}

	l := New(cfg)
	retryErr := errors.New("429 rate limit")

	for i := 0; i < 3; i++ {
		l.HandleError(retryErr)
	}

	if l.consecutiveErrors != 3 {
		t.Errorf("consecutiveErrors = %d, want 3", l.consecutiveErrors)
	}

	l.Success()

	if l.consecutiveErrors != 0 {
		t.Errorf("After Success(), consecutiveErrors = %d, want 0", l.consecutiveErrors)
	}

	if l.currentDelay != cfg.Delay {
		t.Errorf("After Success(), currentDelay = %v, want %v", l.currentDelay, cfg.Delay)
	}
}

func TestLimiter_ExecuteWithRetry_Success(t *testing.T) {
	l := New(&Config{
		Delay:             10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          1 * time.Second,
		MaxAttempts:       3,
	})

	callCount := 0
	err := l.ExecuteWithRetry(context.Background(), func() error {
		callCount++
		return nil
	})
	if err != nil {
		t.Errorf("ExecuteWithRetry() returned error: %v", err)
	}

	if callCount != 1 {
		t.Errorf("Function called %d times, want 1", callCount)
	}
}

func TestLimiter_ExecuteWithRetry_EventualSuccess(t *testing.T) {
	l := New(&Config{
		Delay:             10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          100 * time.Millisecond,
		MaxAttempts:       5,
	})

	callCount := 0
	err := l.ExecuteWithRetry(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("429 rate limit")
		}
		return nil
	})
	if err != nil {
		t.Errorf("ExecuteWithRetry() returned error: %v", err)
	}

	if callCount != 3 {
		t.Errorf("Function called %d times, want 3", callCount)
	}
}

func TestLimiter_ExecuteWithRetry_NonRetryableError(t *testing.T) {
	l := New(&Config{
		Delay:             10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          100 * time.Millisecond,
		MaxAttempts:       5,
	})

	callCount := 0
	err := l.ExecuteWithRetry(context.Background(), func() error {
		callCount++
		return errors.New("connection refused")
	})
	if err == nil {
		t.Error("ExecuteWithRetry() should return error for non-retryable error")
	}

	if callCount != 1 {
		t.Errorf("Function called %d times, want 1 (non-retryable)", callCount)
	}
}

func TestLimiter_ExecuteWithRetry_MaxRetriesExceeded(t *testing.T) {
	cfg := &Config{
		Delay:             10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          50 * time.Millisecond,
		MaxAttempts:       3,
	}
	l := New(cfg)

	underlying := errors.New("429 rate limit")
	callCount := 0
	err := l.ExecuteWithRetry(context.Background(), func() error {
		callCount++
		return underlying
	})
	if err == nil {
		t.Fatal("ExecuteWithRetry() should return error when max retries exceeded")
	}
	if !errors.Is(err, underlying) {
		t.Errorf("final error should wrap the last failure, got: %v", err)
	}

	if callCount != cfg.MaxAttempts {
		t.Errorf("Function called %d times, want %d", callCount, cfg.MaxAttempts)
	}
}

func TestLimiter_ExecuteWithRetry_ContextCancellation(t *testing.T) {
	l := New(&Config{
		Delay:             10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          1 * time.Second,
		MaxAttempts:       10,
	})

	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	err := l.ExecuteWithRetry(ctx, func() error {
		callCount++
		if callCount == 2 {
			cancel()
		}
		return errors.New("429 rate limit")
	})
	if err == nil {
		t.Error("ExecuteWithRetry() should return error when context is canceled")
	}

	if callCount > 3 {
		t.Errorf("Function called %d times after cancellation, expected <= 3", callCount)
	}
}

func TestLimiter_ConcurrentAccess(_ *testing.T) {
	l := New(&Config{
		Delay:             10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          100 * time.Millisecond,
		MaxAttempts:       5,
	})

	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func() {
			_ = l.Wait(context.Background())
			l.HandleError(errors.New("429 rate limit"))
			l.Success()
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
