// Package ratelimit provides request pacing with exponential backoff
// for portal navigation and external API calls.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces calls against an external system and applies exponential
// backoff when the system pushes back.
type Limiter struct {
	limiter           *rate.Limiter
	mu                sync.Mutex
	consecutiveErrors int
	currentDelay      time.Duration
	config            *Config
}

// Config holds limiter configuration
type Config struct {
	Delay             time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
	MaxAttempts       int
	// Retryable classifies errors worth retrying. Nil means the default
	// classifier, which matches throttling and transient network failures.
	Retryable func(error) bool
}

// DefaultConfig returns default limiter configuration
func DefaultConfig() *Config {
	return &Config{
		Delay:             200 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          30 * time.Second,
		MaxAttempts:       5,
	}
}

// PortalConfig returns pacing suited to browser-driven portal sessions:
// slower base delay and fewer attempts, since each attempt is expensive.
func PortalConfig(maxAttempts int) *Config {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &Config{
		Delay:             time.Second,
		BackoffMultiplier: 2.0,
		MaxDelay:          time.Minute,
		MaxAttempts:       maxAttempts,
	}
}

// New creates a new limiter
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	rps := float64(time.Second) / float64(cfg.Delay)

	return &Limiter{
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
		currentDelay: cfg.Delay,
		config:       cfg,
	}
}

// Wait blocks until the limiter allows the next call
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// HandleError processes an error and returns whether to retry and how long to wait
func (l *Limiter) HandleError(err error) (shouldRetry bool, waitTime time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.retryable(err) {
		return false, 0
	}

	l.consecutiveErrors++

	waitTime = time.Duration(math.Min(
		float64(l.currentDelay)*math.Pow(l.config.BackoffMultiplier, float64(l.consecutiveErrors-1)),
		float64(l.config.MaxDelay),
	))

	// Slow the steady-state rate to match the backoff
	if waitTime > l.currentDelay {
		l.currentDelay = waitTime
		rps := float64(time.Second) / float64(waitTime)
		l.limiter.SetLimit(rate.Limit(rps))
	}

	return l.consecutiveErrors < l.config.MaxAttempts, waitTime
}

func (l *Limiter) retryable(err error) bool {
	if l.config.Retryable != nil {
		return l.config.Retryable(err)
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "temporarily unavailable")
}

// Success resets the error counter and restores the base rate
func (l *Limiter) Success() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.consecutiveErrors > 0 {
		l.consecutiveErrors = 0
		l.currentDelay = l.config.Delay
		rps := float64(time.Second) / float64(l.config.Delay)
		l.limiter.SetLimit(rate.Limit(rps))
	}
}

// ExecuteWithRetry executes a function with pacing and retry logic
func (l *Limiter) ExecuteWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < l.config.MaxAttempts; attempt++ {
		if err := l.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}

		err := fn()
		if err == nil {
			l.Success()
			return nil
		}
		lastErr = err

		shouldRetry, waitTime := l.HandleError(err)
		if !shouldRetry {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", l.config.MaxAttempts, lastErr)
}
