// Package retry provides exponential backoff for transient failures,
// primarily connection establishment against a temporarily unreachable
// Oracle listener.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Config defines the retry behavior for exponential backoff operations.
//
// The zero value is not usable; MaxRetries and InitialBackoff must be set.
type Config struct {
	// MaxRetries is the maximum number of attempts. Must be > 0.
	MaxRetries int

	// InitialBackoff is the base backoff duration. Each retry multiplies
	// it by 2^(attempt-1). Must be > 0.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration. Zero means no cap.
	MaxBackoff time.Duration

	// Jitter adds randomness to backoff (0.0 to 1.0) to prevent
	// thundering herd. The jitter amount grows with attempt number.
	Jitter float64
}

// ShouldRetryFunc decides whether an error is worth another attempt.
// A nil function retries every error.
type ShouldRetryFunc func(error) bool

// Do executes fn with exponential backoff retry.
//
// fn is called up to cfg.MaxRetries times. A nil return stops the loop.
// If shouldRetry returns false for an error, Do returns that error
// immediately. If the context is cancelled during execution or backoff,
// Do returns the context error.
func Do(ctx context.Context, cfg Config, fn func() error, shouldRetry ShouldRetryFunc) error {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := calculateBackoff(cfg, attempt)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

// calculateBackoff computes InitialBackoff * 2^(attempt-1), applies the
// MaxBackoff cap, then adds jitter proportional to the attempt number.
func calculateBackoff(cfg Config, attempt int) time.Duration {
	multiplier := math.Pow(2, float64(attempt-1))
	backoff := time.Duration(multiplier * float64(cfg.InitialBackoff))

	if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}

	if cfg.Jitter > 0 {
		jitterAmount := float64(backoff) * cfg.Jitter * float64(attempt) / float64(cfg.MaxRetries)
		backoff += time.Duration(jitterAmount)
	}

	return backoff
}
