// Package retry provides bounded retry with linear backoff for read-only
// warehouse queries. Retries are safe here because every retried operation is
// idempotent.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/pacing-engine/internal/logging"
)

// Config configures retry behavior
type Config struct {
	MaxAttempts int           // Maximum number of attempts, including the first
	Backoff     time.Duration // Delay step; attempt n waits n * Backoff
}

// DefaultConfig returns the default retry configuration for warehouse queries.
// Pattern: 3 attempts with 2s, 4s waits between them.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     2 * time.Second,
	}
}

// Result contains information about the retry operation
type Result struct {
	Attempts      int           `json:"attempts"`
	Success       bool          `json:"success"`
	TotalDuration time.Duration `json:"totalDuration"`
	LastError     error         `json:"lastError,omitempty"`
}

// Func is a function that can be retried
type Func func(ctx context.Context, attempt int) error

// ShouldRetryFunc decides whether an error is transient enough to retry
type ShouldRetryFunc func(err error) bool

// WithLinearBackoff executes fn up to config.MaxAttempts times, waiting
// attempt*Backoff between attempts. The shouldRetry predicate stops retries
// early for errors that will not heal on their own (validation, deadline
// expiry). Context cancellation aborts both execution and backoff waits.
func WithLinearBackoff(ctx context.Context, config *Config, shouldRetry ShouldRetryFunc, fn Func) *Result {
	logger := logging.FromContext(ctx)
	startTime := time.Now()

	result := &Result{}

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		err := fn(ctx, attempt)
		if err == nil {
			result.Success = true
			result.TotalDuration = time.Since(startTime)

			if attempt > 1 {
				logger.WithFields(map[string]interface{}{
					"attempts":      attempt,
					"totalDuration": result.TotalDuration.String(),
				}).Info("Operation succeeded after retry")
			}

			return result
		}

		result.LastError = err

		if shouldRetry != nil && !shouldRetry(err) {
			logger.WithError(err).Debug("Error not retryable, giving up")
			break
		}

		if attempt >= config.MaxAttempts {
			logger.WithFields(map[string]interface{}{
				"attempts": attempt,
				"error":    err.Error(),
			}).Error("Operation failed after max retry attempts")
			break
		}

		if ctx.Err() != nil {
			result.LastError = ctx.Err()
			break
		}

		delay := time.Duration(attempt) * config.Backoff

		logger.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": config.MaxAttempts,
			"delay":       delay.String(),
			"error":       err.Error(),
		}).Warn("Operation failed, retrying with linear backoff")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			return result
		}
	}

	result.TotalDuration = time.Since(startTime)
	return result
}

// Do is a convenience wrapper that returns an error instead of a Result
func Do(ctx context.Context, config *Config, shouldRetry ShouldRetryFunc, fn Func) error {
	result := WithLinearBackoff(ctx, config, shouldRetry, fn)
	if !result.Success {
		return fmt.Errorf("operation failed after %d attempts: %w", result.Attempts, result.LastError)
	}
	return nil
}
