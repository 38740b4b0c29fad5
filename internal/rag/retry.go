package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// RetryConfig configures retry behavior for model calls.
type RetryConfig struct {
	MaxRetries      int           // Retry attempts after the first try
	InitialInterval time.Duration // First backoff delay
	MaxInterval     time.Duration // Backoff ceiling
}

// DefaultRetryConfig returns sensible defaults for LLM API calls:
// three attempts total (the first try plus two retries).
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
	}
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	return cfg
}

// retryableError reports whether an error is worth retrying: rate
// limiting, transient server trouble or flaky network. Anything else is
// treated as permanent.
func retryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	// Rate-limit class.
	if containsAny(msg, "429", "rate limit", "too many requests", "quota exceeded") {
		return true
	}
	// Transient server errors.
	if containsAny(msg, "500", "502", "503", "504", "unavailable") {
		return true
	}
	// Network hiccups.
	if containsAny(msg, "connection reset", "timeout", "temporary") {
		return true
	}

	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// withRetry runs op with exponential backoff, retrying only errors the
// classifier accepts. Backoff doubles each attempt up to cfg.MaxInterval
// and sleeps are context-aware so cancellation is never delayed.
func withRetry[T any](
	ctx context.Context,
	logger *slog.Logger,
	cfg RetryConfig,
	classifier func(error) bool,
	op func(context.Context) (T, error),
) (T, error) {
	var zero T
	var lastErr error

	cfg = cfg.withDefaults()
	delay := cfg.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Debug("call succeeded after retry",
					"attempts", attempt+1,
					"elapsed", time.Since(start),
				)
			}
			return result, nil
		}

		lastErr = err

		if !classifier(err) {
			return zero, fmt.Errorf("call failed: %w", err)
		}
		if attempt == cfg.MaxRetries {
			break
		}

		logger.Debug("retrying after error",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("canceled during retry backoff: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, cfg.MaxInterval)
		}
	}

	return zero, fmt.Errorf("call failed after %d retries (elapsed %v): %w",
		cfg.MaxRetries, time.Since(start), lastErr)
}
