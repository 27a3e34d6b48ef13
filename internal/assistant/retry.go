package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/thapargpt/thapargpt/internal/rag"
)

// RetryPolicy configures retry behavior for generation calls.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns sensible defaults for the generation API.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      2,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     8 * time.Second,
	}
}

// IsRetryable reports whether the error is a transient upstream
// failure: the caller may try again later.
func IsRetryable(err error) bool {
	return retryableError(err)
}

// retryableError determines if an error should trigger a retry.
// The generation SDK does not expose typed errors, so classification is
// by message content.
func retryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// Rate limit errors
	if containsAny(errStr, "rate limit", "quota exceeded", "429", "resource exhausted") {
		return true
	}

	// Transient server errors
	if containsAny(errStr, "500", "502", "503", "504", "unavailable", "overloaded") {
		return true
	}

	// Network errors
	if containsAny(errStr, "connection reset", "timeout", "deadline exceeded", "temporary") {
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

// generate calls the generation service with exponential backoff.
// Each attempt passes through the rate limiter, so retries of one
// request cannot starve others.
func (a *Assistant) generate(ctx context.Context, prompt rag.Prompt) (string, error) {
	var lastErr error
	delay := a.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= a.retry.MaxRetries; attempt++ {
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limit wait: %w", err)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, a.opts.GenerateTimeout)
		text, err := a.generator.Generate(attemptCtx, prompt)
		cancel()
		if err == nil {
			a.logger.Debug("generation succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return text, nil
		}

		lastErr = err

		if !retryableError(err) {
			return "", fmt.Errorf("generate: %w", err)
		}

		if attempt == a.retry.MaxRetries {
			break
		}

		a.logger.Debug("retrying generation",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, a.retry.MaxInterval)
		}
	}

	return "", fmt.Errorf("generate after %d retries (elapsed %v): %w",
		a.retry.MaxRetries, time.Since(start), lastErr)
}
