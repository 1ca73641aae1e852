package debug

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// RetryConfig configures connection retries.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts. Values <= 0 mean one.
	MaxAttempts int

	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration

	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration

	// BackoffMultiplier multiplies the delay after each attempt.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the retry policy used for remote debuggers.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      200 * time.Millisecond,
		MaxDelay:          2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// retry calls fn until it succeeds, returns an error retryable rejects,
// attempts run out or ctx is done.
func retry(ctx context.Context, cfg RetryConfig, retryable func(error) bool, fn func() error) error {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.BackoffMultiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", maxAttempts, lastErr)
}

// isDialRetryable reports whether a dial failure may succeed later, as
// when the debug server is still starting.
func isDialRetryable(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// DialSession connects to an MI server at address, retrying refused or
// timed out connections according to rc.
func DialSession(ctx context.Context, cfg SessionConfig, address string, rc RetryConfig) (*Session, error) {
	var s *Session
	err := retry(ctx, rc, isDialRetryable, func() error {
		var err error
		s, err = NewSocketSession(cfg, address)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
