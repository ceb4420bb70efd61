package maintenance

import (
	"context"
	"time"
)

const (
	defaultFlushAttempts   = 3
	defaultFlushBaseDelay  = 100 * time.Millisecond
	defaultFlushMaxDelay   = 2 * time.Second
	defaultFlushMultiplier = 2.0
)

// RetryConfig configures exponential backoff for the shutdown flush
type RetryConfig struct {
	MaxAttempts int           // Total attempts, including the first
	BaseDelay   time.Duration // Delay after the first failure
	MaxDelay    time.Duration // Upper bound on any single delay
	Multiplier  float64       // Growth factor between delays
}

// DefaultRetryConfig returns the backoff used when Config.Retry is unset
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: defaultFlushAttempts,
		BaseDelay:   defaultFlushBaseDelay,
		MaxDelay:    defaultFlushMaxDelay,
		Multiplier:  defaultFlushMultiplier,
	}
}

// retryWithBackoff calls fn until it succeeds, attempts run out or ctx ends.
// The last error from fn is returned when every attempt fails.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var lastErr error
	backoff := cfg.BaseDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt < cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * cfg.Multiplier)
				if backoff > cfg.MaxDelay {
					backoff = cfg.MaxDelay
				}
			}
		}
	}

	return lastErr
}
