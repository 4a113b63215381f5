package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"wbscraper/pkg/errors"
	"wbscraper/pkg/logger"
)

// Operation is a unit of work that may need retrying.
type Operation func() error

// Config holds retry behavior for one call site.
type Config struct {
	// MaxAttempts is the total number of attempts, first try included.
	MaxAttempts int
	// Backoff picks the delay between attempts.
	Backoff BackoffStrategy
	// RetryIf decides whether an error is worth another attempt.
	RetryIf func(error) bool
	// Context cancels waiting between attempts.
	Context context.Context
	// Logger records retry attempts. May be nil.
	Logger logger.Logger
}

// DefaultRetryIf retries typed transient errors and anything unknown,
// but never a cancelled context.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	var typed *errors.Error
	if stderrors.As(err, &typed) {
		return errors.IsRetryable(typed.Type)
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Do runs op until it succeeds, the attempts run out, or the error is
// not retryable. The returned error is the last one observed.
func Do(op Operation, cfg *Config) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = DefaultRetryIf
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.WithField("attempt", attempt).Debug("operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !cfg.RetryIf(err) {
			if cfg.Logger != nil {
				cfg.Logger.WithError(err).Debug("error is not retryable")
			}
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := delayFor(cfg.Backoff, attempt)
		if cfg.Logger != nil {
			cfg.Logger.WithFields(map[string]interface{}{
				"attempt":      attempt,
				"max_attempts": cfg.MaxAttempts,
				"delay_ms":     delay.Milliseconds(),
				"error":        err.Error(),
			}).Warn("retrying operation")
		}
		if err := Wait(cfg.Context, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}

	if cfg.Logger != nil {
		cfg.Logger.WithError(lastErr).WithField("attempts", cfg.MaxAttempts).
			Error("max retry attempts exceeded")
	}
	return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}

func delayFor(b BackoffStrategy, attempt int) time.Duration {
	if b == nil {
		return 0
	}
	return b.NextDelay(attempt)
}
