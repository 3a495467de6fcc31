package errors

import (
	"context"
	"errors"
	"time"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RetryableErrors []ErrorCode
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		RetryableErrors: []ErrorCode{
			ErrCodeNetwork,
			ErrCodeRPC,
			ErrCodeTimeout,
		},
	}
}

// RetryFunc is a function that can be retried
type RetryFunc func() error

func isRetryableError(err error, retryableCodes []ErrorCode) bool {
	var re *RaffleError
	if errors.As(err, &re) {
		for _, code := range retryableCodes {
			if re.Code == code {
				return true
			}
		}
		return re.IsRetryable()
	}
	return IsRetryable(err)
}

// RetryOperation represents a named operation that can be retried, with
// optional hooks for logging and metrics.
type RetryOperation struct {
	Name      string
	Fn        RetryFunc
	Config    *RetryConfig
	OnRetry   func(attempt int, err error)
	OnSuccess func()
	OnFailure func(err error)
}

// Execute runs the retry operation
func (op *RetryOperation) Execute(ctx context.Context) error {
	cfg := op.Config
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	fail := func(err error) error {
		if op.OnFailure != nil {
			op.OnFailure(err)
		}
		return err
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		err := op.Fn()
		if err == nil {
			if op.OnSuccess != nil {
				op.OnSuccess()
			}
			return nil
		}
		lastErr = err

		if !isRetryableError(err, cfg.RetryableErrors) {
			return fail(err)
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if op.OnRetry != nil {
			op.OnRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			return fail(ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fail(WrapRaffleError(lastErr, ErrCodeInternal, "operation '"+op.Name+"' failed after retries").
		WithContext("attempts", cfg.MaxAttempts))
}
