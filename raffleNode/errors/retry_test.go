package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     attempts,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		Multiplier:      2.0,
		RetryableErrors: []ErrorCode{ErrCodeRPC},
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	assert.Equal(t, 3, config.MaxAttempts)
	assert.Equal(t, 1*time.Second, config.InitialDelay)
	assert.Equal(t, 30*time.Second, config.MaxDelay)
	assert.Contains(t, config.RetryableErrors, ErrCodeRPC)
	assert.Contains(t, config.RetryableErrors, ErrCodeTimeout)
}

func TestRetryOperationExecute(t *testing.T) {
	tests := []struct {
		name          string
		failures      int
		failWith      error
		maxAttempts   int
		expectErr     bool
		expectedCalls int
		expectedCode  ErrorCode
	}{
		{
			name:          "succeeds first time",
			failures:      0,
			maxAttempts:   3,
			expectedCalls: 1,
		},
		{
			name:          "succeeds after retryable failures",
			failures:      2,
			failWith:      New(ErrCodeRPC, "node unavailable", nil),
			maxAttempts:   3,
			expectedCalls: 3,
		},
		{
			name:          "stops on non-retryable error",
			failures:      5,
			failWith:      New(ErrCodeValidation, "bad input", nil),
			maxAttempts:   3,
			expectErr:     true,
			expectedCalls: 1,
			expectedCode:  ErrCodeValidation,
		},
		{
			name:          "exhausts attempts",
			failures:      5,
			failWith:      New(ErrCodeRPC, "node unavailable", nil),
			maxAttempts:   2,
			expectErr:     true,
			expectedCalls: 2,
			expectedCode:  ErrCodeRPC,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			op := &RetryOperation{
				Name: "fetch",
				Fn: func() error {
					calls++
					if calls <= tt.failures {
						return tt.failWith
					}
					return nil
				},
				Config: fastConfig(tt.maxAttempts),
			}
			err := op.Execute(context.Background())

			assert.Equal(t, tt.expectedCalls, calls)
			if !tt.expectErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsCode(err, tt.expectedCode))
		})
	}
}

func TestRetryOperationHooks(t *testing.T) {
	var retries, failures int
	op := &RetryOperation{
		Name:      "send",
		Fn:        func() error { return errors.New("connection reset by peer") },
		Config:    fastConfig(3),
		OnRetry:   func(int, error) { retries++ },
		OnFailure: func(error) { failures++ },
	}

	err := op.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, retries)
	assert.Equal(t, 1, failures)
	assert.True(t, IsCode(err, ErrCodeInternal))
	assert.Contains(t, err.Error(), "operation 'send' failed after retries")
}

func TestRetryRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	op := &RetryOperation{Name: "noop", Fn: func() error { called = true; return nil }}
	err := op.Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
