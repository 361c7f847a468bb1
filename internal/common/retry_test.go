package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/photo-sorter/internal/service"
	"github.com/stretchr/testify/assert"
)

func TestWithRetry(t *testing.T) {
	errBoom := errors.New("boom")
	fast := service.RetryOptions{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

	tests := []struct {
		name      string
		opts      service.RetryOptions
		failures  int
		permanent bool
		wantCalls int
		wantErr   error
	}{
		{name: "succeeds first time", opts: withAttempts(fast, 3), wantCalls: 1},
		{name: "succeeds after retries", opts: withAttempts(fast, 3), failures: 2, wantCalls: 3},
		{name: "exhausts attempts", opts: withAttempts(fast, 2), failures: 5, wantCalls: 2, wantErr: ErrMaxRetries},
		{name: "single attempt returns raw error", opts: withAttempts(fast, 1), failures: 1, wantCalls: 1, wantErr: errBoom},
		{name: "permanent error stops", opts: withAttempts(fast, 5), failures: 5, permanent: true, wantCalls: 1, wantErr: errBoom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), func() error {
				calls++
				if calls <= tt.failures {
					if tt.permanent {
						return Permanent(errBoom)
					}
					return errBoom
				}
				return nil
			}, tt.opts)

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWithRetry_ExhaustedKeepsCause(t *testing.T) {
	errBoom := errors.New("boom")
	err := WithRetry(context.Background(), func() error { return errBoom },
		service.RetryOptions{MaxAttempts: 2, InitialDelay: time.Millisecond})

	assert.ErrorIs(t, err, ErrMaxRetries)
	assert.ErrorIs(t, err, errBoom)
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error { return errors.New("transient") },
		service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Hour})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("delegate crashed"), true},
		{"deadline", fmt.Errorf("inference: %w", context.DeadlineExceeded), true},
		{"cancelled", fmt.Errorf("inference: %w", context.Canceled), false},
		{"permanent", Permanent(errors.New("x")), false},
		{"permanent wrapped", fmt.Errorf("engine: %w", Permanent(errors.New("x"))), false},
		{"explicitly retryable", &RetryableError{Err: context.Canceled, Retryable: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestWithRetry_CancellationIsFinal(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return fmt.Errorf("inference: %w", context.Canceled)
	}, service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond})

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, 1, calls)
}

func TestMatchAny(t *testing.T) {
	patterns, err := CompilePatterns([]string{`(?i)^\.trash`, `_thumb\.`})
	assert.NoError(t, err)
	assert.True(t, MatchAny(patterns, ".Trashes"))
	assert.True(t, MatchAny(patterns, "img_thumb.jpg"))
	assert.False(t, MatchAny(patterns, "img.jpg"))

	_, err = CompilePatterns([]string{"("})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func withAttempts(opts service.RetryOptions, n int) service.RetryOptions {
	opts.MaxAttempts = n
	return opts
}
