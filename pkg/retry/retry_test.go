package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"travelmap/pkg/config"
	apperrors "travelmap/pkg/errors"
	"travelmap/pkg/logger"
)

func fastConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Logger:      logger.NewNopLogger(),
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0,
	}

	tests := []struct {
		attempt     int
		expected    time.Duration
		description string
	}{
		{0, 0, "No attempt"},
		{1, 100 * time.Millisecond, "First attempt"},
		{2, 200 * time.Millisecond, "Second attempt"},
		{3, 400 * time.Millisecond, "Third attempt"},
		{4, 800 * time.Millisecond, "Fourth attempt"},
		{5, 1 * time.Second, "Fifth attempt (capped at max)"},
		{6, 1 * time.Second, "Sixth attempt (still capped)"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			if delay := backoff.NextDelay(test.attempt); delay != test.expected {
				t.Errorf("Expected delay %v, got %v", test.expected, delay)
			}
		})
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	delays := make(map[time.Duration]bool)
	for i := 0; i < 20; i++ {
		delay := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, delay, 140*time.Millisecond)
		assert.LessOrEqual(t, delay, 260*time.Millisecond)
		delays[delay] = true
	}
	if len(delays) < 2 {
		t.Error("Expected multiple different delays with jitter, but got consistent delays")
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(5), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	persistent := errors.New("persistent error")
	err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		attempts++
		return persistent
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, persistent)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithNonRetryableError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantAttempts int
	}{
		{"auth", &apperrors.Error{Type: apperrors.ErrorTypeAuth, Message: "invalid token", Code: 401}, 1},
		{"bad request", &apperrors.Error{Type: apperrors.ErrorTypeUnknown, Message: "bad", Code: 400}, 1},
		{"parsing", apperrors.New(apperrors.ErrorTypeParsing, "bad json"), 1},
		{"server", &apperrors.Error{Type: apperrors.ErrorTypeServerError, Message: "oops", Code: 502}, 4},
		{"rate limit", &apperrors.Error{Type: apperrors.ErrorTypeRateLimit, Message: "slow down", Code: 429}, 4},
		{"network", apperrors.New(apperrors.ErrorTypeNetwork, "reset"), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fastConfig(4)
			cfg.RetryIf = DefaultRetryIf

			attempts := 0
			err := Do(context.Background(), cfg, func(context.Context) error {
				attempts++
				return tt.err
			})
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.wantAttempts, attempts)
		})
	}
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	cfg := fastConfig(5)
	cfg.Backoff = &ConstantBackoff{Delay: 100 * time.Millisecond}

	err := Do(ctx, cfg, func(context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(context.DeadlineExceeded))
	assert.True(t, DefaultRetryIf(errors.New("untyped")))
	assert.False(t, DefaultRetryIf(&apperrors.Error{Type: apperrors.ErrorTypeNotFound, Code: 404}))
	assert.True(t, DefaultRetryIf(&apperrors.Error{Type: apperrors.ErrorTypeServerError, Code: 503}))
}

func TestErrorTypeBackoff(t *testing.T) {
	base := &ExponentialBackoff{BaseDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 2}
	etb := NewErrorTypeBackoff(base)

	network := etb.ForError(apperrors.New(apperrors.ErrorTypeNetwork, "x"))
	assert.Same(t, base, network)

	rateLimit, ok := etb.ForError(apperrors.New(apperrors.ErrorTypeRateLimit, "x")).(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, rateLimit.BaseDelay)

	server, ok := etb.ForError(apperrors.New(apperrors.ErrorTypeServerError, "x")).(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, server.BaseDelay)

	assert.Same(t, base, etb.ForError(errors.New("plain")))
	assert.Equal(t, time.Second, base.BaseDelay, "base is not mutated")
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.RetryConfig{
		Enabled:      true,
		MaxAttempts:  4,
		BaseDelay:    time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
		JitterFactor: 0,
	}, logger.NewNopLogger())
	assert.Equal(t, 4, cfg.MaxAttempts)
	assert.Equal(t, 4*time.Second, cfg.Backoff.NextDelay(3))
	require.NotNil(t, cfg.ByErrorType)

	disabled := FromConfig(config.RetryConfig{Enabled: false, MaxAttempts: 4}, nil)
	assert.Equal(t, 1, disabled.MaxAttempts)
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), fastConfig(3), func(context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary error")
		}
		return "success", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 2, attempts)
}

func TestOnRetryCallback(t *testing.T) {
	var seen []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		seen = append(seen, attempt)
	}

	_ = Do(context.Background(), cfg, func(context.Context) error {
		return errors.New("always")
	})
	assert.Equal(t, []int{1, 2}, seen, "no callback after the final attempt")
}
