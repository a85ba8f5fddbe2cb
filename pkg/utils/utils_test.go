package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$0.00", FormatMoney(0))
	assert.Equal(t, "$999.99", FormatMoney(999.99))
	assert.Equal(t, "$1,000.00", FormatMoney(1000))
	assert.Equal(t, "$1,234,567.89", FormatMoney(1234567.89))
	assert.Equal(t, "-$25,000.50", FormatMoney(-25000.5))
}

func TestFormatQuantity(t *testing.T) {
	assert.Equal(t, "3", FormatQuantity(3))
	assert.Equal(t, "0.5", FormatQuantity(0.5))
	assert.Equal(t, "0.00031", FormatQuantity(0.00031))
	assert.Equal(t, "12.25", FormatQuantity(12.25))
}

func TestFormatPnL(t *testing.T) {
	assert.Equal(t, "+$50.00", FormatPnL(50))
	assert.Equal(t, "-$50.00", FormatPnL(-50))
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}

	calls := 0
	value, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value)
	assert.Equal(t, 3, calls)
}

func TestRetryReturnsLastError(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}

	sentinel := errors.New("still broken")
	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 2, calls)
}

func TestRetryStopsOnCancel(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 100, InitialDelay: 10 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, cfg, func() error { return errors.New("nope") })
	assert.ErrorIs(t, err, context.Canceled)
}
