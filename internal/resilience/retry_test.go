package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBusy = errors.New("database is locked")

func fastConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func TestRetrySucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := RetryWithConfig(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errBusy
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	err := RetryWithConfig(context.Background(), fastConfig(), func() error {
		calls++
		return errBusy
	})

	assert.ErrorIs(t, err, errBusy)
	assert.Equal(t, 4, calls)
}

func TestRetrySkipsNonRetryable(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryableErrors = func(err error) bool { return errors.Is(err, errBusy) }

	calls := 0
	constraint := errors.New("UNIQUE constraint failed")
	err := RetryWithConfig(context.Background(), cfg, func() error {
		calls++
		return constraint
	})

	assert.ErrorIs(t, err, constraint)
	assert.Equal(t, 1, calls)
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, func() error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestCalculateDelay(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, BackoffFactor: 2}

	assert.Equal(t, 10*time.Millisecond, calculateDelay(cfg, 0))
	assert.Equal(t, 20*time.Millisecond, calculateDelay(cfg, 1))
	assert.Equal(t, 50*time.Millisecond, calculateDelay(cfg, 5))

	cfg.JitterEnabled = true
	d := calculateDelay(cfg, 1)
	assert.GreaterOrEqual(t, d, 20*time.Millisecond)
	assert.Less(t, d, 22*time.Millisecond)
}
