package retry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func fastRetrier(attempts int) *Retrier {
	return New(WithMaxAttempts(attempts), WithInitialDelay(time.Millisecond), WithMaxDelay(time.Millisecond), WithJitter(0))
}

func TestRetrier_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := fastRetrier(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errBoom)
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrier_StopsOnPlainError(t *testing.T) {
	calls := 0
	err := fastRetrier(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errBoom
	})

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
}

func TestRetrier_ReturnsUnwrappedErrorAfterLastAttempt(t *testing.T) {
	calls := 0
	err := fastRetrier(2).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(errBoom)
	})

	assert.Equal(t, errBoom, err)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, 2, calls)
}

func TestRetrier_PermanentError(t *testing.T) {
	calls := 0
	err := New(WithMaxAttempts(4), WithRetryIf(func(error) bool { return true })).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(errBoom)
	})

	assert.Equal(t, errBoom, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fastRetrier(3).Do(ctx, func(ctx context.Context) error {
		t.Fatal("operation must not run")
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	v, err := DoWithData(context.Background(), fastRetrier(3), func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, Retryable(errBoom)
		}
		return 42, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestRetrier_OnRetryCallback(t *testing.T) {
	var attempts []int
	r := New(
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(time.Millisecond),
		WithJitter(0),
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			attempts = append(attempts, attempt)
			assert.ErrorIs(t, err, errBoom)
			assert.Equal(t, time.Millisecond, delay)
		}),
	)

	err := r.Do(context.Background(), func(ctx context.Context) error {
		return Retryable(errBoom)
	})

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestPresets_LogRetries(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	calls := 0
	err := LibraryRetrier(LogRetries(log, "library"), WithInitialDelay(time.Millisecond)).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(errBoom)
	})

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, strings.Count(buf.String(), "retrying remote call"))
	assert.Contains(t, buf.String(), "service=library")
	assert.Contains(t, buf.String(), "attempt=1")
}
