package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, Delay: time.Millisecond}

	err := p.Do(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, Delay: time.Millisecond}

	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 4, Delay: time.Millisecond}

	err := p.Do(context.Background(), func() error {
		calls++
		return errBoom
	})

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 4, calls)
}

func TestDoContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, Delay: 10 * time.Second}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func() error {
			calls++
			return errBoom
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls, "cancellation during the delay must not trigger another attempt")
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not observe cancellation during its delay")
	}
}

func TestDoRejectsZeroAttempts(t *testing.T) {
	err := Policy{}.Do(context.Background(), func() error { return nil })
	require.ErrorIs(t, err, ErrNoAttempts)
}

func TestDefault(t *testing.T) {
	p := Default()
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
	assert.Equal(t, DefaultDelay, p.Delay)
}
