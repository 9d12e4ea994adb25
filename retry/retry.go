// Package retry provides the fixed-count, fixed-delay retry policy
// shared by every collaborator that retries at all: the transfer
// callers, the IoT client, and the approval poller.
//
// A Policy wraps an arbitrary fallible operation. For file transfers it
// must wrap the entire connect-through-transfer sequence, never a
// sub-step, because partial-header state cannot be resumed mid-frame.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNoAttempts indicates a policy configured with fewer than one attempt.
var ErrNoAttempts = errors.New("retry policy allows no attempts")

// Defaults match the device client's historical behavior.
const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 5 * time.Second
)

// Policy is a fixed-attempt-count, fixed-inter-attempt-delay retry
// policy. The zero value is not usable; construct with Default or set
// both fields.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Default returns the shared default policy of 3 attempts, 5 seconds apart.
func Default() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultDelay}
}

// Do runs op up to MaxAttempts times, sleeping Delay between attempts.
// It returns nil on the first success, the last error once attempts are
// exhausted, or the context error if ctx is done while waiting.
func (p Policy) Do(ctx context.Context, op func() error) error {
	if p.MaxAttempts < 1 {
		return ErrNoAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if attempt == p.MaxAttempts {
			logrus.WithFields(logrus.Fields{
				"function":     "Do",
				"max_attempts": p.MaxAttempts,
				"error":        lastErr.Error(),
			}).Error("All retry attempts failed")
			break
		}

		logrus.WithFields(logrus.Fields{
			"function": "Do",
			"attempt":  attempt,
			"delay":    p.Delay,
			"error":    lastErr.Error(),
		}).Warn("Attempt failed, retrying after fixed delay")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay):
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, lastErr)
}
