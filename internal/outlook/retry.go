// Package outlook implements the Outlook Calendar provider client against
// the Microsoft Graph REST API. It provides a [Client] with methods aligned
// to the sync engine's needs, a 3-attempt exponential-backoff [retry]
// helper for transient listing failures, and conversion between Graph's
// JSON representation and [model.RemoteEvent].
package outlook

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/decklabs/decksync/internal/model"
)

const (
	// defaultMaxAttempts is the number of tries before retry gives up.
	defaultMaxAttempts = 3

	// baseDelay is the starting backoff interval (before jitter).
	baseDelay = 500 * time.Millisecond

	// maxDelay caps the backoff interval.
	maxDelay = 5 * time.Second
)

// retry executes fn up to maxAttempts times with exponential backoff and
// jitter. Credential errors are never retried — a rejected token will not
// become valid by waiting.
func retry(ctx context.Context, maxAttempts int, fn func() error) error {
	var lastErr error
	for attempt := range maxAttempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, model.ErrAuthExpired) || errors.Is(lastErr, model.ErrRefreshDenied) {
			return lastErr
		}

		if attempt < maxAttempts-1 {
			delay := backoffDelay(attempt)
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", maxAttempts, lastErr)
}

// backoffDelay computes the delay for a given attempt index, applying
// exponential growth with 50–100 % jitter.
func backoffDelay(attempt int) time.Duration {
	delay := baseDelay * (1 << attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	// Jitter: uniform in [delay/2, delay).
	jitter := time.Duration(rand.Int63n(int64(delay) / 2)) //nolint:gosec // jitter does not need crypto/rand
	return delay/2 + jitter
}
