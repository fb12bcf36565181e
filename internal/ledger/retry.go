package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultMaxAttempts bounds how often a conflicting unit is re-run.
const DefaultMaxAttempts = 16

// RetryOnConflict runs attempt until it succeeds, fails with anything other
// than ErrConflict, or maxAttempts is reached.
func RetryOnConflict(ctx context.Context, maxAttempts int, attempt func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Millisecond
	policy.MaxInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 0

	var attempts int
	err := backoff.Retry(func() error {
		attempts++
		err := attempt()
		if err == nil || !errors.Is(err, ErrConflict) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxAttempts-1)), ctx))
	if err != nil && errors.Is(err, ErrConflict) {
		return fmt.Errorf("unit still conflicting after %d attempts: %w", attempts, err)
	}
	return err
}
