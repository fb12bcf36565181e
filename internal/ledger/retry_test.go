package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryOnConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after conflicts", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(ctx, 5, func() error {
			calls++
			if calls < 3 {
				return ErrConflict
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := RetryOnConflict(ctx, 5, func() error {
			calls++
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(ctx, 3, func() error {
			calls++
			return ErrConflict
		})
		require.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, 3, calls)
		assert.Contains(t, err.Error(), "3 attempts")
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		err := RetryOnConflict(cctx, 100, func() error {
			calls++
			cancel()
			return ErrConflict
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}
