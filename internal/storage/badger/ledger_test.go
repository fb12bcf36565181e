package badger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stockservice/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
}

func TestOpenPersistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	l, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, l.WithinUnit(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.Set(ctx, ledger.StockLine{StoreCode: "S1", SKU: "A", Quantity: 4})
	}))
	require.NoError(t, l.Close())

	l, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer l.Close()

	q, err := l.Quantity(ctx, "S1", "A")
	require.NoError(t, err)
	assert.Equal(t, int64(4), q)
}

func TestClaim(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	now := time.Now()

	var first, second bool
	require.NoError(t, l.WithinUnit(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		first, err = tx.Claim(ctx, "event:e-1", now)
		if err != nil {
			return err
		}
		// same unit sees its own claim
		second, err = tx.Claim(ctx, "event:e-1", now)
		return err
	}))
	assert.True(t, first)
	assert.False(t, second)

	require.NoError(t, l.WithinUnit(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		second, err = tx.Claim(ctx, "event:e-1", now)
		return err
	}))
	assert.False(t, second)

	claimed, err := l.Claimed(ctx, "event:e-1")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = l.Claimed(ctx, "event:e-2")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestRollbackDiscardsEverything(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := l.WithinUnit(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if _, err := tx.Claim(ctx, "event:e-1", time.Now()); err != nil {
			return err
		}
		if err := tx.Set(ctx, ledger.StockLine{StoreCode: "S1", SKU: "A", Quantity: 10}); err != nil {
			return err
		}
		if err := tx.Append(ctx, ledger.AdjustmentRecord{StoreCode: "S1", SKU: "A", Delta: 10}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	claimed, err := l.Claimed(ctx, "event:e-1")
	require.NoError(t, err)
	assert.False(t, claimed)

	q, err := l.Quantity(ctx, "S1", "A")
	require.NoError(t, err)
	assert.Zero(t, q)

	recs, err := l.Adjustments(ctx, "S1", "A")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStockLines(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.WithinUnit(ctx, func(ctx context.Context, tx ledger.Tx) error {
		line, err := tx.Get(ctx, "S1", "A")
		if err != nil {
			return err
		}
		assert.False(t, line.Exists)
		assert.Zero(t, line.Quantity)

		line.Quantity = -3
		return tx.Set(ctx, line)
	}))

	require.NoError(t, l.WithinUnit(ctx, func(ctx context.Context, tx ledger.Tx) error {
		line, err := tx.Get(ctx, "S1", "A")
		if err != nil {
			return err
		}
		assert.True(t, line.Exists)
		assert.Equal(t, int64(-3), line.Quantity)
		return nil
	}))

	// keys of different lines never collide
	q, err := l.Quantity(ctx, "S1A", "")
	require.NoError(t, err)
	assert.Zero(t, q)
}

func TestAdjustmentsInAppendOrder(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, delta := range []int64{10, -4, 7} {
		rec := ledger.AdjustmentRecord{
			EventID:   "e",
			StoreCode: "S1",
			SKU:       "A",
			Delta:     delta,
			Reason:    "count",
			Applied:   true,
			AppliedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, l.WithinUnit(ctx, func(ctx context.Context, tx ledger.Tx) error {
			return tx.Append(ctx, rec)
		}))
	}
	require.NoError(t, l.WithinUnit(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.Append(ctx, ledger.AdjustmentRecord{StoreCode: "S1", SKU: "B", Delta: 1, AppliedAt: base})
	}))

	recs, err := l.Adjustments(ctx, "S1", "A")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, int64(10), recs[0].Delta)
	assert.Equal(t, int64(-4), recs[1].Delta)
	assert.Equal(t, int64(7), recs[2].Delta)
	for _, rec := range recs {
		assert.NotEmpty(t, rec.ID)
		assert.True(t, rec.Applied)
	}
}

func TestConcurrentUnitsDoNotLoseUpdates(t *testing.T) {
	l, err := Open(Config{InMemory: true, MaxAttempts: 1000})
	require.NoError(t, err)
	defer l.Close()

	ctx := context.Background()
	const workers = 20

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- l.WithinUnit(ctx, func(ctx context.Context, tx ledger.Tx) error {
				line, err := tx.Get(ctx, "S1", "A")
				if err != nil {
					return err
				}
				line.Quantity++
				return tx.Set(ctx, line)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	q, err := l.Quantity(ctx, "S1", "A")
	require.NoError(t, err)
	assert.Equal(t, int64(workers), q)
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	l, err := Open(Config{InMemory: true, MaxAttempts: 1000})
	require.NoError(t, err)
	defer l.Close()

	ctx := context.Background()
	const workers = 10

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var won bool
			err := l.WithinUnit(ctx, func(ctx context.Context, tx ledger.Tx) error {
				var err error
				won, err = tx.Claim(ctx, "event:same", time.Now())
				return err
			})
			assert.NoError(t, err)
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestWithinUnitHonoursCancelledContext(t *testing.T) {
	l := newTestLedger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := l.WithinUnit(ctx, func(ctx context.Context, tx ledger.Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
