package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"stockservice/internal/ledger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Integration tests run against a disposable database named by
// STOCK_TEST_POSTGRES_DSN.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("STOCK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STOCK_TEST_POSTGRES_DSN not set")
	}
	db, err := Open(dsn, nil)
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))

	err := mapError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	assert.ErrorIs(t, err, ledger.ErrConflict)

	err = mapError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
	assert.ErrorIs(t, err, ledger.ErrConflict)

	err = mapError(&pgconn.PgError{Code: "23503"})
	assert.NotErrorIs(t, err, ledger.ErrConflict)
}

func TestLedgerUnit(t *testing.T) {
	db := openTestDB(t)
	l := NewLedger(db, 0)
	ctx := context.Background()
	store := "S-" + uuid.NewString()[:8]
	key := "event:" + uuid.NewString()

	var claimedFirst, claimedAgain bool
	require.NoError(t, l.WithinUnit(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		if claimedFirst, err = tx.Claim(ctx, key, time.Now()); err != nil {
			return err
		}
		if claimedAgain, err = tx.Claim(ctx, key, time.Now()); err != nil {
			return err
		}
		line, err := tx.Get(ctx, store, "A")
		if err != nil {
			return err
		}
		assert.False(t, line.Exists)
		line.Quantity = 10
		if err := tx.Set(ctx, line); err != nil {
			return err
		}
		return tx.Append(ctx, ledger.AdjustmentRecord{
			EventID: key, StoreCode: store, SKU: "A", Delta: 10, Applied: true, AppliedAt: time.Now(),
		})
	}))
	assert.True(t, claimedFirst)
	assert.False(t, claimedAgain)

	q, err := l.Quantity(ctx, store, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(10), q)

	claimed, err := l.Claimed(ctx, key)
	require.NoError(t, err)
	assert.True(t, claimed)

	recs, err := l.Adjustments(ctx, store, "A")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(10), recs[0].Delta)
}

func TestLedgerConcurrentIncrements(t *testing.T) {
	db := openTestDB(t)
	l := NewLedger(db, 100)
	ctx := context.Background()
	store := "S-" + uuid.NewString()[:8]
	const workers = 10

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithinUnit(ctx, func(ctx context.Context, tx ledger.Tx) error {
				line, err := tx.Get(ctx, store, "A")
				if err != nil {
					return err
				}
				line.Quantity++
				return tx.Set(ctx, line)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	q, err := l.Quantity(ctx, store, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(workers), q)
}

func TestCatalog(t *testing.T) {
	db := openTestDB(t)
	c := NewCatalog(db)
	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	active, inactive := true, false

	require.NoError(t, c.PutStore(ctx, CatalogStore{Code: "S-" + suffix}))
	require.NoError(t, c.PutProduct(ctx, CatalogProduct{SKU: "A-" + suffix, Active: &active}))
	require.NoError(t, c.PutProduct(ctx, CatalogProduct{SKU: "B-" + suffix, Active: &inactive}))
	require.NoError(t, c.PutProduct(ctx, CatalogProduct{SKU: "C-" + suffix}))

	ok, err := c.StoreExists(ctx, "S-"+suffix)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.StoreExists(ctx, "GHOST-"+suffix)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.ProductExists(ctx, "C-"+suffix)
	require.NoError(t, err)
	assert.True(t, ok)

	a, known, err := c.ProductActive(ctx, "A-"+suffix)
	require.NoError(t, err)
	assert.True(t, known)
	assert.True(t, a)

	a, known, err = c.ProductActive(ctx, "B-"+suffix)
	require.NoError(t, err)
	assert.True(t, known)
	assert.False(t, a)

	_, known, err = c.ProductActive(ctx, "C-"+suffix)
	require.NoError(t, err)
	assert.False(t, known)
}
