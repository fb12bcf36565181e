package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"stockservice/internal/catalog"
	badgerstore "stockservice/internal/storage/badger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyReplica struct {
	down atomic.Bool
}

func (r *flakyReplica) check() error {
	if r.down.Load() {
		return errors.New("replica unreachable")
	}
	return nil
}

func (r *flakyReplica) StoreExists(context.Context, string) (bool, error) {
	return true, r.check()
}

func (r *flakyReplica) ProductExists(context.Context, string) (bool, error) {
	return true, r.check()
}

func (r *flakyReplica) ProductActive(context.Context, string) (bool, bool, error) {
	return true, true, r.check()
}

func TestReadinessProbesReplicaPastCache(t *testing.T) {
	l, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	replica := &flakyReplica{}
	infra := &Infrastructure{
		ledger:  l,
		reader:  l,
		replica: replica,
		catalog: catalog.NewCached(replica, time.Minute, 10),
	}
	checks := infra.ReadinessChecks()
	ctx := context.Background()

	require.NoError(t, checks["ledger"](ctx))
	require.NoError(t, checks["catalog"](ctx))
	ok, err := infra.Catalog().StoreExists(ctx, "")
	require.NoError(t, err)
	require.True(t, ok)

	replica.down.Store(true)
	assert.Error(t, checks["catalog"](ctx))

	// the pipeline still gets its cached answer
	ok, err = infra.Catalog().StoreExists(ctx, "")
	require.NoError(t, err)
	assert.True(t, ok)
}
