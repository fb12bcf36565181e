package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memClaims struct {
	keys map[string]time.Time
	err  error
}

func (m *memClaims) HasClaimed(_ context.Context, key string) (bool, error) {
	_, ok := m.keys[key]
	return ok, m.err
}

func (m *memClaims) Claim(_ context.Context, key string, at time.Time) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = at
	return true, nil
}

func TestResolveDedupKey(t *testing.T) {
	tests := []struct {
		name    string
		eventID string
		d       Delivery
		want    string
	}{
		{"event id wins", "e-1", salesDelivery, "event:e-1"},
		{"blank id falls back to position", "   ", salesDelivery, "offset:vendas/0/42"},
		{"no id falls back to position", "", Delivery{Topic: "ajustes-estoque", Partition: 3, Offset: 7, Positioned: true}, "offset:ajustes-estoque/3/7"},
		{"no id and no position", "", Delivery{}, ""},
		{"position without topic", "", Delivery{Offset: 1, Positioned: true}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := ResolveDedupKey(tt.eventID, tt.d)
			assert.Equal(t, tt.want, key.String())
			assert.Equal(t, tt.want == "", key.IsZero())
		})
	}
}

func TestDedupNamespacesDoNotCollide(t *testing.T) {
	assert.NotEqual(t, EventKey("vendas/0/42"), DeliveryKey("vendas", 0, 42))
}

func TestGateClaim(t *testing.T) {
	ctx := context.Background()
	claims := &memClaims{keys: map[string]time.Time{}}
	gate := NewGate(zap.NewNop())

	r, err := gate.Claim(ctx, claims, EventKey("e-1"))
	require.NoError(t, err)
	assert.Equal(t, FirstClaim, r)

	r, err = gate.Claim(ctx, claims, EventKey("e-1"))
	require.NoError(t, err)
	assert.Equal(t, AlreadyClaimed, r)
	assert.Len(t, claims.keys, 1)
}

func TestGateZeroKeyIsDegradedFirstClaim(t *testing.T) {
	ctx := context.Background()
	claims := &memClaims{keys: map[string]time.Time{}}
	gate := NewGate(zap.NewNop())

	for i := 0; i < 2; i++ {
		r, err := gate.Claim(ctx, claims, DedupKey{})
		require.NoError(t, err)
		assert.Equal(t, FirstClaim, r)
	}
	assert.Empty(t, claims.keys)
}

func TestGateLedgerError(t *testing.T) {
	boom := errors.New("ledger down")
	gate := NewGate(zap.NewNop())

	_, err := gate.Claim(context.Background(), &memClaims{err: boom}, EventKey("e-1"))
	require.ErrorIs(t, err, boom)
}
