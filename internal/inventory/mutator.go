package inventory

import (
	"context"
	"fmt"
	"time"

	"stockservice/internal/ledger"
)

type MutationResult int

const (
	Applied MutationResult = iota
	Blocked
	// Unchanged is a zero delta that was not asked to touch the line.
	Unchanged
)

func (r MutationResult) String() string {
	switch r {
	case Applied:
		return "applied"
	case Blocked:
		return "blocked"
	default:
		return "unchanged"
	}
}

// Mutation describes one attempted change to a stock line.
type Mutation struct {
	StoreCode string
	SKU       string
	Delta     int64
	Previous  int64
	Quantity  int64
	Result    MutationResult
	// Overflow marks a Blocked change whose result does not fit in an int64.
	Overflow bool
}

// Mutator applies signed deltas under the negative-floor guard.
type Mutator struct {
	allowNegative bool
	now           func() time.Time
}

func NewMutator(allowNegative bool) *Mutator {
	return &Mutator{allowNegative: allowNegative, now: time.Now}
}

// Adjust adds delta to the line. A result below zero is Blocked unless
// negative stock is allowed, and a result outside the int64 range is always
// Blocked; Blocked is an outcome, not an error. Lines are
// created at zero on first write. The read-modify-write is safe only inside a
// ledger unit, which serializes concurrent writers of the same line.
func (m *Mutator) Adjust(ctx context.Context, lines ledger.StockLedger, storeCode, sku string, delta int64, allowZeroDelta bool) (Mutation, error) {
	mut := Mutation{StoreCode: storeCode, SKU: sku, Delta: delta}
	if delta == 0 && !allowZeroDelta {
		mut.Result = Unchanged
		return mut, nil
	}

	line, err := lines.Get(ctx, storeCode, sku)
	if err != nil {
		return mut, fmt.Errorf("read stock %s/%s: %w", storeCode, sku, err)
	}
	mut.Previous = line.Quantity
	mut.Quantity = line.Quantity

	candidate := line.Quantity + delta
	if (delta > 0 && candidate < line.Quantity) || (delta < 0 && candidate > line.Quantity) {
		mut.Result = Blocked
		mut.Overflow = true
		return mut, nil
	}
	if candidate < 0 && !m.allowNegative {
		mut.Result = Blocked
		return mut, nil
	}

	line.Quantity = candidate
	if err := lines.Set(ctx, line); err != nil {
		return mut, fmt.Errorf("write stock %s/%s: %w", storeCode, sku, err)
	}
	mut.Quantity = candidate
	mut.Result = Applied
	return mut, nil
}

// AdjustManual applies a manual adjustment and appends its audit record. The
// record describes the attempted delta and is written even when the guard
// blocks the change; Applied tells the two apart.
func (m *Mutator) AdjustManual(ctx context.Context, tx ledger.Tx, ev *StockAdjustmentEvent) (Mutation, error) {
	var delta int64
	if ev.Delta != nil {
		delta = *ev.Delta
	}
	mut, err := m.Adjust(ctx, tx, ev.StoreCode, ev.SKU, delta, true)
	if err != nil {
		return mut, err
	}

	rec := ledger.AdjustmentRecord{
		EventID:    ev.EventID,
		StoreCode:  ev.StoreCode,
		SKU:        ev.SKU,
		Delta:      delta,
		Reason:     ev.Reason,
		Applied:    mut.Result == Applied,
		OccurredAt: ev.Timestamp,
		AppliedAt:  m.now().UTC(),
	}
	if err := tx.Append(ctx, rec); err != nil {
		return mut, fmt.Errorf("append adjustment %s/%s: %w", ev.StoreCode, ev.SKU, err)
	}
	return mut, nil
}
