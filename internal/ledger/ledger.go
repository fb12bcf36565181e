// Package ledger defines the persisted state owned by the stock pipeline:
// claimed dedup keys, per-(store, sku) stock lines and the manual-adjustment
// audit log, together with the unit-of-work boundary that commits them.
package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrConflict reports that a unit lost an optimistic-concurrency race. The
// unit is rolled back and may be re-run from the start.
var ErrConflict = errors.New("ledger: concurrent modification")

// DedupRecord marks the moment an event was claimed.
type DedupRecord struct {
	Key         string
	ProcessedAt time.Time
}

// StockLine is the quantity of one SKU at one store.
type StockLine struct {
	StoreCode string
	SKU       string
	Quantity  int64
	// Exists reports whether the line was persisted when it was read.
	Exists bool
}

// AdjustmentRecord is one append-only audit entry for a manual adjustment.
type AdjustmentRecord struct {
	ID        string
	EventID   string
	StoreCode string
	SKU       string
	Delta     int64
	Reason    string
	// Applied is false when the negative-floor guard blocked the quantity change.
	Applied    bool
	OccurredAt time.Time
	AppliedAt  time.Time
}

// IdempotencyLedger is the set of claimed dedup keys.
type IdempotencyLedger interface {
	HasClaimed(ctx context.Context, key string) (bool, error)
	// Claim inserts key if absent and reports whether this call inserted it.
	// Claiming an existing key is a silent no-op.
	Claim(ctx context.Context, key string, at time.Time) (bool, error)
}

// StockLedger is the per-(store, sku) quantity map.
type StockLedger interface {
	// Get returns the line, or a zero-quantity line with Exists false. The line
	// stays protected against concurrent writers until the unit ends.
	Get(ctx context.Context, storeCode, sku string) (StockLine, error)
	// Set creates or overwrites the line. Creating a line that another unit
	// created in the meantime fails with ErrConflict.
	Set(ctx context.Context, line StockLine) error
}

// AdjustmentLog is the append-only manual-adjustment audit trail.
type AdjustmentLog interface {
	Append(ctx context.Context, rec AdjustmentRecord) error
}

// Tx is the view of the ledger inside one unit of work.
type Tx interface {
	IdempotencyLedger
	StockLedger
	AdjustmentLog
}

// Store opens units of work.
type Store interface {
	// WithinUnit runs fn in a single atomic unit. Everything fn writes
	// commits together or not at all. fn may run more than once when the
	// unit conflicts with a concurrent one, so it must not have side effects
	// outside tx.
	WithinUnit(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

// Reader exposes committed ledger state.
type Reader interface {
	Quantity(ctx context.Context, storeCode, sku string) (int64, error)
	Adjustments(ctx context.Context, storeCode, sku string) ([]AdjustmentRecord, error)
	Claimed(ctx context.Context, key string) (bool, error)
}
