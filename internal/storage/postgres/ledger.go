package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockservice/internal/ledger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// Ledger is a ledger.Store and ledger.Reader on PostgreSQL.
//
// Existing stock lines are read with SELECT ... FOR UPDATE so concurrent units
// on the same line serialize on the row lock. A line that did not exist is
// created with an insert that fails with ledger.ErrConflict when another unit
// created it first, after which the unit is re-run against the new row.
type Ledger struct {
	db          *gorm.DB
	maxAttempts int
}

var (
	_ ledger.Store  = (*Ledger)(nil)
	_ ledger.Reader = (*Ledger)(nil)
)

// NewLedger wraps an open database. The caller keeps ownership of db.
func NewLedger(db *gorm.DB, maxAttempts int) *Ledger {
	return &Ledger{db: db, maxAttempts: maxAttempts}
}

// Close is a no-op; the connection pool is closed by whoever opened it.
func (l *Ledger) Close() error { return nil }

// WithinUnit runs fn in one database transaction, re-running it on conflict.
func (l *Ledger) WithinUnit(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return ledger.RetryOnConflict(ctx, l.maxAttempts, func() error {
		err := l.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
			return fn(ctx, &tx{db: gtx})
		})
		return mapError(err)
	})
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return fmt.Errorf("%w: %s", ledger.ErrConflict, pgErr.Message)
		}
	}
	return err
}

func (l *Ledger) Quantity(ctx context.Context, storeCode, sku string) (int64, error) {
	var row StockLineModel
	err := l.db.WithContext(ctx).
		Where("store_code = ? AND sku = ?", storeCode, sku).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read stock line: %w", err)
	}
	return row.Quantity, nil
}

func (l *Ledger) Claimed(ctx context.Context, key string) (bool, error) {
	return (&tx{db: l.db.WithContext(ctx)}).HasClaimed(ctx, key)
}

func (l *Ledger) Adjustments(ctx context.Context, storeCode, sku string) ([]ledger.AdjustmentRecord, error) {
	var rows []StockAdjustment
	err := l.db.WithContext(ctx).
		Where("store_code = ? AND sku = ?", storeCode, sku).
		Order("applied_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}

	out := make([]ledger.AdjustmentRecord, 0, len(rows))
	for _, r := range rows {
		rec := ledger.AdjustmentRecord{
			ID:        r.ID,
			EventID:   r.EventID,
			StoreCode: r.StoreCode,
			SKU:       r.SKU,
			Delta:     r.Delta,
			Reason:    r.Reason,
			Applied:   r.Applied,
			AppliedAt: r.AppliedAt,
		}
		if r.OccurredAt != nil {
			rec.OccurredAt = *r.OccurredAt
		}
		out = append(out, rec)
	}
	return out, nil
}

type tx struct {
	db *gorm.DB
}

func (t *tx) HasClaimed(_ context.Context, key string) (bool, error) {
	var n int64
	if err := t.db.Model(&ProcessedEvent{}).Where("dedup_key = ?", key).Count(&n).Error; err != nil {
		return false, fmt.Errorf("read dedup key: %w", err)
	}
	return n > 0, nil
}

// Claim is INSERT ... ON CONFLICT DO NOTHING; a concurrent claimer of the same
// key blocks until the first unit ends and then inserts nothing.
func (t *tx) Claim(_ context.Context, key string, at time.Time) (bool, error) {
	res := t.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ProcessedEvent{DedupKey: key, ProcessedAt: at.UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("claim dedup key: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (t *tx) Get(_ context.Context, storeCode, sku string) (ledger.StockLine, error) {
	line := ledger.StockLine{StoreCode: storeCode, SKU: sku}

	var row StockLineModel
	err := t.db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("store_code = ? AND sku = ?", storeCode, sku).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return line, nil
	}
	if err != nil {
		return line, fmt.Errorf("lock stock line: %w", err)
	}
	line.Quantity = row.Quantity
	line.Exists = true
	return line, nil
}

func (t *tx) Set(_ context.Context, line ledger.StockLine) error {
	if line.Exists {
		err := t.db.Model(&StockLineModel{}).
			Where("store_code = ? AND sku = ?", line.StoreCode, line.SKU).
			Updates(map[string]interface{}{"quantity": line.Quantity, "updated_at": time.Now().UTC()}).Error
		if err != nil {
			return fmt.Errorf("update stock line: %w", err)
		}
		return nil
	}

	res := t.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&StockLineModel{
		StoreCode: line.StoreCode,
		SKU:       line.SKU,
		Quantity:  line.Quantity,
	})
	if res.Error != nil {
		return fmt.Errorf("create stock line: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ledger.ErrConflict
	}
	return nil
}

func (t *tx) Append(_ context.Context, rec ledger.AdjustmentRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := StockAdjustment{
		ID:        rec.ID,
		EventID:   rec.EventID,
		StoreCode: rec.StoreCode,
		SKU:       rec.SKU,
		Delta:     rec.Delta,
		Reason:    rec.Reason,
		Applied:   rec.Applied,
		AppliedAt: rec.AppliedAt.UTC(),
	}
	if !rec.OccurredAt.IsZero() {
		occurred := rec.OccurredAt.UTC()
		row.OccurredAt = &occurred
	}
	if err := t.db.Create(&row).Error; err != nil {
		return fmt.Errorf("append adjustment: %w", err)
	}
	return nil
}
