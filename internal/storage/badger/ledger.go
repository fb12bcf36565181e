package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stockservice/internal/ledger"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

var (
	dedupPrefix      = []byte("dedup/")
	stockPrefix      = []byte("stock/")
	adjustmentPrefix = []byte("adjustment/")
)

const keySep = 0x00

func dedupKey(key string) []byte {
	return append(append([]byte{}, dedupPrefix...), key...)
}

func lineKey(storeCode, sku string) []byte {
	k := append([]byte{}, stockPrefix...)
	k = append(k, storeCode...)
	k = append(k, keySep)
	return append(k, sku...)
}

func adjustmentScanPrefix(storeCode, sku string) []byte {
	k := append([]byte{}, adjustmentPrefix...)
	k = append(k, storeCode...)
	k = append(k, keySep)
	k = append(k, sku...)
	return append(k, keySep)
}

// adjustment keys sort by append time within a line
func adjustmentKey(rec ledger.AdjustmentRecord) []byte {
	k := adjustmentScanPrefix(rec.StoreCode, rec.SKU)
	k = binary.BigEndian.AppendUint64(k, uint64(rec.AppliedAt.UnixNano()))
	return append(k, rec.ID...)
}

func encodeQuantity(q int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(q))
}

func decodeQuantity(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("corrupt stock line value of %d bytes", len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// Ledger is a ledger.Store and ledger.Reader backed by BadgerDB.
type Ledger struct {
	db          *badger.DB
	gc          *gcRunner
	maxAttempts int
}

var (
	_ ledger.Store  = (*Ledger)(nil)
	_ ledger.Reader = (*Ledger)(nil)
)

// Open opens the ledger and starts value log GC when configured.
func Open(cfg Config) (*Ledger, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	l := &Ledger{db: db, maxAttempts: cfg.MaxAttempts}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		l.gc = startGC(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
	}
	return l, nil
}

// OpenInMemory opens an in-memory ledger. Data is lost when closed.
func OpenInMemory() (*Ledger, error) {
	return Open(InMemoryConfig())
}

// Close stops garbage collection and closes the database.
func (l *Ledger) Close() error {
	if l.gc != nil {
		l.gc.stop()
	}
	return l.db.Close()
}

// WithinUnit runs fn in one read-write transaction, re-running it on conflict.
func (l *Ledger) WithinUnit(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return ledger.RetryOnConflict(ctx, l.maxAttempts, func() error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled: %w", err)
		}

		txn := l.db.NewTransaction(true)
		defer txn.Discard()

		if err := fn(ctx, &tx{txn: txn}); err != nil {
			return err
		}
		if err := txn.Commit(); err != nil {
			if errors.Is(err, badger.ErrConflict) {
				return ledger.ErrConflict
			}
			return fmt.Errorf("commit unit: %w", err)
		}
		return nil
	})
}

// Quantity returns the committed quantity, 0 when the line is absent.
func (l *Ledger) Quantity(ctx context.Context, storeCode, sku string) (int64, error) {
	var q int64
	err := l.db.View(func(txn *badger.Txn) error {
		line, err := (&tx{txn: txn}).Get(ctx, storeCode, sku)
		q = line.Quantity
		return err
	})
	return q, err
}

// Claimed reports whether key has been committed as claimed.
func (l *Ledger) Claimed(ctx context.Context, key string) (bool, error) {
	var claimed bool
	err := l.db.View(func(txn *badger.Txn) error {
		var err error
		claimed, err = (&tx{txn: txn}).HasClaimed(ctx, key)
		return err
	})
	return claimed, err
}

// Adjustments returns the audit trail of one line in append order.
func (l *Ledger) Adjustments(_ context.Context, storeCode, sku string) ([]ledger.AdjustmentRecord, error) {
	var out []ledger.AdjustmentRecord
	prefix := adjustmentScanPrefix(storeCode, sku)
	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, Prefix: prefix})
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec ledger.AdjustmentRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode adjustment %q: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

type tx struct {
	txn *badger.Txn
}

func (t *tx) HasClaimed(_ context.Context, key string) (bool, error) {
	_, err := t.txn.Get(dedupKey(key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("read dedup key: %w", err)
	}
}

func (t *tx) Claim(ctx context.Context, key string, at time.Time) (bool, error) {
	claimed, err := t.HasClaimed(ctx, key)
	if err != nil || claimed {
		return false, err
	}
	stamp := binary.BigEndian.AppendUint64(nil, uint64(at.UTC().UnixNano()))
	if err := t.txn.Set(dedupKey(key), stamp); err != nil {
		return false, fmt.Errorf("write dedup key: %w", err)
	}
	return true, nil
}

func (t *tx) Get(_ context.Context, storeCode, sku string) (ledger.StockLine, error) {
	line := ledger.StockLine{StoreCode: storeCode, SKU: sku}
	item, err := t.txn.Get(lineKey(storeCode, sku))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return line, nil
	}
	if err != nil {
		return line, fmt.Errorf("read stock line: %w", err)
	}
	err = item.Value(func(val []byte) error {
		q, err := decodeQuantity(val)
		line.Quantity = q
		return err
	})
	if err != nil {
		return line, err
	}
	line.Exists = true
	return line, nil
}

func (t *tx) Set(_ context.Context, line ledger.StockLine) error {
	if err := t.txn.Set(lineKey(line.StoreCode, line.SKU), encodeQuantity(line.Quantity)); err != nil {
		return fmt.Errorf("write stock line: %w", err)
	}
	return nil
}

func (t *tx) Append(_ context.Context, rec ledger.AdjustmentRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode adjustment: %w", err)
	}
	if err := t.txn.Set(adjustmentKey(rec), val); err != nil {
		return fmt.Errorf("write adjustment: %w", err)
	}
	return nil
}
