package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS stores (
	code TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS products (
	sku    TEXT PRIMARY KEY,
	name   TEXT NOT NULL DEFAULT '',
	active INTEGER NULL
);`

// SQLite is a catalog replica stored in a local SQLite file.
type SQLite struct {
	db *sql.DB
}

var _ Oracle = (*SQLite)(nil)

// OpenSQLite opens (and if needed creates) the replica at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite catalog %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite catalog schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) StoreExists(ctx context.Context, code string) (bool, error) {
	return s.exists(ctx, "SELECT 1 FROM stores WHERE code = ?", code)
}

func (s *SQLite) ProductExists(ctx context.Context, sku string) (bool, error) {
	return s.exists(ctx, "SELECT 1 FROM products WHERE sku = ?", sku)
}

func (s *SQLite) ProductActive(ctx context.Context, sku string) (bool, bool, error) {
	var active sql.NullBool
	err := s.db.QueryRowContext(ctx, "SELECT active FROM products WHERE sku = ?", sku).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("lookup product %q: %w", sku, err)
	}
	return active.Bool, active.Valid, nil
}

func (s *SQLite) exists(ctx context.Context, query, arg string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("catalog lookup %q: %w", arg, err)
	}
	return true, nil
}

// PutStore inserts or replaces a store.
func (s *SQLite) PutStore(ctx context.Context, code, name string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO stores (code, name) VALUES (?, ?) ON CONFLICT(code) DO UPDATE SET name = excluded.name",
		code, name)
	if err != nil {
		return fmt.Errorf("put store %q: %w", code, err)
	}
	return nil
}

// PutProduct inserts or replaces a product. A nil active stores NULL.
func (s *SQLite) PutProduct(ctx context.Context, sku, name string, active *bool) error {
	var flag sql.NullBool
	if active != nil {
		flag = sql.NullBool{Bool: *active, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO products (sku, name, active) VALUES (?, ?, ?) ON CONFLICT(sku) DO UPDATE SET name = excluded.name, active = excluded.active",
		sku, name, flag)
	if err != nil {
		return fmt.Errorf("put product %q: %w", sku, err)
	}
	return nil
}

// Load copies a snapshot into the replica.
func (s *SQLite) Load(ctx context.Context, snap *Snapshot) error {
	for _, st := range snap.Stores {
		if err := s.PutStore(ctx, st.Code, st.Name); err != nil {
			return err
		}
	}
	for _, p := range snap.Products {
		if err := s.PutProduct(ctx, p.SKU, p.Name, p.Active); err != nil {
			return err
		}
	}
	return nil
}
