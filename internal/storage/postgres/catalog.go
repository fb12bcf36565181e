package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Catalog reads replicated store and product facts from the catalog tables.
type Catalog struct {
	db *gorm.DB
}

func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) StoreExists(ctx context.Context, code string) (bool, error) {
	var n int64
	if err := c.db.WithContext(ctx).Model(&CatalogStore{}).Where("code = ?", code).Count(&n).Error; err != nil {
		return false, fmt.Errorf("lookup store %q: %w", code, err)
	}
	return n > 0, nil
}

func (c *Catalog) ProductExists(ctx context.Context, sku string) (bool, error) {
	var n int64
	if err := c.db.WithContext(ctx).Model(&CatalogProduct{}).Where("sku = ?", sku).Count(&n).Error; err != nil {
		return false, fmt.Errorf("lookup product %q: %w", sku, err)
	}
	return n > 0, nil
}

// ProductActive reports the active flag; known is false for a missing
// product or a NULL flag.
func (c *Catalog) ProductActive(ctx context.Context, sku string) (active, known bool, err error) {
	var p CatalogProduct
	err = c.db.WithContext(ctx).Where("sku = ?", sku).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("lookup product %q: %w", sku, err)
	}
	if p.Active == nil {
		return false, false, nil
	}
	return *p.Active, true, nil
}

// PutStore upserts a store row.
func (c *Catalog) PutStore(ctx context.Context, s CatalogStore) error {
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&s).Error
}

// PutProduct upserts a product row.
func (c *Catalog) PutProduct(ctx context.Context, p CatalogProduct) error {
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&p).Error
}
