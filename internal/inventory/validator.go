package inventory

import (
	"context"
	"fmt"

	"stockservice/internal/platform/observability"

	"go.uber.org/zap"
)

// CatalogOracle answers read-only questions about replicated catalog facts.
type CatalogOracle interface {
	StoreExists(ctx context.Context, code string) (bool, error)
	ProductExists(ctx context.Context, sku string) (bool, error)
	ProductActive(ctx context.Context, sku string) (active, known bool, err error)
}

// RejectReason explains why an event or sale item was not applied.
type RejectReason string

const (
	ReasonMissingStore    RejectReason = "missing_store"
	ReasonMissingSKU      RejectReason = "missing_sku"
	ReasonNoItems         RejectReason = "no_items"
	ReasonInvalidItem     RejectReason = "invalid_item"
	ReasonUnknownStore    RejectReason = "unknown_store"
	ReasonUnknownProduct  RejectReason = "unknown_product"
	ReasonInactiveProduct RejectReason = "inactive_product"
)

// SkippedItem is a sale item dropped from an otherwise valid sale.
type SkippedItem struct {
	Index  int
	Item   SaleItem
	Reason RejectReason
}

// SaleVerdict is the validation result for a sale. When Rejected is empty the
// sale applies Accepted and ignores Skipped.
type SaleVerdict struct {
	Rejected RejectReason
	Accepted []SaleItem
	Skipped  []SkippedItem
}

// Validator checks canonical events against the catalog.
type Validator struct {
	catalog CatalogOracle
	logger  observability.Logger
}

func NewValidator(catalog CatalogOracle, logger observability.Logger) *Validator {
	return &Validator{catalog: catalog, logger: logger}
}

// CheckProduct never rejects; an unknown product is only noted.
func (v *Validator) CheckProduct(ctx context.Context, ev *ProductEvent) error {
	exists, err := v.catalog.ProductExists(ctx, ev.SKU)
	if err != nil {
		return err
	}
	if !exists {
		v.logger.Info("ℹ️ Product not yet in catalog replica", zap.String("sku", ev.SKU))
	}
	return nil
}

// CheckStore never rejects; an unknown store is only noted.
func (v *Validator) CheckStore(ctx context.Context, ev *StoreEvent) error {
	exists, err := v.catalog.StoreExists(ctx, ev.StoreCode)
	if err != nil {
		return err
	}
	if !exists {
		v.logger.Info("ℹ️ Store not yet in catalog replica", zap.String("store_code", ev.StoreCode))
	}
	return nil
}

// CheckSale rejects the whole sale for a missing or unknown store or an empty
// item list, and otherwise skips each bad item on its own.
func (v *Validator) CheckSale(ctx context.Context, ev *SalesEvent) (SaleVerdict, error) {
	if ev.StoreCode == "" {
		return SaleVerdict{Rejected: ReasonMissingStore}, nil
	}
	if len(ev.Items) == 0 {
		return SaleVerdict{Rejected: ReasonNoItems}, nil
	}
	exists, err := v.catalog.StoreExists(ctx, ev.StoreCode)
	if err != nil {
		return SaleVerdict{}, err
	}
	if !exists {
		return SaleVerdict{Rejected: ReasonUnknownStore}, nil
	}

	var verdict SaleVerdict
	for i, item := range ev.Items {
		if item.SKU == "" || item.Quantity <= 0 {
			verdict.Skipped = append(verdict.Skipped, SkippedItem{Index: i, Item: item, Reason: ReasonInvalidItem})
			continue
		}
		reason, err := v.checkProduct(ctx, item.SKU)
		if err != nil {
			return SaleVerdict{}, err
		}
		if reason != "" {
			verdict.Skipped = append(verdict.Skipped, SkippedItem{Index: i, Item: item, Reason: reason})
			continue
		}
		verdict.Accepted = append(verdict.Accepted, item)
	}
	return verdict, nil
}

// CheckAdjustment returns the reason the adjustment is rejected, or "".
func (v *Validator) CheckAdjustment(ctx context.Context, ev *StockAdjustmentEvent) (RejectReason, error) {
	if ev.StoreCode == "" {
		return ReasonMissingStore, nil
	}
	if ev.SKU == "" {
		return ReasonMissingSKU, nil
	}
	exists, err := v.catalog.StoreExists(ctx, ev.StoreCode)
	if err != nil {
		return "", err
	}
	if !exists {
		return ReasonUnknownStore, nil
	}
	return v.checkProduct(ctx, ev.SKU)
}

// checkProduct requires the product to exist and be known active.
func (v *Validator) checkProduct(ctx context.Context, sku string) (RejectReason, error) {
	exists, err := v.catalog.ProductExists(ctx, sku)
	if err != nil {
		return "", fmt.Errorf("product %q: %w", sku, err)
	}
	if !exists {
		return ReasonUnknownProduct, nil
	}
	active, known, err := v.catalog.ProductActive(ctx, sku)
	if err != nil {
		return "", fmt.Errorf("product %q: %w", sku, err)
	}
	if !known || !active {
		return ReasonInactiveProduct, nil
	}
	return "", nil
}
