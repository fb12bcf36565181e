// Package catalog reads replicated store and product facts.
//
// Catalog replication itself happens elsewhere; the backends here only read
// whatever the replica currently holds.
package catalog

import "context"

// Oracle answers existence and activity questions about the catalog.
type Oracle interface {
	StoreExists(ctx context.Context, code string) (bool, error)
	ProductExists(ctx context.Context, sku string) (bool, error)
	// ProductActive returns known=false when the replica has no opinion,
	// either because the product is missing or its flag is unset.
	ProductActive(ctx context.Context, sku string) (active, known bool, err error)
}
