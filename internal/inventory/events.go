package inventory

import (
	"fmt"
	"time"
)

// Kind tags which canonical event an Envelope carries.
type Kind string

const (
	KindProduct         Kind = "product"
	KindStore           Kind = "store"
	KindSale            Kind = "sale"
	KindStockAdjustment Kind = "stock_adjustment"
)

// Kinds lists every kind in a stable order.
var Kinds = []Kind{KindProduct, KindStore, KindSale, KindStockAdjustment}

// ParseKind maps a CLI or config name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindProduct, KindStore, KindSale, KindStockAdjustment:
		return Kind(s), nil
	case "adjustment":
		return KindStockAdjustment, nil
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}

// Delivery holds the transport coordinates of one inbound message.
type Delivery struct {
	Topic     string
	Partition int
	Offset    int64
	// Positioned is false when the message did not come from a partitioned log.
	Positioned bool
}

type ProductEvent struct {
	EventID string
	SKU     string
	Name    string
	Active  *bool
}

type StoreEvent struct {
	EventID   string
	StoreCode string
	Name      string
}

type SaleItem struct {
	SKU      string
	Quantity int64
}

type SalesEvent struct {
	EventID   string
	StoreCode string
	Items     []SaleItem
}

type StockAdjustmentEvent struct {
	EventID   string
	StoreCode string
	SKU       string
	// Delta is nil when the payload carried none.
	Delta     *int64
	Reason    string
	Timestamp time.Time
}

// Envelope is a canonical event tagged by Kind. At most the field matching
// Kind is non-nil; it is nil when the payload had no body for that kind.
type Envelope struct {
	Kind     Kind
	EventID  string
	Delivery Delivery

	Product    *ProductEvent
	Store      *StoreEvent
	Sale       *SalesEvent
	Adjustment *StockAdjustmentEvent
}

// MissingIdentity names the identity field the event lacks, or returns "".
// Such events are never claimed.
func (e Envelope) MissingIdentity() string {
	switch e.Kind {
	case KindProduct:
		if e.Product == nil || e.Product.SKU == "" {
			return "product.sku"
		}
	case KindStore:
		if e.Store == nil || e.Store.StoreCode == "" {
			return "store.code"
		}
	case KindSale:
		if e.Sale == nil {
			return "sale"
		}
	case KindStockAdjustment:
		if e.Adjustment == nil {
			return "adjustment"
		}
		if e.Adjustment.Delta == nil {
			return "adjustment.delta"
		}
	default:
		return "kind"
	}
	return ""
}

// StockChangedEvent is published after a committed mutation changed a line.
type StockChangedEvent struct {
	StoreCode string    `json:"store_code"`
	SKU       string    `json:"sku"`
	Previous  int64     `json:"previous"`
	Quantity  int64     `json:"quantity"`
	Delta     int64     `json:"delta"`
	EventID   string    `json:"event_id,omitempty"`
	Cause     Kind      `json:"cause"`
	At        time.Time `json:"at"`
}
