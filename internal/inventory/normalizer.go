package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedPayload is returned when a payload is not a decodable event.
var ErrMalformedPayload = errors.New("malformed event payload")

// WireEvent is the JSON shape shared by every inbound topic. Only the body
// matching the topic's kind is read.
type WireEvent struct {
	EventID    *string         `json:"event_id,omitempty"`
	Product    *WireProduct    `json:"product,omitempty"`
	Store      *WireStore      `json:"store,omitempty"`
	Sale       *WireSale       `json:"sale,omitempty"`
	Adjustment *WireAdjustment `json:"adjustment,omitempty"`
}

type WireProduct struct {
	SKU    *string `json:"sku,omitempty"`
	Name   *string `json:"name,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

type WireStore struct {
	Code *string `json:"code,omitempty"`
	Name *string `json:"name,omitempty"`
}

type WireSaleItem struct {
	Product  *WireProduct `json:"product,omitempty"`
	Quantity *int64       `json:"quantity,omitempty"`
}

type WireSale struct {
	Store *WireStore      `json:"store,omitempty"`
	Items []*WireSaleItem `json:"items,omitempty"`
}

type WireAdjustment struct {
	Store     *WireStore   `json:"store,omitempty"`
	Product   *WireProduct `json:"product,omitempty"`
	Delta     *int64       `json:"delta,omitempty"`
	Reason    *string      `json:"reason,omitempty"`
	Timestamp *string      `json:"timestamp,omitempty"`
}

// Decode parses a payload of the given kind into a canonical Envelope.
func Decode(kind Kind, payload []byte, d Delivery) (Envelope, error) {
	var w WireEvent
	if err := json.Unmarshal(payload, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return Normalize(kind, w, d), nil
}

// Normalize maps a wire event to its canonical form. Absent nested fields
// become zero canonical fields; nothing is validated here.
func Normalize(kind Kind, w WireEvent, d Delivery) Envelope {
	env := Envelope{Kind: kind, EventID: trimmed(w.EventID), Delivery: d}

	switch kind {
	case KindProduct:
		if w.Product != nil {
			env.Product = &ProductEvent{
				EventID: env.EventID,
				SKU:     trimmed(w.Product.SKU),
				Name:    deref(w.Product.Name),
				Active:  w.Product.Active,
			}
		}
	case KindStore:
		if w.Store != nil {
			env.Store = &StoreEvent{
				EventID:   env.EventID,
				StoreCode: trimmed(w.Store.Code),
				Name:      deref(w.Store.Name),
			}
		}
	case KindSale:
		if w.Sale != nil {
			sale := &SalesEvent{EventID: env.EventID, StoreCode: storeCode(w.Sale.Store)}
			for _, it := range w.Sale.Items {
				if it == nil {
					sale.Items = append(sale.Items, SaleItem{})
					continue
				}
				item := SaleItem{SKU: productSKU(it.Product)}
				if it.Quantity != nil {
					item.Quantity = *it.Quantity
				}
				sale.Items = append(sale.Items, item)
			}
			env.Sale = sale
		}
	case KindStockAdjustment:
		if w.Adjustment != nil {
			a := w.Adjustment
			env.Adjustment = &StockAdjustmentEvent{
				EventID:   env.EventID,
				StoreCode: storeCode(a.Store),
				SKU:       productSKU(a.Product),
				Delta:     a.Delta,
				Reason:    deref(a.Reason),
				Timestamp: parseTimestamp(a.Timestamp),
			}
		}
	}
	return env
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func trimmed(s *string) string {
	return strings.TrimSpace(deref(s))
}

func storeCode(s *WireStore) string {
	if s == nil {
		return ""
	}
	return trimmed(s.Code)
}

func productSKU(p *WireProduct) string {
	if p == nil {
		return ""
	}
	return trimmed(p.SKU)
}

// unparseable timestamps are treated as absent
func parseTimestamp(s *string) time.Time {
	v := trimmed(s)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
