package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LineItem struct {
	ProductID      int64           `json:"product_id"`
	Name           string          `json:"name"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	AvailableStock *int            `json:"available_stock,omitempty"`
}

func (i LineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Clone returns a copy that shares no memory with i.
func (i LineItem) Clone() LineItem {
	if i.AvailableStock != nil {
		stock := *i.AvailableStock
		i.AvailableStock = &stock
	}
	return i
}

// StockKnown reports the last known stock level, if any.
func (i LineItem) StockKnown() (int, bool) {
	if i.AvailableStock == nil {
		return 0, false
	}
	return *i.AvailableStock, true
}

// Stock is a helper for building items with a known stock level.
func Stock(n int) *int {
	return &n
}

// CartSnapshot represents the full cart state at a single instant
type CartSnapshot struct {
	Items      []LineItem      `json:"items"`
	Total      decimal.Decimal `json:"total"`
	CapturedAt time.Time       `json:"captured_at"`
}

func (s CartSnapshot) Empty() bool {
	return len(s.Items) == 0
}

func (s CartSnapshot) ItemCount() int {
	n := 0
	for _, item := range s.Items {
		n += item.Quantity
	}
	return n
}

// SameContents compares items, quantities, prices and total, ignoring capture time.
func (s CartSnapshot) SameContents(other CartSnapshot) bool {
	if len(s.Items) != len(other.Items) || !s.Total.Equal(other.Total) {
		return false
	}
	for i := range s.Items {
		a, b := s.Items[i], other.Items[i]
		if a.ProductID != b.ProductID || a.Quantity != b.Quantity || !a.UnitPrice.Equal(b.UnitPrice) {
			return false
		}
	}
	return true
}
