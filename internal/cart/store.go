package cart

import (
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// AddResult reports what a mutation actually applied.
type AddResult struct {
	ProductID int64
	Requested int
	Quantity  int // resulting quantity of the entry
	Clamped   bool
}

// Store owns the line items of one session. Every mutation runs under mu,
// so a merge's read-modify-write is never interleaved with another mutation.
type Store struct {
	mu    sync.Mutex
	items map[int64]*domain.LineItem
	order []int64 // insertion order for display
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{
		items: make(map[int64]*domain.LineItem),
		now:   time.Now,
	}
}

// AddItem merges quantity into the entry for item.ProductID, inserting it if absent.
// Quantity is clamped to the last known stock on every merge. Price and name of an
// existing entry stay as they were when it was first added.
func (s *Store) AddItem(item domain.LineItem, quantity int) (AddResult, error) {
	if quantity < 1 {
		return AddResult{}, apperr.ErrInvalidQuantity
	}
	if fields := invalidItemFields(item); len(fields) > 0 {
		return AddResult{}, apperr.NewValidationError(fields...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, found := s.items[item.ProductID]
	stock, stockKnown := item.StockKnown()
	if !stockKnown && found {
		stock, stockKnown = existing.StockKnown()
	}
	if stockKnown && stock == 0 {
		return AddResult{}, fmt.Errorf("product %d: %w", item.ProductID, apperr.ErrOutOfStock)
	}

	current := 0
	if found {
		current = existing.Quantity
	}
	target, clamped := clamp(current+quantity, stock, stockKnown)

	if !found {
		entry := item.Clone()
		entry.Quantity = target
		s.items[item.ProductID] = &entry
		s.order = append(s.order, item.ProductID)
	} else {
		existing.Quantity = target
		if stockKnown {
			existing.AvailableStock = domain.Stock(stock)
		}
	}

	return AddResult{ProductID: item.ProductID, Requested: quantity, Quantity: target, Clamped: clamped}, nil
}

// RemoveItem deletes the entry. Removing an absent product is a no-op.
func (s *Store) RemoveItem(productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(productID)
}

// UpdateQuantity sets an absolute quantity. Values below 1 are rejected and leave
// the cart unchanged; callers remove entries with RemoveItem.
func (s *Store) UpdateQuantity(productID int64, quantity int) (AddResult, error) {
	if quantity < 1 {
		return AddResult{}, apperr.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, found := s.items[productID]
	if !found {
		return AddResult{}, fmt.Errorf("product %d not in cart: %w", productID, apperr.ErrNotFound)
	}
	stock, stockKnown := existing.StockKnown()
	target, clamped := clamp(quantity, stock, stockKnown)
	existing.Quantity = target

	return AddResult{ProductID: productID, Requested: quantity, Quantity: target, Clamped: clamped}, nil
}

// SetAvailableStock records a fresh stock level and re-clamps the entry.
// An entry whose stock dropped to zero is removed; removed reports that case.
func (s *Store) SetAvailableStock(productID int64, stock int) (result AddResult, removed bool, err error) {
	if stock < 0 {
		return AddResult{}, false, apperr.NewValidationError("available_stock")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, found := s.items[productID]
	if !found {
		return AddResult{}, false, fmt.Errorf("product %d not in cart: %w", productID, apperr.ErrNotFound)
	}
	if stock == 0 {
		s.remove(productID)
		return AddResult{ProductID: productID, Requested: existing.Quantity, Clamped: true}, true, nil
	}

	previous := existing.Quantity
	target, clamped := clamp(previous, stock, true)
	existing.Quantity = target
	existing.AvailableStock = domain.Stock(stock)

	return AddResult{ProductID: productID, Requested: previous, Quantity: target, Clamped: clamped}, false, nil
}

// Clear empties the cart unconditionally.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[int64]*domain.LineItem)
	s.order = nil
}

// Total is recomputed on every call and rounded to 2 decimal places.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total()
}

func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, item := range s.items {
		n += item.Quantity
	}
	return n
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Items returns copies of the entries in insertion order.
func (s *Store) Items() []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyItems()
}

func (s *Store) Item(productID int64) (domain.LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, found := s.items[productID]
	if !found {
		return domain.LineItem{}, false
	}
	return item.Clone(), true
}

// Snapshot captures items and total atomically; later mutations do not affect it.
func (s *Store) Snapshot() domain.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CartSnapshot{
		Items:      s.copyItems(),
		Total:      s.total(),
		CapturedAt: s.now(),
	}
}

func (s *Store) total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.Subtotal())
	}
	return total.Round(2)
}

func (s *Store) copyItems() []domain.LineItem {
	items := make([]domain.LineItem, 0, len(s.order))
	for _, id := range s.order {
		items = append(items, s.items[id].Clone())
	}
	return items
}

func (s *Store) remove(productID int64) {
	if _, found := s.items[productID]; !found {
		return
	}
	delete(s.items, productID)
	for i, id := range s.order {
		if id == productID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func clamp(quantity, stock int, stockKnown bool) (int, bool) {
	if stockKnown && quantity > stock {
		return stock, true
	}
	return quantity, false
}

func invalidItemFields(item domain.LineItem) []string {
	var fields []string
	if item.ProductID <= 0 {
		fields = append(fields, "product_id")
	}
	if item.UnitPrice.IsNegative() {
		fields = append(fields, "unit_price")
	}
	if item.AvailableStock != nil && *item.AvailableStock < 0 {
		fields = append(fields, "available_stock")
	}
	return fields
}
