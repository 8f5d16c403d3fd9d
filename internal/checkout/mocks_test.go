package checkout

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// MockOrderService implements OrderService for testing
type MockOrderService struct {
	mu       sync.RWMutex
	orders   []domain.Order
	findKeys []string

	SubmitFunc func(ctx context.Context, order domain.Order) (domain.OrderConfirmation, error)
	FindFunc   func(ctx context.Context, key string) (domain.OrderConfirmation, error)
}

func (m *MockOrderService) SubmitOrder(ctx context.Context, order domain.Order) (domain.OrderConfirmation, error) {
	m.mu.Lock()
	m.orders = append(m.orders, order)
	m.mu.Unlock()
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, order)
	}
	return domain.OrderConfirmation{OrderID: "ord-1", Status: domain.OrderStatusPending}, nil
}

func (m *MockOrderService) FindOrder(ctx context.Context, key string) (domain.OrderConfirmation, error) {
	m.mu.Lock()
	m.findKeys = append(m.findKeys, key)
	m.mu.Unlock()
	return m.FindFunc(ctx, key)
}

func (m *MockOrderService) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

func (m *MockOrderService) Order(i int) domain.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.orders[i]
}

// MockRecorder captures observed outcomes
type MockRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *MockRecorder) ObserveCheckout(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *MockRecorder) Outcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.outcomes...)
}

func sequentialKeys() func() string {
	var n atomic.Int32
	return func() string {
		return fmt.Sprintf("key-%d", n.Add(1))
	}
}
