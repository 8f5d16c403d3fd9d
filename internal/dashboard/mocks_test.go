package dashboard

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// MockSource implements Source for testing. Errs fails a section by name;
// Block makes a section wait until its context ends or the channel closes.
type MockSource struct {
	mu       sync.Mutex
	calls    map[string]int
	finished map[string]int
	markRead []int64

	Errs  map[string]error
	Block map[string]chan struct{}

	CreateFunc func(ctx context.Context, event backend.EventDTO) (backend.EventDTO, error)
	MarkFunc   func(ctx context.Context, id int64) error
}

func NewMockSource() *MockSource {
	return &MockSource{
		calls:    make(map[string]int),
		finished: make(map[string]int),
		Errs:     make(map[string]error),
		Block:    make(map[string]chan struct{}),
	}
}

func (m *MockSource) enter(ctx context.Context, section string) error {
	m.mu.Lock()
	m.calls[section]++
	block := m.Block[section]
	err := m.Errs[section]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.finished[section]++
		m.mu.Unlock()
	}()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (m *MockSource) Calls(section string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[section]
}

func (m *MockSource) Finished() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.finished {
		n += c
	}
	return n
}

func (m *MockSource) MarkedRead() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64{}, m.markRead...)
}

func (m *MockSource) Profile(ctx context.Context) (domain.Profile, error) {
	if err := m.enter(ctx, domain.SectionProfile); err != nil {
		return domain.Profile{}, err
	}
	return domain.Profile{Name: "Ann", Email: "ann@example.com", IsFarmer: true, FarmName: "Green Acres"}, nil
}

func (m *MockSource) Stats(ctx context.Context) (domain.Stats, error) {
	if err := m.enter(ctx, domain.SectionStats); err != nil {
		return domain.Stats{}, err
	}
	return domain.Stats{TotalOrders: 3, TotalProducts: 2, TotalRevenue: decimal.RequireFromString("41.50")}, nil
}

func (m *MockSource) RecentOrders(ctx context.Context) ([]backend.OrderDTO, error) {
	if err := m.enter(ctx, domain.SectionRecentOrders); err != nil {
		return nil, err
	}
	return []backend.OrderDTO{
		{ID: "11", Status: "PENDING", Total: decimal.RequireFromString("9.00"), CreatedAt: "2024-05-01T10:00:00Z"},
	}, nil
}

func (m *MockSource) Products(ctx context.Context) ([]domain.Product, error) {
	if err := m.enter(ctx, domain.SectionProducts); err != nil {
		return nil, err
	}
	return []domain.Product{
		{ID: 1, Name: "Tomatoes", Price: decimal.RequireFromString("2.50"), Quantity: 10},
	}, nil
}

func (m *MockSource) Notifications(ctx context.Context) ([]backend.NotificationDTO, error) {
	if err := m.enter(ctx, domain.SectionNotifications); err != nil {
		return nil, err
	}
	return []backend.NotificationDTO{
		{ID: 1, Message: "Order shipped", Read: false, CreatedAt: "2024-05-01T10:00:00.123456"},
		{ID: 2, Message: "New review", Read: true, CreatedAt: "2024-05-02T08:30:00+02:00"},
		{ID: 3, Message: "Low stock", Read: false, CreatedAt: "yesterday"},
	}, nil
}

func (m *MockSource) Events(ctx context.Context) ([]backend.EventDTO, error) {
	if err := m.enter(ctx, domain.SectionEvents); err != nil {
		return nil, err
	}
	return []backend.EventDTO{
		{ID: "1", Title: "Market day", Start: "2024-05-04", End: "2024-05-04", AllDay: true},
		{ID: "2", Title: "Delivery", Start: "2024-05-05T09:00:00Z", End: "2024-05-05T10:00:00Z"},
		{ID: "3", Title: "Broken", Start: "soon", End: "later"},
	}, nil
}

func (m *MockSource) Analytics(ctx context.Context) (domain.Analytics, error) {
	if err := m.enter(ctx, domain.SectionAnalytics); err != nil {
		return domain.Analytics{}, err
	}
	return domain.Analytics{
		MonthlyRevenue: []domain.MonthlyRevenue{{Month: "2024-04", Revenue: decimal.RequireFromString("30")}},
		OrderStatus:    []domain.StatusCount{{Name: "PENDING", Value: 1}},
	}, nil
}

func (m *MockSource) CreateEvent(ctx context.Context, event backend.EventDTO) (backend.EventDTO, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, event)
	}
	event.ID = "100"
	return event, nil
}

func (m *MockSource) MarkNotificationRead(ctx context.Context, id int64) error {
	m.mu.Lock()
	m.markRead = append(m.markRead, id)
	m.mu.Unlock()
	if m.MarkFunc != nil {
		return m.MarkFunc(ctx, id)
	}
	return nil
}

// MockRecorder counts failed sections
type MockRecorder struct {
	mu     sync.Mutex
	failed []string
}

func (r *MockRecorder) SectionFailed(section string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, section)
}

func (r *MockRecorder) Failed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.failed...)
}
