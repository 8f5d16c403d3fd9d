package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

// MockCatalog implements ProductLookup for testing
type MockCatalog struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	errs     map[int64]error
}

func NewMockCatalog() *MockCatalog {
	return &MockCatalog{products: make(map[int64]domain.Product), errs: make(map[int64]error)}
}

func (m *MockCatalog) Put(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *MockCatalog) Fail(id int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[id] = err
}

func (m *MockCatalog) Product(_ context.Context, id int64) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[id]; err != nil {
		return domain.Product{}, err
	}
	p, ok := m.products[id]
	if !ok {
		return domain.Product{}, &apperr.ServerError{Status: 404, Message: "Not Found"}
	}
	return p, nil
}

func (m *MockCatalog) Fresh(ctx context.Context, id int64) (domain.Product, error) {
	return m.Product(ctx, id)
}

// MockOrderService implements checkout.OrderService for testing
type MockOrderService struct {
	err error
}

func (m *MockOrderService) SubmitOrder(context.Context, domain.Order) (domain.OrderConfirmation, error) {
	if m.err != nil {
		return domain.OrderConfirmation{}, m.err
	}
	return domain.OrderConfirmation{OrderID: "ord-1", Status: domain.OrderStatusPending}, nil
}

func (m *MockOrderService) FindOrder(context.Context, string) (domain.OrderConfirmation, error) {
	return domain.OrderConfirmation{}, apperr.ErrNotFound
}

func testFactory(orders checkout.OrderService, lookup ProductLookup) Factory {
	return func(id string, creds *Credentials) (*Session, error) {
		store := cart.NewStore()
		return &Session{
			Creds:    creds,
			Cart:     store,
			Checkout: checkout.NewOrchestrator(store, orders),
			Catalog:  lookup,
		}, nil
	}
}

func TestCredentials(t *testing.T) {
	t.Run("opaque token never expires locally", func(t *testing.T) {
		c := NewCredentials("Bearer abc123")
		token, err := c.Token()
		require.NoError(t, err)
		assert.Equal(t, "abc123", token)
	})

	t.Run("empty token is an expired session", func(t *testing.T) {
		_, err := NewCredentials("  ").Token()
		assert.ErrorIs(t, err, apperr.ErrSessionExpired)
	})

	t.Run("jwt past its exp", func(t *testing.T) {
		c := NewCredentials(signedToken(t, time.Now().Add(-time.Minute)))
		assert.True(t, c.Expired())
		_, err := c.Token()
		assert.ErrorIs(t, err, apperr.ErrSessionExpired)
	})

	t.Run("jwt still valid, then rotated", func(t *testing.T) {
		valid := signedToken(t, time.Now().Add(time.Hour))
		c := NewCredentials(valid)
		token, err := c.Token()
		require.NoError(t, err)
		assert.Equal(t, valid, token)

		c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		assert.True(t, c.Expired())

		c.Rotate(signedToken(t, time.Now().Add(3*time.Hour)))
		assert.False(t, c.Expired())
	})
}

func TestAddProduct_UsesCatalogPriceAndStock(t *testing.T) {
	catalog := NewMockCatalog()
	catalog.Put(domain.Product{ID: 1, Name: "Honey", Price: decimal.RequireFromString("7.25"), Quantity: 3})
	m := NewManager(testFactory(&MockOrderService{}, catalog), nil)
	s, err := m.Start("token")
	require.NoError(t, err)

	res, err := s.AddProduct(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Quantity)
	assert.True(t, res.Clamped)
	assert.True(t, s.Cart.Total().Equal(decimal.RequireFromString("21.75")))

	_, err = s.AddProduct(context.Background(), 1, 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidQuantity)

	_, err = s.AddProduct(context.Background(), 99, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	catalog.Put(domain.Product{ID: 2, Name: "Jam", Price: decimal.RequireFromString("3"), Quantity: 0})
	_, err = s.AddProduct(context.Background(), 2, 1)
	assert.ErrorIs(t, err, apperr.ErrOutOfStock)
}

func TestRefreshStock(t *testing.T) {
	catalog := NewMockCatalog()
	for _, p := range []domain.Product{
		{ID: 1, Price: decimal.RequireFromString("1"), Quantity: 10},
		{ID: 2, Price: decimal.RequireFromString("1"), Quantity: 10},
		{ID: 3, Price: decimal.RequireFromString("1"), Quantity: 10},
		{ID: 4, Price: decimal.RequireFromString("1"), Quantity: 10},
	} {
		catalog.Put(p)
	}
	m := NewManager(testFactory(&MockOrderService{}, catalog), nil)
	s, err := m.Start("token")
	require.NoError(t, err)
	for id := int64(1); id <= 4; id++ {
		_, err := s.AddProduct(context.Background(), id, 5)
		require.NoError(t, err)
	}

	catalog.Put(domain.Product{ID: 1, Price: decimal.RequireFromString("1"), Quantity: 2})
	catalog.Put(domain.Product{ID: 2, Price: decimal.RequireFromString("1"), Quantity: 0})
	catalog.Fail(3, apperr.Network("GET products/3/", errors.New("reset")))
	catalog.mu.Lock()
	delete(catalog.products, 4)
	catalog.mu.Unlock()

	changes, err := s.RefreshStock(context.Background())
	require.NoError(t, err)

	require.Len(t, changes, 3)
	assert.Equal(t, int64(1), changes[0].ProductID)
	assert.Equal(t, 2, changes[0].Quantity)
	assert.True(t, changes[1].Removed)
	assert.True(t, changes[2].Removed)

	item, ok := s.Cart.Item(3)
	require.True(t, ok, "transient lookup failure keeps the entry")
	assert.Equal(t, 5, item.Quantity)
	assert.Equal(t, 2, s.Cart.Len())
}

func TestRefreshStock_SessionExpiredAborts(t *testing.T) {
	catalog := NewMockCatalog()
	catalog.Put(domain.Product{ID: 1, Price: decimal.RequireFromString("1"), Quantity: 10})
	m := NewManager(testFactory(&MockOrderService{}, catalog), nil)
	s, err := m.Start("token")
	require.NoError(t, err)
	_, err = s.AddProduct(context.Background(), 1, 1)
	require.NoError(t, err)

	catalog.Fail(1, apperr.ErrSessionExpired)
	_, err = s.RefreshStock(context.Background())

	assert.ErrorIs(t, err, apperr.ErrSessionExpired)
}

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(testFactory(&MockOrderService{}, NewMockCatalog()), nil)

	_, err := m.Start(signedToken(t, time.Now().Add(-time.Second)))
	assert.ErrorIs(t, err, apperr.ErrSessionExpired)
	assert.Equal(t, 0, m.Len())

	s, err := m.Start("token")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.False(t, s.StartedAt.IsZero())

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.End(s.ID))
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, m.End(s.ID), apperr.ErrNotFound)
}

func TestManager_ConfirmOrderRoutesToOwningSession(t *testing.T) {
	orders := &MockOrderService{err: apperr.Network("POST orders/", errors.New("timeout"))}
	catalog := NewMockCatalog()
	catalog.Put(domain.Product{ID: 1, Price: decimal.RequireFromString("2"), Quantity: 5})
	m := NewManager(testFactory(orders, catalog), nil)

	other, err := m.Start("token-a")
	require.NoError(t, err)
	owner, err := m.Start("token-b")
	require.NoError(t, err)

	_, err = owner.AddProduct(context.Background(), 1, 1)
	require.NoError(t, err)
	_, err = owner.Checkout.Submit(context.Background(), domain.CustomerInfo{Name: "Ann", Address: "Rd 1", PaymentMethod: domain.PaymentBank})
	require.ErrorIs(t, err, apperr.ErrNetwork)
	key, ok := owner.Checkout.PendingKey()
	require.True(t, ok)

	assert.False(t, m.ConfirmOrder("unknown", domain.OrderConfirmation{OrderID: "x"}))
	assert.True(t, m.ConfirmOrder(key, domain.OrderConfirmation{OrderID: "ord-77", Status: domain.OrderStatusCompleted}))

	assert.Equal(t, domain.CheckoutSucceeded, owner.Checkout.State())
	assert.Equal(t, 0, owner.Cart.Len())
	assert.Equal(t, domain.CheckoutIdle, other.Checkout.State())
	m.Close()
}

func TestDefaultFactory_WiresBackend(t *testing.T) {
	client, err := backend.NewClient("http://127.0.0.1:1")
	require.NoError(t, err)
	m := NewManager(DefaultFactory(Deps{Backend: client, SubmitTimeout: time.Second}), nil)

	s, err := m.Start("token")
	require.NoError(t, err)

	assert.NotNil(t, s.Cart)
	assert.NotNil(t, s.Checkout)
	assert.NotNil(t, s.Dashboard)
	assert.NotNil(t, s.Catalog)

	_, err = DefaultFactory(Deps{})("id", NewCredentials("t"))
	assert.Error(t, err)
}
