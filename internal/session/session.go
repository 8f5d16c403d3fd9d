package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/dashboard"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
)

// ProductLookup resolves catalog records for the cart.
type ProductLookup interface {
	Product(ctx context.Context, id int64) (domain.Product, error)
	Fresh(ctx context.Context, id int64) (domain.Product, error)
}

// Session owns the state of one signed-in user: cart, checkout and dashboard
// live exactly as long as the session does.
type Session struct {
	ID        string
	StartedAt time.Time
	Creds     *Credentials
	Cart      *cart.Store
	Checkout  *checkout.Orchestrator
	Dashboard *dashboard.Aggregator
	Catalog   ProductLookup

	log *logger.Logger
}

// AddProduct adds a catalog product with its current price and stock.
func (s *Session) AddProduct(ctx context.Context, productID int64, quantity int) (cart.AddResult, error) {
	if quantity < 1 {
		return cart.AddResult{}, apperr.ErrInvalidQuantity
	}
	if productID <= 0 {
		return cart.AddResult{}, apperr.NewValidationError("product_id")
	}
	product, err := s.Catalog.Product(ctx, productID)
	if err != nil {
		return cart.AddResult{}, fmt.Errorf("look up product %d: %w", productID, err)
	}
	if product.ID == 0 {
		product.ID = productID
	}
	return s.Cart.AddItem(product.LineItem(), quantity)
}

// StockChange is an entry RefreshStock had to reduce or drop.
type StockChange struct {
	cart.AddResult
	Removed bool
}

// RefreshStock re-reads the stock of every cart entry and re-clamps it.
// Products the catalog no longer knows are removed. Only an expired session
// aborts the refresh; other lookup failures keep the entry as it is.
func (s *Session) RefreshStock(ctx context.Context) ([]StockChange, error) {
	var changes []StockChange
	for _, item := range s.Cart.Items() {
		product, err := s.Catalog.Fresh(ctx, item.ProductID)
		switch {
		case errors.Is(err, apperr.ErrSessionExpired):
			return changes, err
		case errors.Is(err, apperr.ErrNotFound):
			s.Cart.RemoveItem(item.ProductID)
			changes = append(changes, StockChange{
				AddResult: cart.AddResult{ProductID: item.ProductID, Requested: item.Quantity, Clamped: true},
				Removed:   true,
			})
			continue
		case err != nil:
			s.log.Warn("stock refresh failed", "product_id", item.ProductID, "error", err)
			continue
		}

		res, removed, err := s.Cart.SetAvailableStock(item.ProductID, product.Quantity)
		if err != nil {
			// removed concurrently
			continue
		}
		if res.Clamped || removed {
			changes = append(changes, StockChange{AddResult: res, Removed: removed})
		}
	}
	return changes, nil
}

// Factory builds the components of a new session.
type Factory func(id string, creds *Credentials) (*Session, error)

type Deps struct {
	Backend       *backend.Client
	Catalog       *catalog.Service
	Metrics       *metrics.Metrics
	Log           *logger.Logger
	SubmitTimeout time.Duration
}

// DefaultFactory wires a session against the real backend.
func DefaultFactory(d Deps) Factory {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Catalog == nil {
		d.Catalog = catalog.NewService(nil, d.Log)
	}
	return func(id string, creds *Credentials) (*Session, error) {
		if d.Backend == nil {
			return nil, errors.New("session factory: backend client is required")
		}
		api := d.Backend.ForSession(creds)
		log := d.Log.With("session_id", id)
		store := cart.NewStore()

		checkoutOpts := []checkout.Option{checkout.WithLogger(log), checkout.WithRecorder(d.Metrics)}
		if d.SubmitTimeout > 0 {
			checkoutOpts = append(checkoutOpts, checkout.WithTimeout(d.SubmitTimeout))
		}

		return &Session{
			ID:        id,
			Creds:     creds,
			Cart:      store,
			Checkout:  checkout.NewOrchestrator(store, api, checkoutOpts...),
			Dashboard: dashboard.NewAggregator(api, dashboard.WithLogger(log), dashboard.WithRecorder(d.Metrics)),
			Catalog:   d.Catalog.For(id, api),
			log:       log,
		}, nil
	}
}
