package catalog

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type ProductCache interface {
	Get(ctx context.Context, productID int64) (*domain.Product, error)
	Set(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, productID int64) error
}

var ErrCacheMiss = errors.New("cache miss")

// NopCache never hits. Used when no Redis is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, int64) (*domain.Product, error) { return nil, ErrCacheMiss }
func (NopCache) Set(context.Context, *domain.Product) error { return nil }
func (NopCache) Delete(context.Context, int64) error { return nil }
