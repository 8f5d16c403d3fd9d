package catalog

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"golang.org/x/sync/singleflight"
)

// Fetcher reads a product from the Catalog Service.
type Fetcher interface {
	Product(ctx context.Context, id int64) (domain.Product, error)
}

// Service is shared by all sessions. The cache is shared too, but a backend
// fetch is only ever joined by lookups of the same session, since it runs on
// that session's credentials.
type Service struct {
	cache ProductCache
	log   *logger.Logger
	sfg   singleflight.Group // Prevents cache stampede
}

func NewService(cache ProductCache, log *logger.Logger) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{cache: cache, log: log}
}

// For binds the service to a session's fetcher. owner identifies the session.
func (s *Service) For(owner string, fetcher Fetcher) *Lookup {
	return &Lookup{service: s, owner: owner, fetcher: fetcher}
}

func (s *Service) product(ctx context.Context, owner string, fetcher Fetcher, id int64) (domain.Product, error) {
	key := owner + ":" + strconv.FormatInt(id, 10)
	// joined callers must not inherit the first caller's cancellation
	shared := context.WithoutCancel(ctx)
	ch := s.sfg.DoChan(key, func() (interface{}, error) {
		ctx := shared
		product, err := s.cache.Get(ctx, id)
		if err == nil {
			return *product, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn("product cache get failed", "product_id", id, "error", err)
		}

		fetched, err := fetcher.Product(ctx, id)
		if err != nil {
			return nil, err
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.cache.Set(ctx, &fetched); err != nil {
				s.log.Warn("product cache set failed", "product_id", id, "error", err)
			}
		}()
		return fetched, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.Product{}, res.Err
		}
		return res.Val.(domain.Product), nil
	case <-ctx.Done():
		return domain.Product{}, ctx.Err()
	}
}

// Invalidate drops a cached product, e.g. once its stock is known to have changed.
func (s *Service) Invalidate(ctx context.Context, id int64) {
	if err := s.cache.Delete(ctx, id); err != nil {
		s.log.Warn("product cache delete failed", "product_id", id, "error", err)
	}
}

// Lookup is the catalog as seen by one session.
type Lookup struct {
	service *Service
	owner   string
	fetcher Fetcher
}

func (l *Lookup) Product(ctx context.Context, id int64) (domain.Product, error) {
	return l.service.product(ctx, l.owner, l.fetcher, id)
}

// Fresh bypasses the cache, for when the caller needs current stock.
func (l *Lookup) Fresh(ctx context.Context, id int64) (domain.Product, error) {
	l.service.Invalidate(ctx, id)
	return l.service.product(ctx, l.owner, l.fetcher, id)
}
