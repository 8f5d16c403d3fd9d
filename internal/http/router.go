package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Sessions           Sessions
	Metrics            *metrics.Metrics
	Log                *logger.Logger
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

func NewRouter(cfg RouterConfig) chi.Router {
	sessionHandler := NewSessionHandler(cfg.Sessions)
	cartHandler := NewCartHandler(cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(cfg.RequestTimeout)
	dashboardHandler := NewDashboardHandler(cfg.RequestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(cfg.Log))
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware(cfg.Metrics))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", cfg.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session", sessionHandler.Start)

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(cfg.Sessions))

			r.Delete("/session", sessionHandler.End)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
				r.Delete("/items/{product_id}", cartHandler.RemoveItem)
				r.Post("/refresh", cartHandler.RefreshStock)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", checkoutHandler.Submit)
				r.Get("/", checkoutHandler.Status)
				r.Post("/reconcile", checkoutHandler.Reconcile)
			})

			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/", dashboardHandler.Get)
				r.Post("/events", dashboardHandler.CreateEvent)
				r.Post("/notifications/{id}/read", dashboardHandler.MarkNotificationRead)
			})
		})
	})

	return r
}
