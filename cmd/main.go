package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/poller"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	h "github.com/fjod/go_cart/storefront/internal/http"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer lg.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := backend.NewClient(cfg.BackendBaseURL,
		backend.WithTimeout(cfg.RequestTimeout),
		backend.WithBreaker(cfg.BreakerFailures, cfg.BreakerOpenTimeout),
		backend.WithLogger(lg),
	)
	if err != nil {
		lg.Error("failed to create backend client", "error", err)
		os.Exit(1)
	}

	var cache catalog.ProductCache = catalog.NopCache{}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			lg.Warn("redis unavailable, product cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			lg.Info("redis ping succeeded", "addr", cfg.RedisAddr)
			cache = catalog.NewRedisCache(redisClient, cfg.CatalogCacheTTL)
		}
	}

	m := metrics.New()
	manager := session.NewManager(session.DefaultFactory(session.Deps{
		Backend:       client,
		Catalog:       catalog.NewService(cache, lg),
		Metrics:       m,
		Log:           lg,
		SubmitTimeout: cfg.SubmitTimeout,
	}), lg)

	var events *poller.Poller
	pollerDone := make(chan struct{})
	if len(cfg.KafkaBrokers) > 0 {
		events = poller.NewPoller(manager, lg, cfg.KafkaTopic, cfg.KafkaBrokers...)
		go func() {
			defer close(pollerDone)
			events.Run(ctx)
		}()
		lg.Info("order event poller started", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		close(pollerDone)
	}

	router := h.NewRouter(h.RouterConfig{
		Sessions:           manager,
		Metrics:            m,
		Log:                lg,
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.SubmitTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		lg.Info("storefront starting", "port", cfg.HTTPPort, "backend", cfg.BackendBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("server forced to shutdown", "error", err)
	}

	// in-flight submissions finish before the event stream goes away
	manager.Close()
	cancel()
	<-pollerDone
	if events != nil {
		events.Close()
	}

	lg.Info("server exited")
}
