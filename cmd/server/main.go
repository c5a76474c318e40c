package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TPAIN22/nubian-storefront/config"
	"github.com/TPAIN22/nubian-storefront/internal/app/controller"
	"github.com/TPAIN22/nubian-storefront/internal/app/repository"
	"github.com/TPAIN22/nubian-storefront/internal/app/service"
	"github.com/TPAIN22/nubian-storefront/internal/cache"
	"github.com/TPAIN22/nubian-storefront/internal/db"
	"github.com/TPAIN22/nubian-storefront/internal/httpclient"
	"github.com/TPAIN22/nubian-storefront/internal/router"
	"github.com/TPAIN22/nubian-storefront/internal/scheduler"
	"github.com/TPAIN22/nubian-storefront/pkg/logger"
	"github.com/TPAIN22/nubian-storefront/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logger.Initialize(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		EnableColor: cfg.Log.Format == "console",
	})

	logger.Info("Starting Nubian storefront server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   cfg.Log.Level,
		"upstream":    cfg.Upstream.BaseURL,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Response store and credentials live in Redis when it is enabled so
	// they survive restarts; otherwise in process memory
	var (
		store httpclient.Store           = httpclient.NewMemoryStore()
		creds httpclient.CredentialStore = httpclient.NewMemoryCredentials()
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.Init(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to initialize Redis", err)
		}
		defer func() {
			if err := redis.Close(); err != nil {
				logger.Error("Failed to close Redis connection", err)
			}
		}()
		store = httpclient.NewRedisStore(redisClient, cfg.Cache.ResponsePrefix, cfg.Cache.ResponseTTL)
		creds = httpclient.NewRedisCredentials(redisClient, cfg.Cache.CredentialPrefix)
	}

	responses := httpclient.NewResponseCache(store, cfg.Cache.ResponseTTL, nil)
	warmResponseCache(responses, 10*time.Second)

	client, err := httpclient.NewClient(httpclient.Config{
		BaseURL: cfg.Upstream.BaseURL,
		Timeout: cfg.Upstream.Timeout,
		Retry: httpclient.RetryPolicy{
			MaxRetries: cfg.Cache.MaxRetries,
			BaseDelay:  cfg.Cache.RetryBaseDelay,
			Multiplier: cfg.Cache.RetryMultiplier,
		},
		UserAgent: "nubian-storefront",
	}, responses, creds)
	if err != nil {
		logger.Fatal("Invalid upstream configuration", err)
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(client)
	cartRepo := repository.NewCartRepository(db.GetDB())

	// Initialize services
	productCache := service.NewProductCache(productRepo, cache.Options{
		Name:         "products",
		TTL:          cfg.Cache.EntityTTL,
		FetchTimeout: cfg.Cache.EntityFetchTimeout,
	})
	productService := service.NewProductService(productRepo, productCache)

	var cartService service.CartService
	if cfg.Upstream.CartEnabled {
		cartService = service.NewCartService(cartRepo, productService, repository.NewRemoteCartRepository(client))
	} else {
		cartService = service.NewCartService(cartRepo, productService)
	}
	sessionService := service.NewSessionService(creds, responses)

	// Initialize controllers
	productController := controller.NewProductController(productService)
	cartController := controller.NewCartController(cartService)
	sessionController := controller.NewSessionController(sessionService)

	// Cache maintenance
	cacheScheduler := scheduler.NewCacheScheduler(cfg.Cache.PruneSchedule, productService, responses)
	if err := cacheScheduler.Start(); err != nil {
		logger.Fatal("Failed to start cache scheduler", err)
	}
	defer cacheScheduler.Stop()

	// Setup router
	r := router.NewRouter(productController, cartController, sessionController, cfg)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shut down", err)
	}
	logger.Info("Server stopped successfully")
}

// warmResponseCache loads persisted responses; Load logs the outcome. A
// failure only costs cache hits, so startup goes on.
func warmResponseCache(responses *httpclient.ResponseCache, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if _, err := responses.Load(ctx); err != nil {
		logger.Warn("Failed to warm response cache", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
