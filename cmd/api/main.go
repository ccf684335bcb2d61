package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catalog_api/internal/cache"
	"github.com/GTDGit/catalog_api/internal/config"
	"github.com/GTDGit/catalog_api/internal/database"
	"github.com/GTDGit/catalog_api/internal/events"
	"github.com/GTDGit/catalog_api/internal/handler"
	"github.com/GTDGit/catalog_api/internal/middleware"
	"github.com/GTDGit/catalog_api/internal/repository"
	"github.com/GTDGit/catalog_api/internal/service"
	"github.com/GTDGit/catalog_api/internal/store"
	"github.com/GTDGit/catalog_api/internal/store/memstore"
	"github.com/GTDGit/catalog_api/internal/worker"
)

// main is the entrypoint of the catalog API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Str("store", cfg.StoreDriver).Msg("starting catalog api")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Open the store, running migrations for postgres
	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("store initialization failed")
		fmt.Fprintf(os.Stderr, "store initialization failed: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	// 4. Optional tree cache
	var trees *cache.TreeCache
	if cfg.Redis.Host != "" {
		rdb, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, tree cache disabled")
		} else {
			defer rdb.Close()
			trees = cache.NewTreeCache(rdb, cfg.Catalog.TreeCacheTTL)
		}
	}

	// 5. Event publisher
	publisher := events.NewPublisher(cfg.Kafka)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	// 6. Services and handlers
	catalogSvc := service.NewCatalogService(st, trees, cfg.Catalog)
	handlers := &Handlers{
		Health:  handler.NewHealthHandler(catalogSvc),
		Catalog: handler.NewCatalogHandler(catalogSvc),
		Order:   handler.NewOrderHandler(catalogSvc),
	}

	// 7. Setup router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.MetricsMiddleware())
	setupRoutes(router, handlers)

	// 8. Start workers
	go worker.NewOutboxWorker(st, publisher, cfg.Worker.OutboxInterval, cfg.Worker.OutboxBatchSize).Start(ctx)

	// 9. Start HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 10. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 11. Stop workers, then drain HTTP
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health  *handler.HealthHandler
	Catalog *handler.CatalogHandler
	Order   *handler.OrderHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers) {
	router.GET("/v1/health", handlers.Health.GetHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := router.Group("/v1/admin")
	{
		admin.POST("/products", handlers.Catalog.CreateProduct)
		admin.GET("/products", handlers.Catalog.ListProducts)
		admin.GET("/products/:id", handlers.Catalog.GetProduct)
		admin.PUT("/products/:id", handlers.Catalog.UpdateProduct)
		admin.DELETE("/products/:id", handlers.Catalog.DiscontinueProduct)
		admin.GET("/products/:id/tree", handlers.Catalog.GetProductTree)
		admin.GET("/products/:id/versions", handlers.Catalog.ListVersions)
		admin.GET("/products/:id/history", handlers.Catalog.GetProductHistory)
		admin.POST("/products/:id/components", handlers.Catalog.AddComponent)
		admin.DELETE("/products/:id/components/:componentId", handlers.Catalog.RemoveComponent)
		admin.GET("/skus/:sku", handlers.Catalog.GetProductBySKU)
	}

	orders := router.Group("/v1/orders")
	{
		orders.POST("", handlers.Order.CreateOrder)
		orders.GET("/:id", handlers.Order.GetOrder)
	}
}

// openStore returns the configured store and a function releasing it.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return memstore.New(), func() {}, nil
	}

	db, err := database.Connect(ctx, &cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := database.Migrate(db.DB, cfg.MigrationsPath); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migration failed: %w", err)
	}
	return repository.NewStore(db), func() { db.Close() }, nil
}

func setupLogger(env string) {
	var out io.Writer = os.Stdout
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}
