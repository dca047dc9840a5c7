package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Zerr0-C00L/CineShelf/internal/api"
	"github.com/Zerr0-C00L/CineShelf/internal/auth"
	"github.com/Zerr0-C00L/CineShelf/internal/cache"
	"github.com/Zerr0-C00L/CineShelf/internal/config"
	"github.com/Zerr0-C00L/CineShelf/internal/database"
	"github.com/Zerr0-C00L/CineShelf/internal/services"
	"github.com/Zerr0-C00L/CineShelf/internal/wishlist"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg := config.Load()

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	log.Println("Starting CineShelf API Server...")

	if cfg.TMDBAPIKey == "" && cfg.TMDBAccessToken == "" {
		log.Fatal("TMDB_API_KEY or TMDB_ACCESS_TOKEN must be set")
	}

	// Connect to database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(migrateCtx, db.DB); err != nil {
		cancelMigrate()
		log.Fatalf("Failed to migrate database: %v", err)
	}
	cancelMigrate()
	log.Println("Database connection established")

	// Redis backs the response cache and the wishlist change feed
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	var (
		feed         wishlist.Feed
		cacheManager *cache.Manager
	)
	catalogOpts := []services.Option{
		services.WithLanguage(cfg.Language),
		services.WithAccessToken(cfg.TMDBAccessToken),
		services.WithBaseURL(cfg.TMDBBaseURL),
		services.WithTimeout(cfg.HTTPTimeout),
		services.WithRateLimit(cfg.TMDBRateLimit),
		services.WithLogger(logger.With("component", "tmdb")),
	}
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("Warning: Redis unavailable (%v), running without cache and live wishlist sync", err)
	} else {
		cacheManager = cache.NewManager(rdb, cfg.CacheTTL, logger.With("component", "cache"))
		catalogOpts = append(catalogOpts, services.WithCache(cacheManager))
		feed = wishlist.NewRedisFeed(rdb, logger.With("component", "wishlist_feed"))
		log.Println("✓ Redis connected")
	}
	cancelPing()

	catalog := services.NewTMDBClient(cfg.TMDBAPIKey, catalogOpts...)

	// Initialize stores
	collectionStore := database.NewCollectionStore(db.DB)
	wishlistStore := database.NewWishlistStore(db.DB)
	userStore := database.NewUserStore(db.DB)

	registry := api.NewRegistry(catalog, collectionStore, wishlistStore, feed, cfg.SearchDebounce, logger)
	defer registry.Close()

	tokens := auth.NewTokens(cfg.JWTSecret)
	if cfg.JWTSecret == "" {
		log.Println("Warning: JWT_SECRET not set, sessions will not survive a restart")
	}

	handler := api.NewHandler(registry, catalog, userStore, tokens, db.Health, logger)
	router := api.SetupRoutes(handler, tokens, logger)
	log.Println("✓ REST API enabled at /api/v1")

	// Background jobs
	scheduler := services.NewServiceScheduler(logger.With("component", "scheduler"))
	scheduler.Register(services.ServiceSessionSweep, "Closes sessions idle longer than SESSION_IDLE_MINUTES", time.Minute, true,
		func(ctx context.Context) error {
			if n := registry.Sweep(cfg.SessionIdle); n > 0 {
				logger.Info("idle sessions closed", "count", n, "active", registry.Len())
			}
			return nil
		})
	scheduler.Register(services.ServiceCacheCleanup, "Drops cached catalog responses", 24*time.Hour, cacheManager != nil,
		func(ctx context.Context) error {
			n, err := cacheManager.Invalidate(ctx)
			if err == nil {
				logger.Info("catalog cache cleared", "keys", n)
			}
			return err
		})
	handler.SetJobs(scheduler)

	jobsCtx, stopJobs := context.WithCancel(context.Background())
	jobsDone := make(chan struct{})
	go func() {
		defer close(jobsDone)
		scheduler.Run(jobsCtx)
	}()

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.ServerPort),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// WriteTimeout stays unset: the browse websocket is long-lived
		IdleTimeout: 120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopJobs()
	<-jobsDone

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
