package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/plazahq/plaza-server/internal/api"
	"github.com/plazahq/plaza-server/internal/auth"
	"github.com/plazahq/plaza-server/internal/cache"
	"github.com/plazahq/plaza-server/internal/config"
	"github.com/plazahq/plaza-server/internal/db"
	"github.com/plazahq/plaza-server/internal/observability"
	"github.com/plazahq/plaza-server/internal/persistence"
	"github.com/plazahq/plaza-server/internal/rooms"
	"github.com/plazahq/plaza-server/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	otelCleanup, err := observability.InitOpenTelemetry("plaza-server", "1.0.0")
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}

	logger := utils.NewLogger(cfg.LogLevel)
	ctx := context.Background()

	tokenMgr, err := auth.NewTokenManager(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize token manager: %v", err)
	}

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database: %v", err)
	}

	// Redis is optional; without it presence and HTTP rate limiting are
	// disabled.
	var redisCache *cache.Cache
	if cfg.RedisURL != "" {
		redisCache, err = cache.New(cfg.RedisURL)
		if err != nil {
			logger.Fatal(ctx, "Failed to initialize cache: %v", err)
		}
	}

	lastSeenWriter := persistence.NewLastSeenWriter(database, logger)
	lastSeenWriter.Start(ctx)

	registry := rooms.NewRegistry(database, logger, rooms.RegistryOptions{
		WalkSpeed:     cfg.WalkSpeed,
		HistoryLimit:  cfg.HistoryLimit,
		MessageMaxLen: cfg.MessageMaxLen,
		CanonicalSlug: cfg.CanonicalSlug,
	})
	if err := registry.EnsureCanonical(ctx); err != nil {
		logger.Fatal(ctx, "Failed to ensure canonical room: %v", err)
	}

	clientDeps := rooms.ClientDeps{
		Registry: registry,
		Tokens:   tokenMgr,
		Store:    database,
		LastSeen: lastSeenWriter,
		Log:      logger,
	}
	if redisCache != nil {
		clientDeps.Presence = redisCache
	}

	var redisClient *redis.Client
	if redisCache != nil {
		redisClient = redisCache.GetClient()
	}
	router := api.NewRouter(database, registry, clientDeps, redisClient, cfg, logger)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info(ctx, "Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "Server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	gracefulShutdown(ctx, logger, server, database, redisCache, registry, lastSeenWriter, otelCleanup)
	logger.Info(ctx, "Application stopped.")
}

// gracefulShutdown handles the ordered shutdown of all components
func gracefulShutdown(ctx context.Context, logger *utils.Logger, server *http.Server, database *db.Database, redisCache *cache.Cache, registry *rooms.Registry, lastSeenWriter *persistence.LastSeenWriter, otelCleanup func(context.Context) error) {
	logger.Info(ctx, "Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error: %v", err)
	} else {
		logger.Info(ctx, "HTTP server stopped.")
	}

	registry.Stop()
	logger.Info(ctx, "Room registry stopped.")

	lastSeenWriter.Stop()
	logger.Info(ctx, "Last-seen writer stopped.")

	if err := database.Close(); err != nil {
		logger.Error(ctx, "Database close error: %v", err)
	} else {
		logger.Info(ctx, "Database connection closed.")
	}

	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			logger.Error(ctx, "Redis cache close error: %v", err)
		} else {
			logger.Info(ctx, "Redis cache connection closed.")
		}
	}

	if otelCleanup != nil {
		if err := otelCleanup(shutdownCtx); err != nil {
			logger.Error(ctx, "OpenTelemetry shutdown error: %v", err)
		} else {
			logger.Info(ctx, "OpenTelemetry shut down.")
		}
	}

	logger.Info(ctx, "Graceful shutdown complete.")
}
