package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/config"
	"github.com/fenilmodi00/ipo-scorecard/database"
	"github.com/fenilmodi00/ipo-scorecard/handlers"
	"github.com/fenilmodi00/ipo-scorecard/jobs"
	"github.com/fenilmodi00/ipo-scorecard/services"
	"github.com/fenilmodi00/ipo-scorecard/shared"
	"github.com/sirupsen/logrus"
)

const (
	cacheCleanupInterval = 10 * time.Minute
	shutdownTimeout      = 10 * time.Second
)

func main() {
	// Load config
	cfg := config.LoadConfig()
	shared.ConfigureLogging(cfg.Unified.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load the backing file; an invalid file never serves
	store, err := services.LoadRecordStore(cfg.DataFile, cfg.LoadPolicy)
	if err != nil {
		logrus.Fatalf("Failed to load IPO records: %v", err)
	}

	// Quote cache: Redis when configured, in-memory otherwise
	var quoteCache services.QuoteCache
	var cleanupJob *jobs.CacheCleanupJob
	if cfg.RedisURL != "" {
		redisCache, err := services.NewRedisQuoteCacheFromURL(ctx, cfg.RedisURL)
		if err != nil {
			logrus.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()
		quoteCache = redisCache
	} else {
		memoryCache := services.NewMemoryQuoteCache(cfg.Unified.Cache.MaxSize)
		cleanupJob = jobs.NewCacheCleanupJob(memoryCache)
		quoteCache = memoryCache
	}

	mergers := services.MergerDirectories{
		store,
		services.NewStaticMergerDirectory(cfg.MergedTickers),
	}

	provider := services.NewYahooQuoteProvider(cfg.Unified.Quote)
	defer provider.Close()
	resolver := services.NewQuoteResolver(provider, quoteCache, mergers, cfg.Unified.Cache, cfg.Unified.Quote.HTTPRequestTimeout)
	engine := services.NewMetricsEngine(resolver)
	dashboard := services.NewDashboardService(store, engine)

	// The audit log is optional
	var db *sql.DB
	var auditLog handlers.IngestionLogReader
	var databaseHealth handlers.HealthCheck
	if cfg.DatabaseURL != "" {
		if err := database.ConnectWithConfig(cfg.DatabaseURL, &cfg.Unified.Database); err != nil {
			logrus.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		if err := database.Migrate(""); err != nil {
			logrus.Warnf("Migration warning: %v", err)
		}
		if err := database.ValidateSchema(ctx, database.DB); err != nil {
			logrus.Fatalf("Database schema invalid: %v", err)
		}
		db = database.DB
		auditLog = database.NewIngestionLogRepository(db)
		databaseHealth = database.HealthCheck
	}

	logrus.WithFields(logrus.Fields{
		"records":      len(store.Records()),
		"policy":       cfg.LoadPolicy,
		"quote_ttl":    cfg.Unified.Cache.DefaultTTL,
		"negative_ttl": cfg.Unified.Cache.NegativeTTL,
		"redis":        cfg.RedisURL != "",
		"database":     db != nil,
	}).Info("IPO scorecard services initialized")

	if cleanupJob != nil {
		cleanupJob.Start(ctx, cacheCleanupInterval)
	}

	// Initialize handlers
	ipoHandler := handlers.NewIPOHandler(dashboard)
	quoteHandler := handlers.NewQuoteHandler(resolver)
	adminHandler := handlers.NewAdminHandler(dashboard, auditLog, cfg.AdminToken)
	performanceHandler := handlers.NewPerformanceHandler(resolver, engine, dashboard, provider, db)

	app := handlers.NewApp(ipoHandler, quoteHandler, adminHandler, performanceHandler, databaseHealth)

	// Start server
	go func() {
		logrus.Infof("Server starting on port %s", cfg.ServerPort)
		if err := app.Listen(":" + cfg.ServerPort); err != nil {
			logrus.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down server")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logrus.WithError(err).Warn("Server shutdown incomplete")
	}

	resolver.GetServiceMetrics().LogSummary()
	engine.GetServiceMetrics().LogSummary()
}
