package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

// HealthCheck reports whether a backing dependency is reachable
type HealthCheck func() error

// NewApp wires every route of the dashboard API. databaseHealth may be nil
// when no database is configured.
func NewApp(ipoHandler *IPOHandler, quoteHandler *QuoteHandler, adminHandler *AdminHandler, performanceHandler *PerformanceHandler,
	databaseHealth HealthCheck) *fiber.App {
	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(cors.New())

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		response := fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		}
		if databaseHealth != nil {
			if err := databaseHealth(); err != nil {
				response["status"] = "degraded"
				response["database"] = err.Error()
				return c.Status(fiber.StatusServiceUnavailable).JSON(response)
			}
			response["database"] = "ok"
		}
		return c.JSON(response)
	})

	// Routes
	api := app.Group("/api/v1")

	// IPO Routes
	api.Get("/ipos", ipoHandler.GetIPOs)
	api.Get("/ipos/:ticker", ipoHandler.GetIPOByTicker)
	api.Get("/sectors", ipoHandler.GetSectors)
	api.Get("/meta", ipoHandler.GetMeta)

	// Quote Routes
	api.Get("/quotes/:ticker", quoteHandler.GetQuote)
	api.Post("/quotes/refresh", quoteHandler.RefreshQuotes)

	// Admin Routes
	admin := api.Group("/admin", adminHandler.RequireToken)
	admin.Post("/reload", adminHandler.ReloadDataset)
	admin.Get("/ingestion-log", adminHandler.GetIngestionLog)

	// Performance Routes
	perf := api.Group("/performance")
	perf.Get("/metrics", performanceHandler.GetPerformanceMetrics)
	perf.Delete("/cache", performanceHandler.ClearCache)
	perf.Post("/cache/warmup", performanceHandler.WarmupCache)

	return app
}
