package handlers

import (
	"database/sql"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/fenilmodi00/ipo-scorecard/services"
	"github.com/fenilmodi00/ipo-scorecard/shared"
	"github.com/gofiber/fiber/v2"
)

// HTTPMetricsSource exposes outbound request counters
type HTTPMetricsSource interface {
	GetHTTPMetrics() *shared.HTTPMetrics
}

type PerformanceHandler struct {
	Resolver  *services.QuoteResolver
	Engine    *services.MetricsEngine
	Dashboard *services.DashboardService
	Provider  HTTPMetricsSource
	DB        *sql.DB
}

// NewPerformanceHandler wires the metric sources. provider and db may be nil.
func NewPerformanceHandler(resolver *services.QuoteResolver, engine *services.MetricsEngine, dashboard *services.DashboardService,
	provider HTTPMetricsSource, db *sql.DB) *PerformanceHandler {
	return &PerformanceHandler{
		Resolver:  resolver,
		Engine:    engine,
		Dashboard: dashboard,
		Provider:  provider,
		DB:        db,
	}
}

// GetPerformanceMetrics returns resolver, provider and cache statistics
func (h *PerformanceHandler) GetPerformanceMetrics(c *fiber.Ctx) error {
	metrics := make(map[string]interface{})

	metrics["quote_resolver"] = h.Resolver.GetServiceMetrics().GetSnapshot()
	metrics["metrics_engine"] = h.Engine.GetServiceMetrics().GetSnapshot()
	metrics["cache_stats"] = h.Resolver.CacheStats(c.Context())

	if h.Provider != nil {
		metrics["quote_provider"] = h.Provider.GetHTTPMetrics().GetSnapshot()
	}

	if h.DB != nil {
		dbStats := h.DB.Stats()
		metrics["database_stats"] = map[string]interface{}{
			"open_connections": dbStats.OpenConnections,
			"in_use":           dbStats.InUse,
			"idle":             dbStats.Idle,
			"wait_count":       dbStats.WaitCount,
			"wait_duration_ms": dbStats.WaitDuration.Milliseconds(),
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    metrics,
	})
}

// ClearCache drops every cached quote
func (h *PerformanceHandler) ClearCache(c *fiber.Ctx) error {
	if err := h.Resolver.InvalidateAll(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Cache cleared successfully",
	})
}

// WarmupCache resolves every record of the dataset once
func (h *PerformanceHandler) WarmupCache(c *fiber.Ctx) error {
	start := time.Now()
	view := h.Dashboard.BuildView(c.Context(), models.ViewCriteria{}, services.ResolveOptions{})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Cache warmed up successfully",
		"data": fiber.Map{
			"records":     view.Summary.Total,
			"active":      view.Summary.Active,
			"inactive":    view.Summary.Inactive,
			"unavailable": view.Summary.Unavailable,
			"duration_ms": time.Since(start).Milliseconds(),
		},
	})
}
