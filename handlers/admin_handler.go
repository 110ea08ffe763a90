package handlers

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/fenilmodi00/ipo-scorecard/services"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// IngestionLogReader lists recent ingestion outcomes
type IngestionLogReader interface {
	Recent(ctx context.Context, limit int) ([]models.IngestionLogEntry, error)
}

type AdminHandler struct {
	Dashboard *services.DashboardService
	AuditLog  IngestionLogReader
	Token     string
}

// NewAdminHandler creates the admin routes. auditLog may be nil when no
// database is configured; an empty token leaves the routes open.
func NewAdminHandler(dashboard *services.DashboardService, auditLog IngestionLogReader, token string) *AdminHandler {
	return &AdminHandler{
		Dashboard: dashboard,
		AuditLog:  auditLog,
		Token:     token,
	}
}

// RequireToken checks X-Admin-Token or a bearer Authorization header
func (h *AdminHandler) RequireToken(c *fiber.Ctx) error {
	if h.Token == "" {
		return c.Next()
	}

	supplied := c.Get("X-Admin-Token")
	if supplied == "" {
		supplied = strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	}
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(h.Token)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid admin token",
		})
	}
	return c.Next()
}

// ReloadDataset re-reads the backing file. The previous snapshot stays in
// service when the file is invalid.
func (h *AdminHandler) ReloadDataset(c *fiber.Ctx) error {
	logrus.Info("Dataset reload triggered via admin endpoint")

	if err := h.Dashboard.Reload(); err != nil {
		logrus.WithError(err).Error("Dataset reload failed")
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Dataset reloaded",
		"data":    h.Dashboard.Metadata(),
	})
}

func (h *AdminHandler) GetIngestionLog(c *fiber.Ctx) error {
	if h.AuditLog == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"error":   "Ingestion log requires DATABASE_URL",
		})
	}

	entries, err := h.AuditLog.Recent(c.Context(), c.QueryInt("limit", 50))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    entries,
		"count":   len(entries),
	})
}
