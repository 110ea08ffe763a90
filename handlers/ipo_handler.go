package handlers

import (
	"strconv"
	"strings"

	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/fenilmodi00/ipo-scorecard/services"
	"github.com/gofiber/fiber/v2"
)

type IPOHandler struct {
	Dashboard *services.DashboardService
}

func NewIPOHandler(dashboard *services.DashboardService) *IPOHandler {
	return &IPOHandler{Dashboard: dashboard}
}

// GetIPOs answers one dashboard query. q switches to search mode; year,
// month and sector filter otherwise.
func (h *IPOHandler) GetIPOs(c *fiber.Ctx) error {
	criteria, err := parseViewCriteria(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	view := h.Dashboard.BuildView(c.Context(), criteria, refreshOption(c))
	return c.JSON(fiber.Map{
		"success": true,
		"data":    view,
	})
}

func (h *IPOHandler) GetIPOByTicker(c *fiber.Ctx) error {
	ticker := c.Params("ticker")
	record := h.Dashboard.GetRecord(c.Context(), ticker, refreshOption(c))
	if record == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "IPO not found",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    record,
	})
}

func (h *IPOHandler) GetSectors(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.Dashboard.SectorOptions(),
	})
}

func (h *IPOHandler) GetMeta(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.Dashboard.Metadata(),
	})
}

func refreshOption(c *fiber.Ctx) services.ResolveOptions {
	return services.ResolveOptions{ForceRefresh: c.QueryBool("refresh", false)}
}

// parseViewCriteria reads q, year, month and sector. month=0 and the
// "All Sectors" entry mean no filter.
func parseViewCriteria(c *fiber.Ctx) (models.ViewCriteria, error) {
	criteria := models.ViewCriteria{Query: c.Query("q")}

	if raw := strings.TrimSpace(c.Query("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil || year <= 0 {
			return criteria, fiber.NewError(fiber.StatusBadRequest, "year must be a positive integer")
		}
		criteria.Year = &year
	}

	if raw := strings.TrimSpace(c.Query("month")); raw != "" {
		month, err := strconv.Atoi(raw)
		if err != nil || month < 0 || month > 12 {
			return criteria, fiber.NewError(fiber.StatusBadRequest, "month must be between 0 and 12")
		}
		if month != 0 {
			criteria.Month = &month
		}
	}

	if sector := strings.TrimSpace(c.Query("sector")); sector != "" && sector != services.AllSectorsLabel {
		criteria.Sector = &sector
	}

	return criteria, nil
}
