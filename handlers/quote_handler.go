package handlers

import (
	"strings"

	"github.com/fenilmodi00/ipo-scorecard/services"
	"github.com/fenilmodi00/ipo-scorecard/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type QuoteHandler struct {
	Resolver *services.QuoteResolver
}

func NewQuoteHandler(resolver *services.QuoteResolver) *QuoteHandler {
	return &QuoteHandler{Resolver: resolver}
}

func (h *QuoteHandler) GetQuote(c *fiber.Ctx) error {
	result, err := h.Resolver.ResolveWithOptions(c.Context(), c.Params("ticker"), refreshOption(c))
	if err != nil {
		status := fiber.StatusInternalServerError
		if shared.HasCategory(err, shared.ErrorCategoryValidation) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

// RefreshQuotes drops cached quotes so the next read refetches. Without a
// ticker query the whole cache is cleared.
func (h *QuoteHandler) RefreshQuotes(c *fiber.Ctx) error {
	ticker := strings.TrimSpace(c.Query("ticker"))

	var err error
	if ticker == "" {
		err = h.Resolver.InvalidateAll(c.Context())
	} else {
		err = h.Resolver.Invalidate(c.Context(), ticker)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"component": "QuoteHandler",
			"ticker":    ticker,
		}).WithError(err).Error("Quote refresh failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	scope := "all"
	if ticker != "" {
		scope = strings.ToUpper(ticker)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Quote cache invalidated",
		"data": fiber.Map{
			"scope": scope,
		},
	})
}
