package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/fenilmodi00/ipo-scorecard/shared"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var numericPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// UtilityService provides ticker normalization, parsing and display formatting
type UtilityService struct {
	serviceMetrics *shared.ServiceMetrics
}

// NewUtilityService creates a new utility service instance
func NewUtilityService() *UtilityService {
	return &UtilityService{
		serviceMetrics: shared.NewServiceMetrics("Utility_Service"),
	}
}

// NormalizeTicker trims and upper-cases a ticker symbol
func (s *UtilityService) NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// NormalizeTextContent collapses whitespace runs into single spaces
func (s *UtilityService) NormalizeTextContent(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ParseISODate parses a YYYY-MM-DD calendar date
func (s *UtilityService) ParseISODate(dateText string) (time.Time, error) {
	return time.Parse(models.IPODateLayout, strings.TrimSpace(dateText))
}

// ParsePriceRange parses calendar prices like "31.00-34.00", "$17" or "".
// Ranges resolve to their upper bound; unparsable input yields 0.
func (s *UtilityService) ParsePriceRange(priceText string) float64 {
	startTime := time.Now()
	cleanText := strings.ReplaceAll(strings.TrimSpace(priceText), ",", "")
	cleanText = strings.ReplaceAll(cleanText, "$", "")

	if cleanText == "" {
		s.recordOperation("parse_price_range", false, time.Since(startTime))
		return 0
	}

	parts := strings.Split(cleanText, "-")
	candidate := strings.TrimSpace(parts[len(parts)-1])
	if match := numericPattern.FindString(candidate); match != "" {
		candidate = match
	}

	price, err := strconv.ParseFloat(candidate, 64)
	if err != nil || price < 0 {
		logrus.WithFields(logrus.Fields{
			"component":  "UtilityService",
			"price_text": priceText,
		}).Debug("Unparsable price range")
		s.recordOperation("parse_price_range", false, time.Since(startTime))
		return 0
	}

	s.recordOperation("parse_price_range", true, time.Since(startTime))
	return RoundTo2(price)
}

// RoundTo2 rounds half away from zero to two decimal places
func RoundTo2(value float64) float64 {
	rounded, _ := decimal.NewFromFloat(value).Round(2).Float64()
	return rounded
}

// FormatReturn renders a return percentage as "+12.34%", "-41.18%" or "N/A"
func (s *UtilityService) FormatReturn(returnPct *float64) string {
	if returnPct == nil {
		return "N/A"
	}
	value := decimal.NewFromFloat(*returnPct).Round(2)
	if value.IsNegative() {
		return value.StringFixed(2) + "%"
	}
	return "+" + value.StringFixed(2) + "%"
}

// FormatPrice renders a USD price like "$1,234.50"
func (s *UtilityService) FormatPrice(price float64) string {
	cents := decimal.NewFromFloat(price).Shift(2).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}

// FormatOptionalPrice is FormatPrice for nullable prices
func (s *UtilityService) FormatOptionalPrice(price *float64) string {
	if price == nil {
		return "N/A"
	}
	return s.FormatPrice(*price)
}

// GetServiceMetrics returns the current service metrics
func (s *UtilityService) GetServiceMetrics() *shared.ServiceMetrics {
	return s.serviceMetrics
}

func (s *UtilityService) recordOperation(operationName string, success bool, processingTime time.Duration) {
	if s.serviceMetrics != nil {
		s.serviceMetrics.RecordRequest(success, processingTime)
		s.serviceMetrics.IncrementCustomCounter(operationName)
	}
}
