package services

import (
	"context"
	"sort"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/fenilmodi00/ipo-scorecard/shared"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var hundred = decimal.NewFromInt(100)

// QuoteSource resolves the market state of one ticker
type QuoteSource interface {
	ResolveWithOptions(ctx context.Context, ticker string, opts ResolveOptions) (models.QuoteResult, error)
}

// MetricsEngine annotates records with quotes and aggregates the result
type MetricsEngine struct {
	quotes         QuoteSource
	utility        *UtilityService
	serviceMetrics *shared.ServiceMetrics
}

// NewMetricsEngine creates an engine backed by a quote source
func NewMetricsEngine(quotes QuoteSource) *MetricsEngine {
	return &MetricsEngine{
		quotes:         quotes,
		utility:        NewUtilityService(),
		serviceMetrics: shared.NewServiceMetrics("Metrics_Engine"),
	}
}

// ComputeReturnPct returns (current - ipo) / ipo * 100 rounded to two
// places, or nil when the offer price is unknown.
func ComputeReturnPct(ipoPrice, currentPrice float64) *float64 {
	if ipoPrice <= 0 {
		return nil
	}
	ipo := decimal.NewFromFloat(ipoPrice)
	change := decimal.NewFromFloat(currentPrice).Sub(ipo)
	pct, _ := change.Div(ipo).Mul(hundred).Round(2).Float64()
	return &pct
}

// Enrich resolves each distinct ticker once and annotates every record.
// Output order matches input order.
func (e *MetricsEngine) Enrich(ctx context.Context, records []models.IPORecord, opts ResolveOptions) []models.EnrichedRecord {
	startTime := time.Now()
	quotes := make(map[string]models.QuoteResult, len(records))
	enriched := make([]models.EnrichedRecord, 0, len(records))

	for _, record := range records {
		key := e.utility.NormalizeTicker(record.Ticker)
		quote, seen := quotes[key]
		if !seen {
			var err error
			quote, err = e.quotes.ResolveWithOptions(ctx, record.Ticker, opts)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"component": "MetricsEngine",
					"ticker":    record.Ticker,
				}).WithError(err).Warn("Quote resolution failed, marking unavailable")
				quote = models.QuoteResult{Ticker: record.Ticker, Status: models.QuoteStatusUnavailable, FetchedAt: time.Now()}
			}
			quotes[key] = quote
		}
		enriched = append(enriched, e.EnrichRecord(record, quote))
	}

	e.serviceMetrics.RecordRequest(true, time.Since(startTime))
	e.serviceMetrics.SetCustomMetric("last_enriched_records", len(enriched))
	e.serviceMetrics.SetCustomMetric("last_distinct_tickers", len(quotes))
	return enriched
}

// EnrichRecord combines one record with its quote
func (e *MetricsEngine) EnrichRecord(record models.IPORecord, quote models.QuoteResult) models.EnrichedRecord {
	enriched := models.EnrichedRecord{
		IPORecord: record,
		Status:    quote.Status,
	}
	if enriched.Status == "" {
		enriched.Status = models.QuoteStatusUnavailable
	}

	if enriched.Status == models.QuoteStatusActive && quote.CurrentPrice != nil {
		price := *quote.CurrentPrice
		enriched.CurrentPrice = &price
		enriched.ReturnPct = ComputeReturnPct(record.IPOPrice, price)
	}

	enriched.StatusLabel = enriched.Status.Label()
	enriched.IPOPriceDisplay = e.utility.FormatPrice(record.IPOPrice)
	enriched.CurrentPriceDisplay = e.utility.FormatOptionalPrice(enriched.CurrentPrice)
	enriched.ReturnDisplay = e.utility.FormatReturn(enriched.ReturnPct)
	return enriched
}

// Aggregate summarizes enriched records. Records without a return still
// count towards the totals.
func (e *MetricsEngine) Aggregate(enriched []models.EnrichedRecord) models.Summary {
	summary := models.Summary{Total: len(enriched)}

	sum := decimal.Zero
	withReturn := 0

	for i := range enriched {
		record := enriched[i]
		switch {
		case record.Status == models.QuoteStatusActive:
			summary.Active++
		case record.Status.IsInactive():
			summary.Inactive++
		default:
			summary.Unavailable++
		}

		if record.ReturnPct == nil {
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(*record.ReturnPct))
		withReturn++

		if summary.TopPerformer == nil || *record.ReturnPct > *summary.TopPerformer.ReturnPct {
			top := record
			summary.TopPerformer = &top
		}
	}

	if withReturn > 0 {
		average, _ := sum.Div(decimal.NewFromInt(int64(withReturn))).Round(2).Float64()
		summary.AverageReturnPct = &average
	}

	return summary
}

// SectorBreakdown counts records per sector, largest first
func (e *MetricsEngine) SectorBreakdown(enriched []models.EnrichedRecord) []models.SectorCount {
	counts := make(map[string]int)
	for _, record := range enriched {
		counts[record.Sector]++
	}

	breakdown := make([]models.SectorCount, 0, len(counts))
	for sector, count := range counts {
		breakdown = append(breakdown, models.SectorCount{Sector: sector, Count: count})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Count != breakdown[j].Count {
			return breakdown[i].Count > breakdown[j].Count
		}
		return breakdown[i].Sector < breakdown[j].Sector
	})
	return breakdown
}

// PriceComparison lists offer and current price of records that trade and
// have a known offer price
func (e *MetricsEngine) PriceComparison(enriched []models.EnrichedRecord) []models.PriceComparison {
	rows := make([]models.PriceComparison, 0, len(enriched))
	for _, record := range enriched {
		if record.Status != models.QuoteStatusActive || record.CurrentPrice == nil || !record.HasKnownPrice() {
			continue
		}
		rows = append(rows, models.PriceComparison{
			Ticker:       record.Ticker,
			IPOPrice:     record.IPOPrice,
			CurrentPrice: *record.CurrentPrice,
		})
	}
	return rows
}

// GetServiceMetrics returns the engine counters
func (e *MetricsEngine) GetServiceMetrics() *shared.ServiceMetrics {
	return e.serviceMetrics
}
