package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/fenilmodi00/ipo-scorecard/shared"
	"github.com/sirupsen/logrus"
)

// CalendarSource is the source tag stamped on pending entries
const CalendarSource = "finnhub"

// skippedCalendarStatuses never become pending entries
var skippedCalendarStatuses = map[string]struct{}{
	"withdrawn": {},
	"postponed": {},
}

// CalendarFetcher lists IPO calendar entries between two dates
type CalendarFetcher interface {
	FetchRange(ctx context.Context, from, to time.Time) ([]*models.CalendarEntry, error)
}

// FinnhubCalendarClient reads the Finnhub IPO calendar
type FinnhubCalendarClient struct {
	baseURL     string
	apiKey      string
	chunkDays   int
	client      *http.Client
	rateLimiter *shared.HTTPRequestRateLimiter
	retryPolicy shared.RetryPolicy
	httpMetrics *shared.HTTPMetrics
}

// NewFinnhubCalendarClient creates a calendar client from the ingestion configuration
func NewFinnhubCalendarClient(cfg shared.IngestionConfig, apiKey string) *FinnhubCalendarClient {
	factory := shared.NewHTTPClientFactory(cfg.Calendar.HTTPRequestTimeout)
	httpMetrics := shared.NewHTTPMetrics()

	chunkDays := cfg.ChunkDays
	if chunkDays <= 0 {
		chunkDays = 90
	}

	return &FinnhubCalendarClient{
		baseURL:     strings.TrimRight(cfg.Calendar.BaseURL, "/"),
		apiKey:      apiKey,
		chunkDays:   chunkDays,
		client:      factory.CreateOptimizedHTTPClient(cfg.Calendar.HTTPRequestTimeout),
		rateLimiter: shared.NewHTTPRequestRateLimiter(cfg.Calendar.RequestRateLimit),
		retryPolicy: shared.RetryPolicy{
			MaxRetryAttempts: cfg.Calendar.MaxRetryAttempts,
			BaseBackoff:      cfg.Calendar.RetryBackoff,
			Metrics:          httpMetrics,
		},
		httpMetrics: httpMetrics,
	}
}

// GetHTTPMetrics returns the request counters of the client
func (c *FinnhubCalendarClient) GetHTTPMetrics() *shared.HTTPMetrics {
	return c.httpMetrics
}

// FetchRange walks [from, to] in chunks. A failing chunk is logged and
// skipped; the call only fails when every chunk does.
func (c *FinnhubCalendarClient) FetchRange(ctx context.Context, from, to time.Time) ([]*models.CalendarEntry, error) {
	if c.apiKey == "" {
		return nil, shared.NewServiceError(shared.ErrorCategoryConfiguration, "MISSING_API_KEY",
			"FINNHUB_API_KEY is not set", "FinnhubCalendarClient", "FetchRange", false, nil)
	}
	if to.Before(from) {
		return nil, shared.NewServiceError(shared.ErrorCategoryValidation, "INVALID_DATE_RANGE",
			fmt.Sprintf("range end %s is before start %s", to.Format(models.IPODateLayout), from.Format(models.IPODateLayout)),
			"FinnhubCalendarClient", "FetchRange", false, nil)
	}

	logger := logrus.WithFields(logrus.Fields{
		"component": "FinnhubCalendarClient",
		"from":      from.Format(models.IPODateLayout),
		"to":        to.Format(models.IPODateLayout),
	})

	var (
		entries      []*models.CalendarEntry
		chunks       int
		failedChunks int
		sampleErrors []error
	)

	for current := from; !current.After(to); {
		chunkEnd := current.AddDate(0, 0, c.chunkDays)
		if chunkEnd.After(to) {
			chunkEnd = to
		}
		chunks++

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return entries, err
		}

		chunk, err := c.fetchChunk(ctx, current, chunkEnd)
		if err != nil {
			failedChunks++
			if len(sampleErrors) < 3 {
				sampleErrors = append(sampleErrors, err)
			}
			logger.WithFields(logrus.Fields{
				"chunk_from": current.Format(models.IPODateLayout),
				"chunk_to":   chunkEnd.Format(models.IPODateLayout),
			}).WithError(err).Warn("Calendar chunk failed, skipping")
		} else {
			entries = append(entries, chunk...)
		}

		current = chunkEnd.AddDate(0, 0, 1)
	}

	if failedChunks == chunks {
		return nil, shared.NewServiceError(shared.ErrorCategoryNetwork, "CALENDAR_UNAVAILABLE",
			shared.BuildBatchProcessingErrorSummary(0, failedChunks, sampleErrors),
			"FinnhubCalendarClient", "FetchRange", true, sampleErrors[0])
	}

	logger.WithFields(logrus.Fields{
		"chunks":        chunks,
		"failed_chunks": failedChunks,
		"entries":       len(entries),
	}).Info("Fetched IPO calendar")

	return entries, nil
}

func (c *FinnhubCalendarClient) fetchChunk(ctx context.Context, from, to time.Time) ([]*models.CalendarEntry, error) {
	query := url.Values{}
	query.Set("from", from.Format(models.IPODateLayout))
	query.Set("to", to.Format(models.IPODateLayout))
	query.Set("token", c.apiKey)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/calendar/ipo?"+query.Encode(), nil)
	if err != nil {
		return nil, shared.NewServiceError(shared.ErrorCategoryValidation, "BAD_CALENDAR_REQUEST",
			err.Error(), "FinnhubCalendarClient", "fetchChunk", false, err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := shared.ExecuteHTTPRequestWithPolicy(c.client, request, c.retryPolicy)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, shared.NewServiceError(shared.ErrorCategoryNetwork, "CALENDAR_HTTP_STATUS",
			fmt.Sprintf("calendar returned HTTP %d", response.StatusCode),
			"FinnhubCalendarClient", "fetchChunk", false, nil)
	}

	var payload models.CalendarResponse
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, shared.NewServiceError(shared.ErrorCategoryProcessing, "CALENDAR_DECODE_FAILED",
			"failed to decode calendar response", "FinnhubCalendarClient", "fetchChunk", false, err)
	}
	return payload.IPOCalendar, nil
}

// NormalizeCalendarEntry turns a calendar row into a pending entry. ok is
// false for rows that can never be ingested.
func NormalizeCalendarEntry(entry *models.CalendarEntry, utility *UtilityService) (models.PendingIPO, bool) {
	if entry == nil {
		return models.PendingIPO{}, false
	}

	ticker := utility.NormalizeTicker(entry.Symbol)
	date := strings.TrimSpace(entry.Date)
	if ticker == "" || date == "" {
		return models.PendingIPO{}, false
	}
	if _, err := utility.ParseISODate(date); err != nil {
		return models.PendingIPO{}, false
	}

	status := strings.ToLower(strings.TrimSpace(entry.Status))
	if _, skip := skippedCalendarStatuses[status]; skip {
		return models.PendingIPO{}, false
	}

	return models.PendingIPO{
		Ticker:   ticker,
		Name:     orUnknown(utility.NormalizeTextContent(entry.Name)),
		IPODate:  date,
		IPOPrice: utility.ParsePriceRange(entry.Price),
		Exchange: orUnknown(utility.NormalizeTextContent(entry.Exchange)),
		Sector:   models.UnknownSector,
		Status:   status,
		Source:   CalendarSource,
	}, true
}

func orUnknown(value string) string {
	if value == "" {
		return "Unknown"
	}
	return value
}

// FindMissingIPOs keeps calendar entries whose ticker is not in existing,
// one per ticker, newest listing first
func FindMissingIPOs(entries []*models.CalendarEntry, existing map[string]struct{}) []models.PendingIPO {
	utility := NewUtilityService()
	seen := make(map[string]struct{}, len(entries))
	pending := make([]models.PendingIPO, 0)

	for _, entry := range entries {
		candidate, ok := NormalizeCalendarEntry(entry, utility)
		if !ok {
			continue
		}
		if _, known := existing[candidate.Ticker]; known {
			continue
		}
		if _, dup := seen[candidate.Ticker]; dup {
			continue
		}
		seen[candidate.Ticker] = struct{}{}
		pending = append(pending, candidate)
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].IPODate > pending[j].IPODate
	})
	return pending
}

// ExistingTickers indexes the tickers of records
func ExistingTickers(records []models.IPORecord) map[string]struct{} {
	existing := make(map[string]struct{}, len(records))
	for _, record := range records {
		existing[strings.ToUpper(record.Ticker)] = struct{}{}
	}
	return existing
}
