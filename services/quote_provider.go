package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/fenilmodi00/ipo-scorecard/shared"
	"github.com/sirupsen/logrus"
)

// ErrSymbolNotFound means the provider has no trading history for a ticker
var ErrSymbolNotFound = errors.New("symbol not found")

// QuoteProvider returns the latest traded price of a ticker
type QuoteProvider interface {
	LatestPrice(ctx context.Context, ticker string) (float64, error)
}

// HistoryProvider finds the first trading session of a new listing
type HistoryProvider interface {
	FirstTrade(ctx context.Context, ticker string, listedOn time.Time, window time.Duration) (models.FirstTrade, error)
}

// latestPriceRanges are tried in order until one has a close
var latestPriceRanges = []string{"1d", "5d", "1mo"}

// chartResponse is the subset of the Yahoo chart payload we read
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		Currency           string  `json:"currency"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open  []*float64 `json:"open"`
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// session is one daily bar with usable prices
type session struct {
	date  time.Time
	open  float64
	close float64
}

func (r chartResult) sessions() []session {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	quote := r.Indicators.Quote[0]

	var sessions []session
	for i, ts := range r.Timestamp {
		var s session
		s.date = time.Unix(ts, 0).UTC()
		if i < len(quote.Open) && quote.Open[i] != nil {
			s.open = *quote.Open[i]
		}
		if i < len(quote.Close) && quote.Close[i] != nil {
			s.close = *quote.Close[i]
		}
		if s.open > 0 || s.close > 0 {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

// YahooQuoteProvider reads prices from the Yahoo Finance chart API
type YahooQuoteProvider struct {
	baseURL     string
	client      *http.Client
	retryPolicy shared.RetryPolicy
	httpMetrics *shared.HTTPMetrics
	factory     *shared.HTTPClientFactory
}

// NewYahooQuoteProvider creates a provider from the quote service configuration
func NewYahooQuoteProvider(cfg shared.ServiceConfig) *YahooQuoteProvider {
	factory := shared.NewHTTPClientFactory(cfg.HTTPRequestTimeout)
	httpMetrics := shared.NewHTTPMetrics()

	return &YahooQuoteProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  factory.CreateOptimizedHTTPClient(cfg.HTTPRequestTimeout),
		retryPolicy: shared.RetryPolicy{
			MaxRetryAttempts: cfg.MaxRetryAttempts,
			BaseBackoff:      cfg.RetryBackoff,
			Metrics:          httpMetrics,
		},
		httpMetrics: httpMetrics,
		factory:     factory,
	}
}

// GetHTTPMetrics returns the request counters of the provider
func (p *YahooQuoteProvider) GetHTTPMetrics() *shared.HTTPMetrics {
	return p.httpMetrics
}

// Close logs the request summary and releases idle connections
func (p *YahooQuoteProvider) Close() {
	p.httpMetrics.LogHTTPSummary()
	p.factory.CleanupAllClients()
}

// LatestPrice returns the most recent close, rounded to cents
func (p *YahooQuoteProvider) LatestPrice(ctx context.Context, ticker string) (float64, error) {
	logger := logrus.WithFields(logrus.Fields{
		"component": "YahooQuoteProvider",
		"ticker":    ticker,
	})

	for _, chartRange := range latestPriceRanges {
		query := url.Values{}
		query.Set("range", chartRange)
		query.Set("interval", "1d")

		result, err := p.fetchChart(ctx, ticker, query)
		if err != nil {
			return 0, err
		}

		sessions := result.sessions()
		for i := len(sessions) - 1; i >= 0; i-- {
			if sessions[i].close > 0 {
				logger.WithFields(logrus.Fields{
					"range": chartRange,
					"close": sessions[i].close,
				}).Debug("Resolved latest close")
				return RoundTo2(sessions[i].close), nil
			}
		}

		logger.WithField("range", chartRange).Debug("No closes in range, widening")
	}

	return 0, fmt.Errorf("%w: %s has no trading history", ErrSymbolNotFound, ticker)
}

// FirstTrade looks for the first session on or after listedOn. It tries the
// listing window, then the listing month, then the whole history.
func (p *YahooQuoteProvider) FirstTrade(ctx context.Context, ticker string, listedOn time.Time, window time.Duration) (models.FirstTrade, error) {
	monthStart := time.Date(listedOn.Year(), listedOn.Month(), 1, 0, 0, 0, 0, time.UTC)

	strategies := []struct {
		from, to   time.Time
		allRange   bool
		openSource string
		closeOnly  bool
	}{
		{from: listedOn, to: listedOn.Add(window), openSource: "open_price"},
		{from: monthStart, to: monthStart.AddDate(0, 1, 0), closeOnly: true},
		{allRange: true, openSource: "first_available_open"},
	}
	closeSources := []string{"close_price", "month_close_price", "first_available_close"}

	for idx, strategy := range strategies {
		query := url.Values{}
		query.Set("interval", "1d")
		if strategy.allRange {
			query.Set("range", "max")
		} else {
			query.Set("period1", strconv.FormatInt(strategy.from.Unix(), 10))
			query.Set("period2", strconv.FormatInt(strategy.to.Unix(), 10))
		}

		result, err := p.fetchChart(ctx, ticker, query)
		if err != nil {
			if errors.Is(err, ErrSymbolNotFound) {
				continue
			}
			return models.FirstTrade{}, err
		}

		sessions := result.sessions()
		if len(sessions) == 0 {
			continue
		}
		first := sessions[0]
		trade := models.FirstTrade{Ticker: ticker, Date: first.date.Format(models.IPODateLayout)}

		if !strategy.closeOnly && first.open > 0 {
			trade.Price = RoundTo2(first.open)
			trade.Source = strategy.openSource
			return trade, nil
		}
		if first.close > 0 {
			trade.Price = RoundTo2(first.close)
			trade.Source = closeSources[idx]
			return trade, nil
		}
	}

	return models.FirstTrade{}, fmt.Errorf("%w: no price data available for %s", ErrSymbolNotFound, ticker)
}

func (p *YahooQuoteProvider) fetchChart(ctx context.Context, ticker string, query url.Values) (chartResult, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", p.baseURL, url.PathEscape(ticker), query.Encode())

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return chartResult{}, shared.NewServiceError(shared.ErrorCategoryValidation, "BAD_QUOTE_REQUEST",
			err.Error(), "YahooQuoteProvider", "fetchChart", false, err)
	}
	shared.SetBrowserLikeHeaders(request, "application/json")

	response, err := shared.ExecuteHTTPRequestWithPolicy(p.client, request, p.retryPolicy)
	if err != nil {
		return chartResult{}, err
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return chartResult{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, ticker)
	}
	if response.StatusCode != http.StatusOK {
		return chartResult{}, shared.NewServiceError(shared.ErrorCategoryNetwork, "QUOTE_HTTP_STATUS",
			fmt.Sprintf("quote provider returned HTTP %d for %s", response.StatusCode, ticker),
			"YahooQuoteProvider", "fetchChart", false, nil)
	}

	var payload chartResponse
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return chartResult{}, shared.NewServiceError(shared.ErrorCategoryProcessing, "QUOTE_DECODE_FAILED",
			fmt.Sprintf("failed to decode chart for %s", ticker), "YahooQuoteProvider", "fetchChart", true, err)
	}

	if payload.Chart.Error != nil {
		if strings.EqualFold(payload.Chart.Error.Code, "Not Found") {
			return chartResult{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, payload.Chart.Error.Description)
		}
		return chartResult{}, shared.NewServiceError(shared.ErrorCategoryNetwork, "QUOTE_PROVIDER_ERROR",
			payload.Chart.Error.Description, "YahooQuoteProvider", "fetchChart", true, nil)
	}
	if len(payload.Chart.Result) == 0 {
		return chartResult{}, nil
	}
	return payload.Chart.Result[0], nil
}
