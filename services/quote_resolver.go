package services

import (
	"context"
	"errors"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/fenilmodi00/ipo-scorecard/shared"
	"github.com/sirupsen/logrus"
)

// MergerDirectory knows which tickers stopped trading because of a merger
type MergerDirectory interface {
	IsMerged(ticker string) bool
}

// StaticMergerDirectory is a fixed set of merged tickers
type StaticMergerDirectory map[string]struct{}

// NewStaticMergerDirectory builds a directory from a ticker list
func NewStaticMergerDirectory(tickers []string) StaticMergerDirectory {
	directory := make(StaticMergerDirectory, len(tickers))
	for _, ticker := range tickers {
		if key := cacheKey(ticker); key != "" {
			directory[key] = struct{}{}
		}
	}
	return directory
}

// IsMerged implements MergerDirectory
func (d StaticMergerDirectory) IsMerged(ticker string) bool {
	_, ok := d[cacheKey(ticker)]
	return ok
}

// MergerDirectories reports a merger when any member does
type MergerDirectories []MergerDirectory

// IsMerged implements MergerDirectory
func (d MergerDirectories) IsMerged(ticker string) bool {
	for _, directory := range d {
		if directory != nil && directory.IsMerged(ticker) {
			return true
		}
	}
	return false
}

// ResolveOptions tunes one resolution
type ResolveOptions struct {
	// ForceRefresh skips the cache regardless of entry age
	ForceRefresh bool
}

// QuoteResolver maps tickers to their market state, caching results
type QuoteResolver struct {
	provider       QuoteProvider
	cache          QuoteCache
	mergers        MergerDirectory
	ttl            time.Duration
	negativeTTL    time.Duration
	timeout        time.Duration
	now            Clock
	utility        *UtilityService
	serviceMetrics *shared.ServiceMetrics
}

// NewQuoteResolver wires a provider and a cache. mergers may be nil.
func NewQuoteResolver(provider QuoteProvider, cache QuoteCache, mergers MergerDirectory, cacheConfig shared.CacheConfig, timeout time.Duration) *QuoteResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &QuoteResolver{
		provider:       provider,
		cache:          cache,
		mergers:        mergers,
		ttl:            cacheConfig.DefaultTTL,
		negativeTTL:    cacheConfig.NegativeTTL,
		timeout:        timeout,
		now:            time.Now,
		utility:        NewUtilityService(),
		serviceMetrics: shared.NewServiceMetrics("Quote_Resolver"),
	}
}

// WithClock replaces the clock used for fetched_at stamps
func (r *QuoteResolver) WithClock(now Clock) *QuoteResolver {
	r.now = now
	return r
}

// Resolve returns the cached or freshly fetched state of ticker
func (r *QuoteResolver) Resolve(ctx context.Context, ticker string) (models.QuoteResult, error) {
	return r.ResolveWithOptions(ctx, ticker, ResolveOptions{})
}

// ResolveWithOptions is Resolve with a manual refresh switch. Provider
// failures never surface as errors; they produce UNAVAILABLE.
func (r *QuoteResolver) ResolveWithOptions(ctx context.Context, ticker string, opts ResolveOptions) (models.QuoteResult, error) {
	startTime := time.Now()
	normalized := r.utility.NormalizeTicker(ticker)
	if normalized == "" {
		r.serviceMetrics.RecordRequest(false, time.Since(startTime))
		return models.QuoteResult{}, shared.NewServiceError(shared.ErrorCategoryValidation, "EMPTY_TICKER",
			"ticker must not be empty", "QuoteResolver", "Resolve", false, nil)
	}

	if !opts.ForceRefresh {
		if entry, ok := r.cache.Get(ctx, normalized); ok {
			r.serviceMetrics.IncrementCustomCounter("cache_hits")
			r.serviceMetrics.RecordRequest(true, time.Since(startTime))
			return entry.Result, nil
		}
		r.serviceMetrics.IncrementCustomCounter("cache_misses")
	} else {
		r.serviceMetrics.IncrementCustomCounter("forced_refreshes")
	}

	result, ttl := r.fetch(ctx, normalized)

	// A caller that went away says nothing about the provider
	if ctx.Err() == nil {
		if err := r.cache.Set(ctx, result, ttl); err != nil {
			logrus.WithFields(logrus.Fields{
				"component": "QuoteResolver",
				"ticker":    normalized,
			}).WithError(err).Warn("Failed to cache quote")
		}
	}

	r.serviceMetrics.IncrementCustomCounter("status_" + string(result.Status))
	r.serviceMetrics.RecordRequest(result.Status != models.QuoteStatusUnavailable, time.Since(startTime))
	return result, nil
}

func (r *QuoteResolver) fetch(ctx context.Context, ticker string) (models.QuoteResult, time.Duration) {
	logger := logrus.WithFields(logrus.Fields{
		"component": "QuoteResolver",
		"ticker":    ticker,
	})

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.serviceMetrics.IncrementCustomCounter("provider_calls")
	price, err := r.provider.LatestPrice(callCtx, ticker)

	result := models.QuoteResult{Ticker: ticker, FetchedAt: r.now()}

	switch {
	case err == nil && price > 0:
		rounded := RoundTo2(price)
		result.Status = models.QuoteStatusActive
		result.CurrentPrice = &rounded
		return result, r.ttl

	case err == nil:
		logger.WithField("price", price).Warn("Provider returned a non-positive price")
		result.Status = models.QuoteStatusUnavailable
		return result, r.negativeTTL

	case errors.Is(err, ErrSymbolNotFound):
		if r.mergers != nil && r.mergers.IsMerged(ticker) {
			result.Status = models.QuoteStatusMerged
		} else {
			result.Status = models.QuoteStatusDelisted
		}
		logger.WithField("status", result.Status).Debug("Ticker has no trading history")
		return result, r.ttl

	default:
		logger.WithFields(logrus.Fields{
			"timeout":   shared.IsTimeoutError(err),
			"retryable": shared.IsRetryableError(err),
		}).WithError(err).Warn("Quote lookup failed")
		result.Status = models.QuoteStatusUnavailable
		return result, r.negativeTTL
	}
}

// ResolveBatch resolves every ticker in order. It always returns one result
// per input; invalid tickers come back UNAVAILABLE.
func (r *QuoteResolver) ResolveBatch(ctx context.Context, tickers []string, opts ResolveOptions) []models.QuoteResult {
	results := make([]models.QuoteResult, len(tickers))
	for i, ticker := range tickers {
		result, err := r.ResolveWithOptions(ctx, ticker, opts)
		if err != nil {
			result = models.QuoteResult{
				Ticker:    ticker,
				Status:    models.QuoteStatusUnavailable,
				FetchedAt: r.now(),
			}
		}
		results[i] = result
	}
	return results
}

// Invalidate drops the cached quote of one ticker
func (r *QuoteResolver) Invalidate(ctx context.Context, ticker string) error {
	normalized := r.utility.NormalizeTicker(ticker)
	if normalized == "" {
		return shared.NewServiceError(shared.ErrorCategoryValidation, "EMPTY_TICKER",
			"ticker must not be empty", "QuoteResolver", "Invalidate", false, nil)
	}
	return r.cache.Delete(ctx, normalized)
}

// InvalidateAll drops every cached quote
func (r *QuoteResolver) InvalidateAll(ctx context.Context) error {
	logrus.WithField("component", "QuoteResolver").Info("Clearing quote cache")
	return r.cache.Clear(ctx)
}

// CacheStats describes the underlying cache
func (r *QuoteResolver) CacheStats(ctx context.Context) map[string]interface{} {
	stats := r.cache.Stats(ctx)
	stats["ttl"] = r.ttl.String()
	stats["negative_ttl"] = r.negativeTTL.String()
	return stats
}

// GetServiceMetrics returns the resolver counters
func (r *QuoteResolver) GetServiceMetrics() *shared.ServiceMetrics {
	return r.serviceMetrics
}
