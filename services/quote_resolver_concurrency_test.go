package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run with -race: sessions refreshing the same tickers must never see a
// quote that belongs to another ticker.
func TestResolveConcurrentSessions(t *testing.T) {
	provider := newStubProvider().reply("RDDT", 20, nil).reply("ACME", 15, nil)
	clock := newFakeClock()
	resolver := newTestResolver(provider, clock, nil)
	engine := NewMetricsEngine(resolver)
	expected := map[string]float64{"RDDT": 20, "ACME": 15}

	const sessions = 16
	var wg sync.WaitGroup
	for session := 0; session < sessions; session++ {
		wg.Add(1)
		go func(session int) {
			defer wg.Done()
			ctx := context.Background()
			for round := 0; round < 20; round++ {
				opts := ResolveOptions{ForceRefresh: (session+round)%3 == 0}
				for ticker, price := range expected {
					result, err := resolver.ResolveWithOptions(ctx, ticker, opts)
					if !assert.NoError(t, err) {
						return
					}
					assert.Equal(t, ticker, result.Ticker)
					assert.Equal(t, models.QuoteStatusActive, result.Status)
					if assert.NotNil(t, result.CurrentPrice) {
						assert.Equal(t, price, *result.CurrentPrice)
					}
				}

				enriched := engine.Enrich(ctx, sampleRecords(), opts)
				summary := engine.Aggregate(enriched)
				assert.Equal(t, 2, summary.Total)
				assert.Equal(t, 2, summary.Active)

				if session == 0 && round%5 == 0 {
					clock.Advance(2 * time.Minute)
				}
				if session == 1 && round%7 == 0 {
					assert.NoError(t, resolver.InvalidateAll(ctx))
				}
			}
		}(session)
	}
	wg.Wait()

	// Double fetches are accepted
	assert.GreaterOrEqual(t, provider.callCount("RDDT"), 1)
	assert.GreaterOrEqual(t, provider.callCount("ACME"), 1)

	for ticker, price := range expected {
		result, err := resolver.Resolve(context.Background(), ticker)
		require.NoError(t, err)
		assert.Equal(t, price, *result.CurrentPrice)
	}
}

func TestMemoryQuoteCacheConcurrentAccess(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryQuoteCacheWithClock(8, clock.Now)

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			ctx := context.Background()
			for i := 0; i < 200; i++ {
				ticker := fmt.Sprintf("T%d", (worker+i)%12)
				price := float64((worker+i)%12 + 1)
				assert.NoError(t, cache.Set(ctx, models.QuoteResult{Ticker: ticker, Status: models.QuoteStatusActive, CurrentPrice: &price}, time.Minute))

				if entry, ok := cache.Get(ctx, ticker); ok {
					assert.Equal(t, ticker, entry.Result.Ticker)
					if assert.NotNil(t, entry.Result.CurrentPrice) {
						assert.Equal(t, fmt.Sprintf("T%d", int(*entry.Result.CurrentPrice)-1), ticker)
					}
				}
				if i%50 == 0 {
					cache.PurgeExpired()
					_ = cache.Stats(ctx)
				}
			}
		}(worker)
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Size(context.Background()), 8)
}
