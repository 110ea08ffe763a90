package services

import (
	"context"
	"sync"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/fenilmodi00/ipo-scorecard/shared"
)

func sampleRecords() []models.IPORecord {
	return []models.IPORecord{
		{Ticker: "RDDT", Name: "Reddit, Inc.", IPODate: "2024-03-21", IPOPrice: 34.0, Exchange: "NYSE", Sector: "Tech"},
		{Ticker: "ACME", Name: "Acme Corp", IPODate: "2023-01-01", IPOPrice: 10.0, Exchange: "NASDAQ", Sector: "Industrial"},
	}
}

// fakeClock is a manually advanced clock
type fakeClock struct {
	mutex sync.Mutex
	now   time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

type providerReply struct {
	price float64
	err   error
}

// stubProvider answers LatestPrice from a table and counts calls per ticker
type stubProvider struct {
	mutex   sync.Mutex
	replies map[string]providerReply
	calls   map[string]int
	block   bool
}

func newStubProvider() *stubProvider {
	return &stubProvider{replies: map[string]providerReply{}, calls: map[string]int{}}
}

func (p *stubProvider) reply(ticker string, price float64, err error) *stubProvider {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.replies[ticker] = providerReply{price: price, err: err}
	return p
}

func (p *stubProvider) callCount(ticker string) int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.calls[ticker]
}

func (p *stubProvider) LatestPrice(ctx context.Context, ticker string) (float64, error) {
	p.mutex.Lock()
	p.calls[ticker]++
	reply, ok := p.replies[ticker]
	block := p.block
	p.mutex.Unlock()

	if block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if !ok {
		return 0, ErrSymbolNotFound
	}
	return reply.price, reply.err
}

// noopCache never stores anything
type noopCache struct{}

func (noopCache) Get(context.Context, string) (models.CachedQuote, bool) {
	return models.CachedQuote{}, false
}

func (noopCache) Set(context.Context, models.QuoteResult, time.Duration) error { return nil }

func (noopCache) Delete(context.Context, string) error { return nil }

func (noopCache) Clear(context.Context) error { return nil }

func (noopCache) Size(context.Context) int { return 0 }

func (noopCache) Stats(context.Context) map[string]interface{} {
	return map[string]interface{}{"type": "none"}
}

func testCacheConfig() shared.CacheConfig {
	return shared.CacheConfig{DefaultTTL: 5 * time.Minute, NegativeTTL: time.Minute, MaxSize: 100}
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func stringPtr(v string) *string { return &v }
