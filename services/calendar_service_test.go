package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/fenilmodi00/ipo-scorecard/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalendarClient(t *testing.T, chunkDays int, apiKey string, handler http.HandlerFunc) *FinnhubCalendarClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewFinnhubCalendarClient(shared.IngestionConfig{
		Calendar: shared.ServiceConfig{
			BaseURL:            server.URL,
			HTTPRequestTimeout: 2 * time.Second,
			RetryBackoff:       time.Millisecond,
		},
		ChunkDays: chunkDays,
	}, apiKey)
}

func day(value string) time.Time {
	parsed, err := time.Parse(models.IPODateLayout, value)
	if err != nil {
		panic(err)
	}
	return parsed
}

func TestFetchRangeWalksChunks(t *testing.T) {
	var (
		mutex  sync.Mutex
		ranges [][2]string
	)
	client := newTestCalendarClient(t, 30, "secret", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendar/ipo", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("token"))

		from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
		mutex.Lock()
		ranges = append(ranges, [2]string{from, to})
		mutex.Unlock()

		fmt.Fprintf(w, `{"ipoCalendar":[{"date":"%s","exchange":"NYSE","name":"Co %s","price":"10.00-12.00","status":"priced","symbol":"T%s"}]}`, from, from, from[5:7])
	})

	entries, err := client.FetchRange(context.Background(), day("2024-01-01"), day("2024-03-15"))
	require.NoError(t, err)

	assert.Equal(t, [][2]string{
		{"2024-01-01", "2024-01-31"},
		{"2024-02-01", "2024-03-02"},
		{"2024-03-03", "2024-03-15"},
	}, ranges)
	assert.Len(t, entries, 3)
}

func TestFetchRangeSkipsFailedChunk(t *testing.T) {
	client := newTestCalendarClient(t, 10, "secret", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("from") == "2024-01-01" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `{"ipoCalendar":[{"date":"2024-01-15","symbol":"OK","price":"5"}]}`)
	})

	entries, err := client.FetchRange(context.Background(), day("2024-01-01"), day("2024-01-20"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "OK", entries[0].Symbol)
}

func TestFetchRangeAllChunksFail(t *testing.T) {
	client := newTestCalendarClient(t, 10, "secret", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.FetchRange(context.Background(), day("2024-01-01"), day("2024-01-20"))
	require.Error(t, err)
	assert.True(t, shared.HasCategory(err, shared.ErrorCategoryNetwork))
	assert.Contains(t, err.Error(), "2 failures")
}

func TestFetchRangeRejectsBadInput(t *testing.T) {
	client := newTestCalendarClient(t, 10, "", func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := client.FetchRange(context.Background(), day("2024-01-01"), day("2024-01-20"))
	assert.True(t, shared.HasCategory(err, shared.ErrorCategoryConfiguration))

	client = newTestCalendarClient(t, 10, "secret", func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err = client.FetchRange(context.Background(), day("2024-02-01"), day("2024-01-01"))
	assert.True(t, shared.HasCategory(err, shared.ErrorCategoryValidation))
}

func TestNormalizeCalendarEntry(t *testing.T) {
	utility := NewUtilityService()

	pending, ok := NormalizeCalendarEntry(&models.CalendarEntry{
		Date: "2024-03-21", Exchange: "NYSE", Name: "  Reddit,   Inc. ", Price: "31.00-34.00", Status: "Priced", Symbol: " rddt",
	}, utility)
	require.True(t, ok)
	assert.Equal(t, models.PendingIPO{
		Ticker:   "RDDT",
		Name:     "Reddit, Inc.",
		IPODate:  "2024-03-21",
		IPOPrice: 34.0,
		Exchange: "NYSE",
		Sector:   models.UnknownSector,
		Status:   "priced",
		Source:   CalendarSource,
	}, pending)

	pending, ok = NormalizeCalendarEntry(&models.CalendarEntry{Date: "2024-03-21", Symbol: "BARE"}, utility)
	require.True(t, ok)
	assert.Equal(t, "Unknown", pending.Name)
	assert.Equal(t, "Unknown", pending.Exchange)
	assert.Equal(t, 0.0, pending.IPOPrice)

	rejected := []*models.CalendarEntry{
		nil,
		{Date: "2024-03-21"},
		{Symbol: "NODATE"},
		{Symbol: "BADDATE", Date: "March 21"},
		{Symbol: "GONE", Date: "2024-03-21", Status: "Withdrawn"},
		{Symbol: "LATER", Date: "2024-03-21", Status: "postponed"},
	}
	for _, entry := range rejected {
		_, ok := NormalizeCalendarEntry(entry, utility)
		assert.False(t, ok, "%+v", entry)
	}
}

func TestFindMissingIPOs(t *testing.T) {
	entries := []*models.CalendarEntry{
		{Date: "2024-01-10", Symbol: "OLD"},
		{Date: "2024-03-21", Symbol: "RDDT"},
		{Date: "2024-05-01", Symbol: "NEW"},
		{Date: "2024-02-01", Symbol: "new"},
		{Date: "2024-05-01", Symbol: "TIE"},
		{Date: "2024-04-01", Symbol: "DROP", Status: "withdrawn"},
	}

	pending := FindMissingIPOs(entries, ExistingTickers(sampleRecords()))

	tickers := make([]string, len(pending))
	for i, entry := range pending {
		tickers[i] = entry.Ticker
	}
	assert.Equal(t, []string{"NEW", "TIE", "OLD"}, tickers)
	assert.Equal(t, "2024-05-01", pending[0].IPODate, "first occurrence wins")
}
