package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/config"
	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/fenilmodi00/ipo-scorecard/services"
	"github.com/fenilmodi00/ipo-scorecard/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const backingDataset = `{
  "last_updated": "2025-06-01",
  "ipos": [
    {"ticker": "RDDT", "name": "Reddit", "ipo_date": "2024-03-21", "ipo_price": 34.0, "exchange": "NYSE", "sector": "Tech"}
  ]
}`

type fakeCalendar struct {
	entries  []*models.CalendarEntry
	err      error
	from, to time.Time
}

func (f *fakeCalendar) FetchRange(_ context.Context, from, to time.Time) ([]*models.CalendarEntry, error) {
	f.from, f.to = from, to
	return f.entries, f.err
}

type fakeQuotes map[string]models.QuoteStatus

func (f fakeQuotes) ResolveWithOptions(_ context.Context, ticker string, _ services.ResolveOptions) (models.QuoteResult, error) {
	status, ok := f[ticker]
	if !ok {
		status = models.QuoteStatusActive
	}
	return models.QuoteResult{Ticker: ticker, Status: status}, nil
}

type fakeHistory map[string]models.FirstTrade

func (f fakeHistory) FirstTrade(_ context.Context, ticker string, _ time.Time, _ time.Duration) (models.FirstTrade, error) {
	trade, ok := f[ticker]
	if !ok {
		return models.FirstTrade{}, services.ErrSymbolNotFound
	}
	return trade, nil
}

type fakeSectors map[string]string

func (f fakeSectors) LookupSector(_ context.Context, ticker string) (string, error) {
	sector, ok := f[ticker]
	if !ok {
		return "", errors.New("profile unavailable")
	}
	return sector, nil
}

type recordedOutcomes struct {
	entries []*models.IngestionLogEntry
}

func (r *recordedOutcomes) Insert(_ context.Context, entry *models.IngestionLogEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordedOutcomes) byTicker() map[string]*models.IngestionLogEntry {
	out := make(map[string]*models.IngestionLogEntry, len(r.entries))
	for _, entry := range r.entries {
		out[entry.Ticker] = entry
	}
	return out
}

type jobFixture struct {
	job      *IPOCalendarJob
	dir      string
	dataPath string
	store    *services.RecordStore
	calendar *fakeCalendar
	audit    *recordedOutcomes
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "ipos.json")
	require.NoError(t, os.WriteFile(dataPath, []byte(backingDataset), 0o644))

	store, err := services.LoadRecordStore(dataPath, config.LoadPolicyStrict)
	require.NoError(t, err)

	now := func() time.Time { return time.Date(2025, 6, 2, 15, 30, 0, 0, time.UTC) }
	writer := services.NewDatasetWriter(dataPath, dataPath+".bak").WithClock(now)

	calendar := &fakeCalendar{}
	audit := &recordedOutcomes{}
	quotes := fakeQuotes{"GONE": models.QuoteStatusDelisted}
	history := fakeHistory{
		"NEW":  {Ticker: "NEW", Date: "2025-05-21", Price: 18.456, Source: "open_price"},
		"ZERO": {Ticker: "ZERO", Date: "2025-05-20", Price: 0},
		"ODD":  {Ticker: "ODD", Price: 9.5, Source: "first_available_open"},
	}
	sectors := fakeSectors{"NEW": "Tech", "ODD": models.UnknownSector}

	job := NewIPOCalendarJob(calendar, quotes, history, sectors, store, writer, IngestionSettings{
		PendingFile:      filepath.Join(dir, "pending.json"),
		FailedFile:       filepath.Join(dir, "failed.json"),
		StartDate:        "2024-01-01",
		FirstTradeWindow: 30 * 24 * time.Hour,
	}).WithAuditLog(audit)
	job.Now = now

	return &jobFixture{job: job, dir: dir, dataPath: dataPath, store: store, calendar: calendar, audit: audit}
}

func (f *jobFixture) writePending(t *testing.T, entries ...models.PendingIPO) {
	t.Helper()
	require.NoError(t, services.WritePendingFile(f.job.Settings.PendingFile, models.PendingFile{
		PendingCount:   len(entries),
		PendingEntries: entries,
	}))
}

func TestFindMissingWritesPendingFile(t *testing.T) {
	fixture := newJobFixture(t)
	fixture.calendar.entries = []*models.CalendarEntry{
		{Symbol: "RDDT", Date: "2024-03-21", Name: "Reddit", Status: "priced"},
		{Symbol: "new", Date: "2025-05-21", Name: "New Co", Exchange: "NASDAQ", Price: "16.00-18.00", Status: "priced"},
		{Symbol: "OLD", Date: "2024-06-01", Name: "Old Co", Status: "priced"},
	}

	pending, err := fixture.job.FindMissing(context.Background())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), fixture.calendar.from)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), fixture.calendar.to)
	assert.Equal(t, 1, pending.ExistingCount)
	assert.Equal(t, 2, pending.PendingCount)
	assert.Equal(t, "2025-06-02", pending.DateRange.To)

	onDisk, err := services.ReadPendingFile(fixture.job.Settings.PendingFile)
	require.NoError(t, err)
	require.Len(t, onDisk.PendingEntries, 2)
	assert.Equal(t, "NEW", onDisk.PendingEntries[0].Ticker)
	assert.Equal(t, "OLD", onDisk.PendingEntries[1].Ticker)
	assert.Equal(t, "Finnhub IPO Calendar", onDisk.Source)
	assert.Equal(t, "2025-06-02 15:30:00", onDisk.GeneratedAt)
}

func TestFindMissingRejectsInvalidStartDate(t *testing.T) {
	fixture := newJobFixture(t)
	fixture.job.Settings.StartDate = "last year"

	_, err := fixture.job.FindMissing(context.Background())
	require.Error(t, err)
	assert.True(t, shared.HasCategory(err, shared.ErrorCategoryConfiguration))
	assert.NoFileExists(t, fixture.job.Settings.PendingFile)
}

func TestFindMissingPropagatesCalendarFailure(t *testing.T) {
	fixture := newJobFixture(t)
	fixture.calendar.err = errors.New("calendar down")

	_, err := fixture.job.FindMissing(context.Background())
	assert.EqualError(t, err, "calendar down")
	assert.NoFileExists(t, fixture.job.Settings.PendingFile)
}

func TestProcessPendingClassifiesEveryEntry(t *testing.T) {
	fixture := newJobFixture(t)
	fixture.writePending(t,
		models.PendingIPO{Ticker: "new", Name: "New Co", IPODate: "2025-05-20", Exchange: "NASDAQ", Sector: models.UnknownSector},
		models.PendingIPO{Ticker: "ODD", Name: "Odd Co", IPODate: "2025-05-19", Exchange: "NYSE", Sector: "Energy"},
		models.PendingIPO{Ticker: "RDDT", Name: "Reddit", IPODate: "2024-03-21"},
		models.PendingIPO{Ticker: "", Name: "Nameless", IPODate: "2025-05-01"},
		models.PendingIPO{Ticker: "GONE", Name: "Gone Co", IPODate: "2025-04-01"},
		models.PendingIPO{Ticker: "NODATA", Name: "No Data", IPODate: "2025-05-30"},
		models.PendingIPO{Ticker: "ZERO", Name: "Zero Co", IPODate: "2025-05-20"},
	)

	report, err := fixture.job.ProcessPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, report.Total)
	assert.Equal(t, 2, report.Skipped)
	require.Len(t, report.Accepted, 2)
	require.Len(t, report.Failed, 3)

	accepted := report.Accepted[0]
	assert.Equal(t, "NEW", accepted.Ticker)
	assert.Equal(t, "2025-05-21", accepted.IPODate, "first trade date wins over the calendar date")
	assert.Equal(t, "Tech", accepted.Sector)

	assert.Equal(t, "2025-05-19", report.Accepted[1].IPODate)
	assert.Equal(t, "Energy", report.Accepted[1].Sector, "an unknown lookup falls back to the entry sector")

	reasons := map[string]string{}
	for _, failed := range report.Failed {
		reasons[failed.Ticker] = failed.Error
	}
	assert.Equal(t, "ticker is Delisted", reasons["GONE"])
	assert.Equal(t, "no price data available", reasons["NODATA"])
	assert.Equal(t, "no usable first-trade price", reasons["ZERO"])

	outcomes := fixture.audit.byTicker()
	require.Len(t, fixture.audit.entries, 7)
	assert.Equal(t, models.IngestionAccepted, outcomes["NEW"].Outcome)
	assert.Equal(t, "open_price", outcomes["NEW"].Source)
	require.NotNil(t, outcomes["NEW"].IPOPrice)
	assert.Equal(t, "already in backing file", outcomes["RDDT"].Reason)
	assert.Equal(t, "missing ticker or date", outcomes[""].Reason)
	assert.Equal(t, models.IngestionRejected, outcomes["GONE"].Outcome)
	for _, entry := range fixture.audit.entries {
		assert.Equal(t, report.RunID, entry.RunID)
	}
}

func TestProcessPendingAppendsAndReloads(t *testing.T) {
	fixture := newJobFixture(t)
	fixture.writePending(t,
		models.PendingIPO{Ticker: "NEW", Name: "New Co", IPODate: "2025-05-20", Exchange: "NASDAQ"},
		models.PendingIPO{Ticker: "GONE", Name: "Gone Co", IPODate: "2025-04-01"},
	)

	report, err := fixture.job.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Append.Appended)

	record, found := fixture.store.Lookup("NEW")
	require.True(t, found, "the store serves the appended record after reload")
	assert.Equal(t, "Tech", record.Sector)
	assert.Len(t, fixture.store.Records(), 2)
	assert.FileExists(t, fixture.dataPath+".bak")

	raw, err := os.ReadFile(fixture.job.Settings.FailedFile)
	require.NoError(t, err)
	var failed models.FailedFile
	require.NoError(t, json.Unmarshal(raw, &failed))
	assert.Equal(t, 1, failed.FailedCount)
	assert.Equal(t, "GONE", failed.FailedEntries[0].Ticker)

	// Running again finds nothing new to add
	again, err := fixture.job.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again.Accepted)
	assert.Equal(t, 1, again.Skipped)
}

func TestProcessPendingWithoutFailuresWritesNoFailedFile(t *testing.T) {
	fixture := newJobFixture(t)
	fixture.writePending(t, models.PendingIPO{Ticker: "NEW", Name: "New Co", IPODate: "2025-05-20"})

	_, err := fixture.job.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.NoFileExists(t, fixture.job.Settings.FailedFile)
}

func TestProcessPendingStopsOnCancellation(t *testing.T) {
	fixture := newJobFixture(t)
	fixture.writePending(t, models.PendingIPO{Ticker: "NEW", Name: "New Co", IPODate: "2025-05-20"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fixture.job.ProcessPending(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, fixture.store.Records(), 1)
}

func TestProcessPendingRequiresPendingFile(t *testing.T) {
	fixture := newJobFixture(t)

	_, err := fixture.job.ProcessPending(context.Background())
	assert.Error(t, err)
}
