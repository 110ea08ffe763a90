package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/config"
	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(ticker, date string, price float64) models.IPORecord {
	return models.IPORecord{Ticker: ticker, Name: ticker + " Inc", IPODate: date, IPOPrice: price, Exchange: "NASDAQ", Sector: "Tech"}
}

func readJSON(t *testing.T, path string, target interface{}) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target))
}

func TestAppendToEnvelopeKeepsExistingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ipos.json")
	original := `{"last_updated":"2024-01-01","source":"old","extra":true,"ipos":[
      {"ticker":"RDDT","name":"Reddit, Inc.","ipo_date":"2024-03-21","ipo_price":34,"exchange":"NYSE","sector":"Tech","notes":"keep me"}
    ]}`
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	clock := newFakeClock()
	writer := NewDatasetWriter(path, filepath.Join(dir, "backup", "ipos.json.bak")).WithClock(clock.Now)

	result, err := writer.Append([]models.IPORecord{
		newRecord("new", "2025-05-01", 18),
		newRecord("RDDT", "2024-03-21", 34),
		newRecord("", "2025-05-01", 18),
	})
	require.NoError(t, err)
	assert.Equal(t, AppendResult{Appended: 1, Skipped: 2, Total: 2, BackupPath: filepath.Join(dir, "backup", "ipos.json.bak")}, result)

	backup, err := os.ReadFile(result.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, original, string(backup))

	var envelope map[string]interface{}
	readJSON(t, path, &envelope)
	assert.Equal(t, "2025-06-02", envelope["last_updated"])
	assert.Equal(t, DatasetSource, envelope["source"])
	assert.Equal(t, true, envelope["extra"])

	ipos := envelope["ipos"].([]interface{})
	require.Len(t, ipos, 2)
	assert.Equal(t, "NEW", ipos[0].(map[string]interface{})["ticker"], "newest listing first")
	assert.Equal(t, "keep me", ipos[1].(map[string]interface{})["notes"])

	// the result must load back in strict mode
	store, err := LoadRecordStore(path, config.LoadPolicyStrict)
	require.NoError(t, err)
	assert.Len(t, store.Records(), 2)
}

func TestAppendToArrayKeepsArrayShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipos.json")
	require.NoError(t, os.WriteFile(path, []byte(arrayDataset), 0o644))

	result, err := NewDatasetWriter(path, "").Append([]models.IPORecord{newRecord("MID", "2023-06-01", 12)})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Appended)
	assert.Empty(t, result.BackupPath)

	var entries []map[string]interface{}
	readJSON(t, path, &entries)
	require.Len(t, entries, 3)
	assert.Equal(t, "rddt", entries[0]["ticker"], "existing entries are not rewritten")
	assert.Equal(t, "MID", entries[1]["ticker"])
	assert.Equal(t, "ACME", entries[2]["ticker"])
}

func TestAppendNothingLeavesFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipos.json")
	require.NoError(t, os.WriteFile(path, []byte(envelopeDataset), 0o644))
	before, err := os.Stat(path)
	require.NoError(t, err)

	result, err := NewDatasetWriter(path, "").Append([]models.IPORecord{newRecord("rddt", "2024-03-21", 34)})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Appended)
	assert.Equal(t, 1, result.Skipped)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, envelopeDataset, string(data))
	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestAppendCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "ipos.json")

	result, err := NewDatasetWriter(path, path+".bak").Append([]models.IPORecord{newRecord("FRESH", "2025-01-01", 9)})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Appended)
	assert.Empty(t, result.BackupPath, "nothing to back up")

	var dataset models.Dataset
	readJSON(t, path, &dataset)
	require.Len(t, dataset.IPOs, 1)
	assert.Equal(t, "FRESH", dataset.IPOs[0].Ticker)
	_, err = time.Parse(models.IPODateLayout, dataset.LastUpdated)
	assert.NoError(t, err)
}

func TestAppendRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipos.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ipos": {"not": "a list"}}`), 0o644))

	_, err := NewDatasetWriter(path, "").Append([]models.IPORecord{newRecord("X", "2025-01-01", 1)})
	require.Error(t, err)
	var loadErr *LoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestPendingFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.json")
	pending := models.PendingFile{
		GeneratedAt:    "2025-06-02 12:00:00",
		Source:         "Finnhub IPO Calendar",
		DateRange:      models.DateRange{From: "2025-01-01", To: "2025-06-02"},
		PendingCount:   1,
		PendingEntries: []models.PendingIPO{{Ticker: "NEW", IPODate: "2025-05-01", Source: CalendarSource}},
	}
	require.NoError(t, WritePendingFile(path, pending))

	loaded, err := ReadPendingFile(path)
	require.NoError(t, err)
	assert.Equal(t, pending, loaded)

	_, err = ReadPendingFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	_, err = ReadPendingFile(path)
	assert.Error(t, err)
}
