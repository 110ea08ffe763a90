package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/config"
	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/sirupsen/logrus"
)

// FileShape is the top-level layout of the backing file
type FileShape string

const (
	FileShapeArray    FileShape = "array"
	FileShapeEnvelope FileShape = "envelope"
)

// LoadError reports a backing file that cannot be served
type LoadError struct {
	Path   string
	Index  int // -1 when the failure is not tied to one record
	Reason string
	Cause  error
}

func (e *LoadError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("load %s: record %d: %s", e.Path, e.Index, e.Reason)
	}
	return fmt.Sprintf("load %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// StoreSnapshot is an immutable view of one successful load
type StoreSnapshot struct {
	Records     []models.IPORecord
	Skipped     []models.RecordOutcome
	Duplicates  int
	LastUpdated string
	Source      string
	Shape       FileShape
	LoadedAt    time.Time

	byTicker map[string]int
}

// Lookup finds a record by ticker
func (s *StoreSnapshot) Lookup(ticker string) (models.IPORecord, bool) {
	idx, ok := s.byTicker[strings.ToUpper(strings.TrimSpace(ticker))]
	if !ok {
		return models.IPORecord{}, false
	}
	return s.Records[idx], true
}

// RecordStore serves the IPO records of the backing file. It never writes the file.
type RecordStore struct {
	path     string
	policy   config.LoadPolicy
	snapshot atomic.Pointer[StoreSnapshot]
}

// NewRecordStore creates a store that has not loaded anything yet
func NewRecordStore(path string, policy config.LoadPolicy) *RecordStore {
	return &RecordStore{path: path, policy: policy}
}

// LoadRecordStore creates a store and performs the initial load
func LoadRecordStore(path string, policy config.LoadPolicy) (*RecordStore, error) {
	store := NewRecordStore(path, policy)
	if err := store.Reload(); err != nil {
		return nil, err
	}
	return store, nil
}

// NewRecordStoreFromRecords wraps records that are already validated
func NewRecordStoreFromRecords(records []models.IPORecord, lastUpdated string) *RecordStore {
	store := &RecordStore{policy: config.LoadPolicyStrict}
	snapshot := &StoreSnapshot{
		LastUpdated: lastUpdated,
		Shape:       FileShapeArray,
		LoadedAt:    time.Now(),
		byTicker:    make(map[string]int, len(records)),
	}
	for _, record := range records {
		snapshot.byTicker[record.Ticker] = len(snapshot.Records)
		snapshot.Records = append(snapshot.Records, record)
	}
	store.snapshot.Store(snapshot)
	return store
}

// Reload reads the backing file again. On failure the previous snapshot stays in service.
func (s *RecordStore) Reload() error {
	startTime := time.Now()
	logger := logrus.WithFields(logrus.Fields{
		"component": "RecordStore",
		"path":      s.path,
		"policy":    s.policy,
	})

	data, err := os.ReadFile(s.path)
	if err != nil {
		return &LoadError{Path: s.path, Index: -1, Reason: "cannot read backing file", Cause: err}
	}

	snapshot, err := ParseRecords(data, s.policy)
	if err != nil {
		if loadErr, ok := err.(*LoadError); ok {
			loadErr.Path = s.path
		}
		logger.WithError(err).Error("Failed to load IPO records")
		return err
	}

	s.snapshot.Store(snapshot)

	logger.WithFields(logrus.Fields{
		"records":    len(snapshot.Records),
		"skipped":    len(snapshot.Skipped),
		"duplicates": snapshot.Duplicates,
		"shape":      snapshot.Shape,
		"duration":   time.Since(startTime),
	}).Info("Loaded IPO records")

	return nil
}

// Snapshot returns the current snapshot, nil before the first successful load
func (s *RecordStore) Snapshot() *StoreSnapshot {
	return s.snapshot.Load()
}

// Path returns the backing file path
func (s *RecordStore) Path() string {
	return s.path
}

// Records returns a copy of the loaded records in file order
func (s *RecordStore) Records() []models.IPORecord {
	snapshot := s.snapshot.Load()
	if snapshot == nil {
		return nil
	}
	records := make([]models.IPORecord, len(snapshot.Records))
	copy(records, snapshot.Records)
	return records
}

// Lookup finds a record by ticker
func (s *RecordStore) Lookup(ticker string) (models.IPORecord, bool) {
	snapshot := s.snapshot.Load()
	if snapshot == nil {
		return models.IPORecord{}, false
	}
	return snapshot.Lookup(ticker)
}

// LastUpdated returns the dataset timestamp, empty for bare arrays
func (s *RecordStore) LastUpdated() string {
	if snapshot := s.snapshot.Load(); snapshot != nil {
		return snapshot.LastUpdated
	}
	return ""
}

// IsMerged reports whether the record of ticker names an acquirer
func (s *RecordStore) IsMerged(ticker string) bool {
	record, ok := s.Lookup(ticker)
	return ok && strings.TrimSpace(record.AcquiredBy) != ""
}

type rawEnvelope struct {
	LastUpdated string             `json:"last_updated"`
	Source      string             `json:"source"`
	IPOs        *[]json.RawMessage `json:"ipos"`
}

type rawRecord struct {
	Ticker     *string  `json:"ticker"`
	Name       *string  `json:"name"`
	IPODate    *string  `json:"ipo_date"`
	IPOPrice   *float64 `json:"ipo_price"`
	Exchange   *string  `json:"exchange"`
	Sector     *string  `json:"sector"`
	AcquiredBy *string  `json:"acquired_by"`
}

// ParseRecords decodes and validates backing file content under the given policy
func ParseRecords(data []byte, policy config.LoadPolicy) (*StoreSnapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &LoadError{Index: -1, Reason: "backing file is empty"}
	}

	snapshot := &StoreSnapshot{LoadedAt: time.Now()}
	var entries []json.RawMessage

	switch trimmed[0] {
	case '[':
		snapshot.Shape = FileShapeArray
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, &LoadError{Index: -1, Reason: "malformed JSON", Cause: err}
		}
	case '{':
		snapshot.Shape = FileShapeEnvelope
		var envelope rawEnvelope
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, &LoadError{Index: -1, Reason: "malformed JSON", Cause: err}
		}
		if envelope.IPOs == nil {
			return nil, &LoadError{Index: -1, Reason: `envelope has no "ipos" array`}
		}
		entries = *envelope.IPOs
		snapshot.LastUpdated = envelope.LastUpdated
		snapshot.Source = envelope.Source
	default:
		return nil, &LoadError{Index: -1, Reason: "malformed JSON: expected an array or an object"}
	}

	snapshot.Records = make([]models.IPORecord, 0, len(entries))
	snapshot.byTicker = make(map[string]int, len(entries))

	for idx, entry := range entries {
		outcome := ValidateRecord(idx, entry)
		if !outcome.Valid {
			if policy != config.LoadPolicyLenient {
				return nil, &LoadError{Index: idx, Reason: outcome.Reason}
			}
			logrus.WithFields(logrus.Fields{
				"component": "RecordStore",
				"index":     idx,
				"reason":    outcome.Reason,
			}).Warn("Skipping invalid IPO record")
			snapshot.Skipped = append(snapshot.Skipped, outcome)
			continue
		}

		record := outcome.Record
		if existing, seen := snapshot.byTicker[record.Ticker]; seen {
			snapshot.Duplicates++
			kept := snapshot.Records[existing]
			if record.IPODate > kept.IPODate {
				snapshot.Records[existing] = record
			}
			logrus.WithFields(logrus.Fields{
				"component": "RecordStore",
				"ticker":    record.Ticker,
				"kept_date": snapshot.Records[existing].IPODate,
			}).Warn("Duplicate ticker in backing file")
			continue
		}

		snapshot.byTicker[record.Ticker] = len(snapshot.Records)
		snapshot.Records = append(snapshot.Records, record)
	}

	return snapshot, nil
}

// ValidateRecord turns one raw entry into a tagged outcome
func ValidateRecord(index int, entry json.RawMessage) models.RecordOutcome {
	outcome := models.RecordOutcome{Index: index}

	var raw rawRecord
	if err := json.Unmarshal(entry, &raw); err != nil {
		outcome.Reason = fmt.Sprintf("not a valid record object: %v", err)
		return outcome
	}

	switch {
	case raw.Ticker == nil || strings.TrimSpace(*raw.Ticker) == "":
		outcome.Reason = "missing ticker"
	case raw.Name == nil || strings.TrimSpace(*raw.Name) == "":
		outcome.Reason = "missing name"
	case raw.IPODate == nil:
		outcome.Reason = "missing ipo_date"
	case raw.IPOPrice == nil:
		outcome.Reason = "missing ipo_price"
	case raw.Exchange == nil:
		outcome.Reason = "missing exchange"
	case raw.Sector == nil:
		outcome.Reason = "missing sector"
	}
	if outcome.Reason != "" {
		return outcome
	}

	if _, err := time.Parse(models.IPODateLayout, strings.TrimSpace(*raw.IPODate)); err != nil {
		outcome.Reason = fmt.Sprintf("invalid ipo_date %q", *raw.IPODate)
		return outcome
	}
	if *raw.IPOPrice < 0 {
		outcome.Reason = fmt.Sprintf("negative ipo_price %v", *raw.IPOPrice)
		return outcome
	}

	sector := strings.TrimSpace(*raw.Sector)
	if sector == "" {
		sector = models.UnknownSector
	}

	outcome.Record = models.IPORecord{
		Ticker:   strings.ToUpper(strings.TrimSpace(*raw.Ticker)),
		Name:     strings.TrimSpace(*raw.Name),
		IPODate:  strings.TrimSpace(*raw.IPODate),
		IPOPrice: *raw.IPOPrice,
		Exchange: strings.TrimSpace(*raw.Exchange),
		Sector:   sector,
	}
	if raw.AcquiredBy != nil {
		outcome.Record.AcquiredBy = strings.TrimSpace(*raw.AcquiredBy)
	}
	outcome.Valid = true
	return outcome
}
