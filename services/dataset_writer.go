package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/fenilmodi00/ipo-scorecard/shared"
	"github.com/sirupsen/logrus"
)

// GeneratedAtLayout stamps pending and failed files
const GeneratedAtLayout = "2006-01-02 15:04:05"

// DatasetSource is written to the envelope after an append
const DatasetSource = "Stock Analysis / Yahoo Finance / Finnhub / SEC Filings"

// AppendResult describes one append to the backing file
type AppendResult struct {
	Appended   int    `json:"appended"`
	Skipped    int    `json:"skipped"`
	Total      int    `json:"total"`
	BackupPath string `json:"backup_path,omitempty"`
}

// DatasetWriter appends ingested records to the backing file. The dashboard
// never uses it; only the ingestion tool does.
type DatasetWriter struct {
	path       string
	backupPath string
	now        Clock
}

// NewDatasetWriter creates a writer. An empty backupPath disables backups.
func NewDatasetWriter(path, backupPath string) *DatasetWriter {
	return &DatasetWriter{path: path, backupPath: backupPath, now: time.Now}
}

// WithClock replaces the clock used for last_updated
func (w *DatasetWriter) WithClock(now Clock) *DatasetWriter {
	w.now = now
	return w
}

type recordKey struct {
	Ticker  string `json:"ticker"`
	IPODate string `json:"ipo_date"`
}

type keyedEntry struct {
	key recordKey
	raw json.RawMessage
}

// Append backs the file up, then adds records whose ticker is not present
// yet. Existing entries keep every field they carry; the whole list is ordered
// newest listing first. The array or envelope layout of the file is kept.
func (w *DatasetWriter) Append(records []models.IPORecord) (AppendResult, error) {
	logger := logrus.WithFields(logrus.Fields{
		"component": "DatasetWriter",
		"path":      w.path,
	})

	shape := FileShapeEnvelope
	envelope := map[string]json.RawMessage{}
	var entries []json.RawMessage

	data, err := os.ReadFile(w.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("Backing file does not exist, creating it")
	case err != nil:
		return AppendResult{}, shared.NewServiceError(shared.ErrorCategoryStorage, "DATASET_READ_FAILED",
			"cannot read backing file", "DatasetWriter", "Append", false, err)
	default:
		shape, envelope, entries, err = decodeDataset(data)
		if err != nil {
			return AppendResult{}, err
		}
	}

	result := AppendResult{}
	if len(data) > 0 && w.backupPath != "" {
		if err := writeFileAtomic(w.backupPath, data); err != nil {
			return AppendResult{}, shared.NewServiceError(shared.ErrorCategoryStorage, "BACKUP_FAILED",
				"cannot write backup", "DatasetWriter", "Append", false, err)
		}
		result.BackupPath = w.backupPath
		logger.WithField("backup", w.backupPath).Info("Backed up backing file")
	}

	keyed := make([]keyedEntry, 0, len(entries)+len(records))
	existing := make(map[string]struct{}, len(entries))
	for _, raw := range entries {
		var key recordKey
		_ = json.Unmarshal(raw, &key)
		existing[strings.ToUpper(strings.TrimSpace(key.Ticker))] = struct{}{}
		keyed = append(keyed, keyedEntry{key: key, raw: raw})
	}

	for _, record := range records {
		ticker := strings.ToUpper(strings.TrimSpace(record.Ticker))
		if _, seen := existing[ticker]; seen || ticker == "" {
			result.Skipped++
			continue
		}
		record.Ticker = ticker
		raw, err := json.Marshal(record)
		if err != nil {
			return result, shared.NewServiceError(shared.ErrorCategoryProcessing, "RECORD_ENCODE_FAILED",
				fmt.Sprintf("cannot encode %s", ticker), "DatasetWriter", "Append", false, err)
		}
		existing[ticker] = struct{}{}
		keyed = append(keyed, keyedEntry{key: recordKey{Ticker: ticker, IPODate: record.IPODate}, raw: raw})
		result.Appended++
	}
	result.Total = len(keyed)

	if result.Appended == 0 {
		logger.WithField("skipped", result.Skipped).Info("Nothing to append")
		return result, nil
	}

	sort.SliceStable(keyed, func(i, j int) bool {
		return keyed[i].key.IPODate > keyed[j].key.IPODate
	})
	ordered := make([]json.RawMessage, len(keyed))
	for i, entry := range keyed {
		ordered[i] = entry.raw
	}

	var payload interface{} = ordered
	if shape == FileShapeEnvelope {
		envelope["ipos"], _ = json.Marshal(ordered)
		envelope["last_updated"], _ = json.Marshal(w.now().Format(models.IPODateLayout))
		envelope["source"], _ = json.Marshal(DatasetSource)
		payload = envelope
	}

	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return result, shared.NewServiceError(shared.ErrorCategoryProcessing, "DATASET_ENCODE_FAILED",
			"cannot encode backing file", "DatasetWriter", "Append", false, err)
	}
	if err := writeFileAtomic(w.path, append(encoded, '\n')); err != nil {
		return result, shared.NewServiceError(shared.ErrorCategoryStorage, "DATASET_WRITE_FAILED",
			"cannot write backing file", "DatasetWriter", "Append", false, err)
	}

	logger.WithFields(logrus.Fields{
		"appended": result.Appended,
		"skipped":  result.Skipped,
		"total":    result.Total,
		"shape":    shape,
	}).Info("Appended records to backing file")
	return result, nil
}

func decodeDataset(data []byte) (FileShape, map[string]json.RawMessage, []json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	envelope := map[string]json.RawMessage{}
	var entries []json.RawMessage

	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return "", nil, nil, &LoadError{Index: -1, Reason: "malformed JSON", Cause: err}
		}
		return FileShapeArray, envelope, entries, nil
	}

	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return "", nil, nil, &LoadError{Index: -1, Reason: "malformed JSON", Cause: err}
	}
	if raw, ok := envelope["ipos"]; ok {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return "", nil, nil, &LoadError{Index: -1, Reason: `"ipos" is not an array`, Cause: err}
		}
	}
	return FileShapeEnvelope, envelope, entries, nil
}

// WritePendingFile stores the find-missing output
func WritePendingFile(path string, pending models.PendingFile) error {
	return writeJSONFile(path, pending)
}

// ReadPendingFile loads the find-missing output
func ReadPendingFile(path string) (models.PendingFile, error) {
	var pending models.PendingFile
	data, err := os.ReadFile(path)
	if err != nil {
		return pending, shared.NewServiceError(shared.ErrorCategoryStorage, "PENDING_READ_FAILED",
			fmt.Sprintf("cannot read pending file %s", path), "DatasetWriter", "ReadPendingFile", false, err)
	}
	if err := json.Unmarshal(data, &pending); err != nil {
		return pending, shared.NewServiceError(shared.ErrorCategoryValidation, "PENDING_DECODE_FAILED",
			fmt.Sprintf("malformed pending file %s", path), "DatasetWriter", "ReadPendingFile", false, err)
	}
	return pending, nil
}

// WriteFailedFile stores the entries process-pending could not ingest
func WriteFailedFile(path string, failed models.FailedFile) error {
	return writeJSONFile(path, failed)
}

func writeJSONFile(path string, value interface{}) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return shared.NewServiceError(shared.ErrorCategoryProcessing, "JSON_ENCODE_FAILED",
			fmt.Sprintf("cannot encode %s", path), "DatasetWriter", "writeJSONFile", false, err)
	}
	if err := writeFileAtomic(path, append(encoded, '\n')); err != nil {
		return shared.NewServiceError(shared.ErrorCategoryStorage, "FILE_WRITE_FAILED",
			fmt.Sprintf("cannot write %s", path), "DatasetWriter", "writeJSONFile", false, err)
	}
	return nil
}

// writeFileAtomic replaces path through a temporary file in the same directory
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
