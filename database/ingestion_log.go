package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/fenilmodi00/ipo-scorecard/shared"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const ingestionLogTable = "ingestion_log"

// slowQueryThreshold marks queries worth a slow-query count
const slowQueryThreshold = 500 * time.Millisecond

// IngestionLogRepository persists ingestion outcomes
type IngestionLogRepository struct {
	db      *sql.DB
	metrics *shared.DatabaseMetrics
}

// NewIngestionLogRepository wraps an open pool
func NewIngestionLogRepository(db *sql.DB) *IngestionLogRepository {
	return &IngestionLogRepository{db: db, metrics: shared.NewDatabaseMetrics()}
}

// GetMetrics returns the query counters of the repository
func (r *IngestionLogRepository) GetMetrics() *shared.DatabaseMetrics {
	return r.metrics
}

// Insert stores entry. Missing IDs and timestamps are filled in.
func (r *IngestionLogRepository) Insert(ctx context.Context, entry *models.IngestionLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO ingestion_log (id, run_id, ticker, outcome, reason, ipo_price, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	startTime := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.RunID, entry.Ticker, string(entry.Outcome),
		entry.Reason, entry.IPOPrice, entry.Source, entry.CreatedAt,
	)
	elapsed := time.Since(startTime)
	r.metrics.RecordQuery(err == nil, elapsed, elapsed > slowQueryThreshold)

	if err != nil {
		return shared.NewServiceError(shared.ErrorCategoryDatabase, "INGESTION_LOG_INSERT_FAILED",
			fmt.Sprintf("failed to record outcome for %s", entry.Ticker), "IngestionLogRepository", "Insert",
			isTransient(err), err)
	}

	logrus.WithFields(logrus.Fields{
		"component": "IngestionLogRepository",
		"ticker":    entry.Ticker,
		"outcome":   entry.Outcome,
		"run_id":    entry.RunID,
	}).Debug("Recorded ingestion outcome")
	return nil
}

// Recent returns the newest entries first, at most limit of them
func (r *IngestionLogRepository) Recent(ctx context.Context, limit int) ([]models.IngestionLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT id, run_id, ticker, outcome, reason, ipo_price, source, created_at
		FROM ingestion_log
		ORDER BY created_at DESC
		LIMIT $1
	`
	return r.query(ctx, "Recent", query, limit)
}

// ByRun returns every entry of one ingestion run in insertion order
func (r *IngestionLogRepository) ByRun(ctx context.Context, runID uuid.UUID) ([]models.IngestionLogEntry, error) {
	query := `
		SELECT id, run_id, ticker, outcome, reason, ipo_price, source, created_at
		FROM ingestion_log
		WHERE run_id = $1
		ORDER BY created_at ASC
	`
	return r.query(ctx, "ByRun", query, runID)
}

func (r *IngestionLogRepository) query(ctx context.Context, operation, query string, args ...interface{}) ([]models.IngestionLogEntry, error) {
	startTime := time.Now()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.metrics.RecordQuery(false, time.Since(startTime), false)
		return nil, shared.NewServiceError(shared.ErrorCategoryDatabase, "INGESTION_LOG_QUERY_FAILED",
			"failed to query ingestion log", "IngestionLogRepository", operation, isTransient(err), err)
	}
	defer rows.Close()

	entries := make([]models.IngestionLogEntry, 0)
	for rows.Next() {
		var (
			entry    models.IngestionLogEntry
			outcome  string
			ipoPrice sql.NullFloat64
		)
		if err := rows.Scan(&entry.ID, &entry.RunID, &entry.Ticker, &outcome, &entry.Reason,
			&ipoPrice, &entry.Source, &entry.CreatedAt); err != nil {
			r.metrics.RecordQuery(false, time.Since(startTime), false)
			return nil, shared.NewServiceError(shared.ErrorCategoryDatabase, "INGESTION_LOG_SCAN_FAILED",
				"failed to scan ingestion log row", "IngestionLogRepository", operation, false, err)
		}
		entry.Outcome = models.IngestionOutcome(outcome)
		if ipoPrice.Valid {
			price := ipoPrice.Float64
			entry.IPOPrice = &price
		}
		entries = append(entries, entry)
	}

	elapsed := time.Since(startTime)
	err = rows.Err()
	r.metrics.RecordQuery(err == nil, elapsed, elapsed > slowQueryThreshold)
	if err != nil {
		return nil, shared.NewServiceError(shared.ErrorCategoryDatabase, "INGESTION_LOG_QUERY_FAILED",
			"failed to read ingestion log", "IngestionLogRepository", operation, isTransient(err), err)
	}
	return entries, nil
}

// isTransient classifies Postgres errors worth retrying
func isTransient(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57":
			return true
		}
		return false
	}
	return shared.IsRetryableError(err)
}
