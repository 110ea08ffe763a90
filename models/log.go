package models

import (
	"time"

	"github.com/google/uuid"
)

// IngestionOutcome is the result of processing one pending IPO
type IngestionOutcome string

const (
	IngestionAccepted IngestionOutcome = "accepted"
	IngestionRejected IngestionOutcome = "rejected"
	IngestionSkipped  IngestionOutcome = "skipped"
)

// IngestionLogEntry is one row of the ingestion audit table
type IngestionLogEntry struct {
	ID        uuid.UUID        `json:"id"`
	RunID     uuid.UUID        `json:"run_id"`
	Ticker    string           `json:"ticker"`
	Outcome   IngestionOutcome `json:"outcome"`
	Reason    string           `json:"reason,omitempty"`
	IPOPrice  *float64         `json:"ipo_price,omitempty"`
	Source    string           `json:"source"`
	CreatedAt time.Time        `json:"created_at"`
}
