package models

import (
	"time"
)

// CachedQuote is a quote result together with its expiry
type CachedQuote struct {
	Result    QuoteResult `json:"result"`
	StoredAt  time.Time   `json:"stored_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// IsExpiredAt reports whether the entry is stale at the given instant
func (c CachedQuote) IsExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
