package models

import (
	"time"
)

// QuoteStatus classifies the market state of a ticker
type QuoteStatus string

const (
	QuoteStatusActive      QuoteStatus = "ACTIVE"
	QuoteStatusDelisted    QuoteStatus = "DELISTED"
	QuoteStatusMerged      QuoteStatus = "MERGED"
	QuoteStatusUnavailable QuoteStatus = "UNAVAILABLE"
)

// Label returns the human readable status used by the dashboard
func (s QuoteStatus) Label() string {
	switch s {
	case QuoteStatusActive:
		return "Active"
	case QuoteStatusDelisted:
		return "Delisted"
	case QuoteStatusMerged:
		return "Merged"
	default:
		return "Unavailable"
	}
}

// IsInactive reports whether the company no longer trades independently
func (s QuoteStatus) IsInactive() bool {
	return s == QuoteStatusDelisted || s == QuoteStatusMerged
}

// QuoteResult is the resolved market state of one ticker
type QuoteResult struct {
	Ticker       string      `json:"ticker"`
	Status       QuoteStatus `json:"status"`
	CurrentPrice *float64    `json:"current_price"`
	FetchedAt    time.Time   `json:"fetched_at"`
}

// FirstTrade is the first trading session found for a newly listed ticker
type FirstTrade struct {
	Ticker string  `json:"ticker"`
	Date   string  `json:"date"`
	Price  float64 `json:"price"`
	Source string  `json:"source"`
}
