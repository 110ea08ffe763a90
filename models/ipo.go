package models

import (
	"time"
)

// IPODateLayout is the calendar date layout used by the backing file
const IPODateLayout = "2006-01-02"

// UnknownSector is used when a record carries no sector
const UnknownSector = "Unknown"

// IPORecord is one historical IPO as stored in the backing file
type IPORecord struct {
	Ticker   string  `json:"ticker"`
	Name     string  `json:"name"`
	IPODate  string  `json:"ipo_date"`
	IPOPrice float64 `json:"ipo_price"`
	Exchange string  `json:"exchange"`
	Sector   string  `json:"sector"`

	// AcquiredBy is set when the company completed a merger or acquisition
	AcquiredBy string `json:"acquired_by,omitempty"`
}

// ListingDate parses IPODate. Records are validated at load time so the
// error is only reachable for hand-built records.
func (r IPORecord) ListingDate() (time.Time, error) {
	return time.Parse(IPODateLayout, r.IPODate)
}

// Year returns the listing year or 0 when the date does not parse
func (r IPORecord) Year() int {
	date, err := r.ListingDate()
	if err != nil {
		return 0
	}
	return date.Year()
}

// Month returns the listing month (1-12) or 0 when the date does not parse
func (r IPORecord) Month() int {
	date, err := r.ListingDate()
	if err != nil {
		return 0
	}
	return int(date.Month())
}

// HasKnownPrice reports whether the offer price can be used for return computation
func (r IPORecord) HasKnownPrice() bool {
	return r.IPOPrice > 0
}

// Dataset is the envelope written by the ingestion tools
type Dataset struct {
	LastUpdated string      `json:"last_updated"`
	Source      string      `json:"source"`
	IPOs        []IPORecord `json:"ipos"`
}

// RecordOutcome is the validation result for one raw entry of the backing file
type RecordOutcome struct {
	Index  int       `json:"index"`
	Record IPORecord `json:"record"`
	Valid  bool      `json:"valid"`
	Reason string    `json:"reason,omitempty"`
}
