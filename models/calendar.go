package models

// CalendarEntry is one row of the Finnhub IPO calendar
type CalendarEntry struct {
	Date             string  `json:"date"`
	Exchange         string  `json:"exchange"`
	Name             string  `json:"name"`
	NumberOfShares   float64 `json:"numberOfShares"`
	Price            string  `json:"price"`
	Status           string  `json:"status"`
	Symbol           string  `json:"symbol"`
	TotalSharesValue float64 `json:"totalSharesValue"`
}

// CalendarResponse is the body of /calendar/ipo
type CalendarResponse struct {
	IPOCalendar []*CalendarEntry `json:"ipoCalendar"`
}

// PendingIPO is a calendar entry not yet present in the backing file
type PendingIPO struct {
	Ticker   string  `json:"ticker"`
	Name     string  `json:"name"`
	IPODate  string  `json:"ipo_date"`
	IPOPrice float64 `json:"ipo_price"`
	Exchange string  `json:"exchange"`
	Sector   string  `json:"sector"`
	Status   string  `json:"status"`
	Source   string  `json:"source"`
}

// DateRange bounds a calendar query
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PendingFile is the document written by find-missing and read by process-pending
type PendingFile struct {
	GeneratedAt    string       `json:"generated_at"`
	Source         string       `json:"source"`
	DateRange      DateRange    `json:"date_range"`
	ExistingCount  int          `json:"existing_count"`
	PendingCount   int          `json:"pending_count"`
	Note           string       `json:"note,omitempty"`
	PendingEntries []PendingIPO `json:"pending_entries"`
}

// FailedIPO is a pending entry that could not be ingested
type FailedIPO struct {
	Ticker  string `json:"ticker"`
	Name    string `json:"name"`
	IPODate string `json:"ipo_date"`
	Error   string `json:"error"`
}

// FailedFile is the document listing rejected pending entries
type FailedFile struct {
	GeneratedAt   string      `json:"generated_at"`
	Note          string      `json:"note,omitempty"`
	FailedCount   int         `json:"failed_count"`
	FailedEntries []FailedIPO `json:"failed_entries"`
}
