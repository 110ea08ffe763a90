package models

// EnrichedRecord is an IPORecord annotated with its current market state
type EnrichedRecord struct {
	IPORecord

	Status       QuoteStatus `json:"status"`
	CurrentPrice *float64    `json:"current_price"`
	ReturnPct    *float64    `json:"return_pct"`

	StatusLabel         string `json:"status_label"`
	IPOPriceDisplay     string `json:"ipo_price_display"`
	CurrentPriceDisplay string `json:"current_price_display"`
	ReturnDisplay       string `json:"return_display"`
}

// Summary aggregates a set of enriched records
type Summary struct {
	Total            int             `json:"total"`
	Active           int             `json:"active"`
	Inactive         int             `json:"inactive"`
	Unavailable      int             `json:"unavailable"`
	AverageReturnPct *float64        `json:"average_return_pct"`
	TopPerformer     *EnrichedRecord `json:"top_performer"`
}

// SectorCount feeds the sector distribution chart
type SectorCount struct {
	Sector string `json:"sector"`
	Count  int    `json:"count"`
}

// PriceComparison feeds the offer price vs current price chart
type PriceComparison struct {
	Ticker       string  `json:"ticker"`
	IPOPrice     float64 `json:"ipo_price"`
	CurrentPrice float64 `json:"current_price"`
}

// ViewMode tells which of the two query modes produced a view
type ViewMode string

const (
	ViewModeFilter ViewMode = "filter"
	ViewModeSearch ViewMode = "search"
)

// ViewCriteria is the raw input of a dashboard query. Nil fields are absent.
type ViewCriteria struct {
	Query  string  `json:"query,omitempty"`
	Year   *int    `json:"year,omitempty"`
	Month  *int    `json:"month,omitempty"`
	Sector *string `json:"sector,omitempty"`
}

// DashboardView is everything the presentation layer needs for one query
type DashboardView struct {
	Mode            ViewMode          `json:"mode"`
	Criteria        ViewCriteria      `json:"criteria"`
	Records         []EnrichedRecord  `json:"records"`
	Summary         Summary           `json:"summary"`
	Sectors         []SectorCount     `json:"sectors"`
	PriceComparison []PriceComparison `json:"price_comparison"`
	NotFound        bool              `json:"not_found"`
	Message         string            `json:"message,omitempty"`
	LastUpdated     string            `json:"last_updated"`
}
