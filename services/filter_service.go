package services

import (
	"sort"
	"strings"

	"github.com/fenilmodi00/ipo-scorecard/models"
)

// AllSectorsLabel is the sector picker entry that disables the sector filter
const AllSectorsLabel = "All Sectors"

// FilterCriteria holds exact-match predicates. Nil fields match everything.
type FilterCriteria struct {
	Year   *int
	Month  *int
	Sector *string
}

// ResolvedView is the single query a ViewCriteria turns into
type ResolvedView struct {
	Mode     models.ViewMode
	Query    string
	Criteria FilterCriteria
}

// Filter keeps records matching every present criterion, in input order
func Filter(records []models.IPORecord, criteria FilterCriteria) []models.IPORecord {
	filtered := make([]models.IPORecord, 0, len(records))
	for _, record := range records {
		if criteria.Year != nil && record.Year() != *criteria.Year {
			continue
		}
		if criteria.Month != nil && record.Month() != *criteria.Month {
			continue
		}
		if criteria.Sector != nil && record.Sector != *criteria.Sector {
			continue
		}
		filtered = append(filtered, record)
	}
	return filtered
}

// Search keeps records whose name or ticker contains query, ignoring case.
// A blank query matches nothing.
func Search(records []models.IPORecord, query string) []models.IPORecord {
	needle := strings.ToLower(strings.TrimSpace(query))
	matches := make([]models.IPORecord, 0)
	if needle == "" {
		return matches
	}
	for _, record := range records {
		if strings.Contains(strings.ToLower(record.Name), needle) ||
			strings.Contains(strings.ToLower(record.Ticker), needle) {
			matches = append(matches, record)
		}
	}
	return matches
}

// SelectView picks the query mode. A non-blank search query wins and the
// filter criteria are dropped.
func SelectView(criteria models.ViewCriteria) ResolvedView {
	if query := strings.TrimSpace(criteria.Query); query != "" {
		return ResolvedView{Mode: models.ViewModeSearch, Query: query}
	}
	return ResolvedView{
		Mode: models.ViewModeFilter,
		Criteria: FilterCriteria{
			Year:   criteria.Year,
			Month:  criteria.Month,
			Sector: criteria.Sector,
		},
	}
}

// Apply runs the view against records
func (v ResolvedView) Apply(records []models.IPORecord) []models.IPORecord {
	if v.Mode == models.ViewModeSearch {
		return Search(records, v.Query)
	}
	return Filter(records, v.Criteria)
}

// ViewCriteria renders the canonical criteria back, for echoing to clients
func (v ResolvedView) ViewCriteria() models.ViewCriteria {
	if v.Mode == models.ViewModeSearch {
		return models.ViewCriteria{Query: v.Query}
	}
	return models.ViewCriteria{
		Year:   v.Criteria.Year,
		Month:  v.Criteria.Month,
		Sector: v.Criteria.Sector,
	}
}

// UniqueSectors returns the distinct sectors, sorted
func UniqueSectors(records []models.IPORecord) []string {
	seen := make(map[string]struct{})
	sectors := make([]string, 0)
	for _, record := range records {
		if _, ok := seen[record.Sector]; ok {
			continue
		}
		seen[record.Sector] = struct{}{}
		sectors = append(sectors, record.Sector)
	}
	sort.Strings(sectors)
	return sectors
}

// SectorOptions is UniqueSectors with the "All Sectors" entry first
func SectorOptions(records []models.IPORecord) []string {
	return append([]string{AllSectorsLabel}, UniqueSectors(records)...)
}
