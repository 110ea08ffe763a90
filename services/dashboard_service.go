package services

import (
	"context"
	"fmt"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/sirupsen/logrus"
)

// DatasetMetadata describes the loaded backing file
type DatasetMetadata struct {
	LastUpdated string    `json:"last_updated"`
	Source      string    `json:"source"`
	Path        string    `json:"path"`
	Shape       FileShape `json:"shape"`
	Records     int       `json:"records"`
	Skipped     int       `json:"skipped"`
	Duplicates  int       `json:"duplicates"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// DashboardService runs one dashboard query: store, view, enrichment, aggregation
type DashboardService struct {
	store  *RecordStore
	engine *MetricsEngine
}

// NewDashboardService creates the query pipeline
func NewDashboardService(store *RecordStore, engine *MetricsEngine) *DashboardService {
	return &DashboardService{store: store, engine: engine}
}

// BuildView answers one dashboard query
func (s *DashboardService) BuildView(ctx context.Context, criteria models.ViewCriteria, opts ResolveOptions) models.DashboardView {
	view := SelectView(criteria)
	selected := view.Apply(s.store.Records())
	enriched := s.engine.Enrich(ctx, selected, opts)

	result := models.DashboardView{
		Mode:            view.Mode,
		Criteria:        view.ViewCriteria(),
		Records:         enriched,
		Summary:         s.engine.Aggregate(enriched),
		Sectors:         s.engine.SectorBreakdown(enriched),
		PriceComparison: s.engine.PriceComparison(enriched),
		NotFound:        len(enriched) == 0,
		LastUpdated:     s.store.LastUpdated(),
	}

	if result.NotFound {
		if view.Mode == models.ViewModeSearch {
			result.Message = fmt.Sprintf("No IPOs found matching %q", view.Query)
		} else {
			result.Message = "No IPOs match the selected filters"
		}
	}

	logrus.WithFields(logrus.Fields{
		"component": "DashboardService",
		"mode":      view.Mode,
		"records":   len(enriched),
		"refresh":   opts.ForceRefresh,
	}).Debug("Built dashboard view")

	return result
}

// GetRecord enriches a single record. It returns nil when the ticker is unknown.
func (s *DashboardService) GetRecord(ctx context.Context, ticker string, opts ResolveOptions) *models.EnrichedRecord {
	record, ok := s.store.Lookup(ticker)
	if !ok {
		return nil
	}
	enriched := s.engine.Enrich(ctx, []models.IPORecord{record}, opts)
	return &enriched[0]
}

// SectorOptions lists the sector picker entries
func (s *DashboardService) SectorOptions() []string {
	return SectorOptions(s.store.Records())
}

// Metadata describes the current snapshot
func (s *DashboardService) Metadata() DatasetMetadata {
	metadata := DatasetMetadata{Path: s.store.Path()}
	snapshot := s.store.Snapshot()
	if snapshot == nil {
		return metadata
	}
	metadata.LastUpdated = snapshot.LastUpdated
	metadata.Source = snapshot.Source
	metadata.Shape = snapshot.Shape
	metadata.Records = len(snapshot.Records)
	metadata.Skipped = len(snapshot.Skipped)
	metadata.Duplicates = snapshot.Duplicates
	metadata.LoadedAt = snapshot.LoadedAt
	return metadata
}

// Reload re-reads the backing file
func (s *DashboardService) Reload() error {
	return s.store.Reload()
}
