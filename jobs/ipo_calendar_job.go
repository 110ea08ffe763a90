package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/fenilmodi00/ipo-scorecard/services"
	"github.com/fenilmodi00/ipo-scorecard/shared"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	pendingNote = "Calendar entries not yet in the backing file. Run process-pending to fetch first-trade prices."
	failedNote  = "These entries could not be priced. They may be delisted, have wrong tickers, or not yet trading."
)

// SectorLookup names the sector of a ticker
type SectorLookup interface {
	LookupSector(ctx context.Context, ticker string) (string, error)
}

// OutcomeRecorder stores the outcome of one pending entry
type OutcomeRecorder interface {
	Insert(ctx context.Context, entry *models.IngestionLogEntry) error
}

// IngestionSettings are the file locations and windows of a run
type IngestionSettings struct {
	PendingFile      string
	FailedFile       string
	StartDate        string
	FirstTradeWindow time.Duration
}

// ProcessReport summarizes one process-pending run
type ProcessReport struct {
	RunID    uuid.UUID             `json:"run_id"`
	Total    int                   `json:"total"`
	Accepted []models.IPORecord    `json:"accepted"`
	Failed   []models.FailedIPO    `json:"failed"`
	Skipped  int                   `json:"skipped"`
	Append   services.AppendResult `json:"append"`
}

// IPOCalendarJob finds calendar IPOs missing from the backing file and
// ingests them once they trade
type IPOCalendarJob struct {
	Calendar services.CalendarFetcher
	Quotes   services.QuoteSource
	History  services.HistoryProvider
	Sectors  SectorLookup
	Store    *services.RecordStore
	Writer   *services.DatasetWriter
	AuditLog OutcomeRecorder
	Settings IngestionSettings
	Now      services.Clock
}

func NewIPOCalendarJob(calendar services.CalendarFetcher, quotes services.QuoteSource, history services.HistoryProvider,
	sectors SectorLookup, store *services.RecordStore, writer *services.DatasetWriter, settings IngestionSettings) *IPOCalendarJob {
	return &IPOCalendarJob{
		Calendar: calendar,
		Quotes:   quotes,
		History:  history,
		Sectors:  sectors,
		Store:    store,
		Writer:   writer,
		Settings: settings,
		Now:      time.Now,
	}
}

// WithAuditLog records every outcome of process-pending
func (j *IPOCalendarJob) WithAuditLog(recorder OutcomeRecorder) *IPOCalendarJob {
	j.AuditLog = recorder
	return j
}

// FindMissing fetches the calendar from the start date to today and writes
// the entries the backing file does not have yet
func (j *IPOCalendarJob) FindMissing(ctx context.Context) (models.PendingFile, error) {
	logrus.Info("Starting Find Missing IPOs Job")
	startTime := time.Now()

	now := j.Now()
	from, err := time.Parse(models.IPODateLayout, j.Settings.StartDate)
	if err != nil {
		serviceErr := shared.NewServiceError(shared.ErrorCategoryConfiguration, "INVALID_START_DATE",
			fmt.Sprintf("invalid start date %q", j.Settings.StartDate), "IPOCalendarJob", "FindMissing", false, err)
		serviceErr.LogError()
		return models.PendingFile{}, serviceErr
	}
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	entries, err := j.Calendar.FetchRange(ctx, from, to)
	if err != nil {
		logrus.Errorf("Failed to run Find Missing IPOs Job: %v", err)
		return models.PendingFile{}, err
	}

	records := j.Store.Records()
	pending := services.FindMissingIPOs(entries, services.ExistingTickers(records))

	output := models.PendingFile{
		GeneratedAt: now.Format(services.GeneratedAtLayout),
		Source:      "Finnhub IPO Calendar",
		DateRange: models.DateRange{
			From: from.Format(models.IPODateLayout),
			To:   to.Format(models.IPODateLayout),
		},
		ExistingCount:  len(records),
		PendingCount:   len(pending),
		Note:           pendingNote,
		PendingEntries: pending,
	}

	if err := services.WritePendingFile(j.Settings.PendingFile, output); err != nil {
		return output, err
	}

	logrus.WithFields(logrus.Fields{
		"calendar_entries": len(entries),
		"existing":         len(records),
		"pending":          len(pending),
		"pending_file":     j.Settings.PendingFile,
		"duration":         time.Since(startTime),
	}).Info("Find Missing IPOs Job completed")

	return output, nil
}

// ProcessPending prices every pending entry, appends the ones that trade and
// writes the rest to the failed file
func (j *IPOCalendarJob) ProcessPending(ctx context.Context) (ProcessReport, error) {
	logrus.Info("Starting Process Pending IPOs Job")
	startTime := time.Now()

	report := ProcessReport{RunID: uuid.New(), Accepted: []models.IPORecord{}, Failed: []models.FailedIPO{}}
	logger := logrus.WithFields(logrus.Fields{"component": "IPOCalendarJob", "run_id": report.RunID})

	pendingFile, err := services.ReadPendingFile(j.Settings.PendingFile)
	if err != nil {
		return report, err
	}
	report.Total = len(pendingFile.PendingEntries)

	existing := services.ExistingTickers(j.Store.Records())
	var sampleErrors []error

	for idx, entry := range pendingFile.PendingEntries {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		ticker := strings.ToUpper(strings.TrimSpace(entry.Ticker))
		entryLogger := logger.WithFields(logrus.Fields{
			"progress": fmt.Sprintf("%d/%d", idx+1, report.Total),
			"ticker":   ticker,
		})

		if ticker == "" || strings.TrimSpace(entry.IPODate) == "" {
			report.Skipped++
			j.audit(ctx, report.RunID, ticker, models.IngestionSkipped, "missing ticker or date", nil, "")
			continue
		}
		if _, seen := existing[ticker]; seen {
			report.Skipped++
			entryLogger.Debug("Skipped, already in backing file")
			j.audit(ctx, report.RunID, ticker, models.IngestionSkipped, "already in backing file", nil, "")
			continue
		}

		record, trade, err := j.ingest(ctx, ticker, entry)
		if err != nil {
			if len(sampleErrors) < 3 {
				sampleErrors = append(sampleErrors, fmt.Errorf("%s: %w", ticker, err))
			}
			report.Failed = append(report.Failed, models.FailedIPO{
				Ticker:  ticker,
				Name:    entry.Name,
				IPODate: entry.IPODate,
				Error:   err.Error(),
			})
			entryLogger.WithError(err).Warn("Pending IPO rejected")
			j.audit(ctx, report.RunID, ticker, models.IngestionRejected, err.Error(), nil, "")
			continue
		}

		existing[ticker] = struct{}{}
		report.Accepted = append(report.Accepted, record)
		price := record.IPOPrice
		j.audit(ctx, report.RunID, ticker, models.IngestionAccepted, "", &price, trade.Source)
		entryLogger.WithFields(logrus.Fields{
			"ipo_price": record.IPOPrice,
			"source":    trade.Source,
		}).Info("Pending IPO accepted")
	}

	if len(report.Accepted) > 0 {
		appended, err := j.Writer.Append(report.Accepted)
		report.Append = appended
		if err != nil {
			return report, err
		}
		if err := j.Store.Reload(); err != nil {
			logger.WithError(err).Warn("Backing file written but reload failed")
		}
	}

	if len(report.Failed) > 0 {
		failedFile := models.FailedFile{
			GeneratedAt:   j.Now().Format(services.GeneratedAtLayout),
			Note:          failedNote,
			FailedCount:   len(report.Failed),
			FailedEntries: report.Failed,
		}
		if err := services.WriteFailedFile(j.Settings.FailedFile, failedFile); err != nil {
			return report, err
		}
	}

	fields := logrus.Fields{
		"total":    report.Total,
		"accepted": len(report.Accepted),
		"failed":   len(report.Failed),
		"skipped":  report.Skipped,
		"duration": time.Since(startTime),
	}
	if len(report.Failed) > 0 {
		fields["summary"] = shared.BuildBatchProcessingErrorSummary(len(report.Accepted), len(report.Failed), sampleErrors)
	}
	logger.WithFields(fields).Info("Process Pending IPOs Job completed")

	return report, nil
}

// ingest turns one pending entry into a backing file record
func (j *IPOCalendarJob) ingest(ctx context.Context, ticker string, entry models.PendingIPO) (models.IPORecord, models.FirstTrade, error) {
	quote, err := j.Quotes.ResolveWithOptions(ctx, ticker, services.ResolveOptions{ForceRefresh: true})
	if err != nil {
		return models.IPORecord{}, models.FirstTrade{}, err
	}
	if quote.Status != models.QuoteStatusActive {
		return models.IPORecord{}, models.FirstTrade{}, fmt.Errorf("ticker is %s", quote.Status.Label())
	}

	listedOn, err := time.Parse(models.IPODateLayout, strings.TrimSpace(entry.IPODate))
	if err != nil {
		return models.IPORecord{}, models.FirstTrade{}, fmt.Errorf("invalid ipo_date %q", entry.IPODate)
	}

	trade, err := j.History.FirstTrade(ctx, ticker, listedOn, j.Settings.FirstTradeWindow)
	if err != nil {
		if errors.Is(err, services.ErrSymbolNotFound) {
			return models.IPORecord{}, models.FirstTrade{}, errors.New("no price data available")
		}
		return models.IPORecord{}, models.FirstTrade{}, err
	}
	if trade.Price <= 0 {
		return models.IPORecord{}, models.FirstTrade{}, errors.New("no usable first-trade price")
	}

	sector := entry.Sector
	if j.Sectors != nil {
		found, err := j.Sectors.LookupSector(ctx, ticker)
		if err == nil && found != "" && found != models.UnknownSector {
			sector = found
		}
	}
	if strings.TrimSpace(sector) == "" {
		sector = models.UnknownSector
	}

	ipoDate := trade.Date
	if ipoDate == "" {
		ipoDate = entry.IPODate
	}

	return models.IPORecord{
		Ticker:   ticker,
		Name:     entry.Name,
		IPODate:  ipoDate,
		IPOPrice: trade.Price,
		Exchange: entry.Exchange,
		Sector:   sector,
	}, trade, nil
}

func (j *IPOCalendarJob) audit(ctx context.Context, runID uuid.UUID, ticker string, outcome models.IngestionOutcome, reason string, price *float64, source string) {
	if j.AuditLog == nil {
		return
	}
	entry := &models.IngestionLogEntry{
		RunID:    runID,
		Ticker:   ticker,
		Outcome:  outcome,
		Reason:   reason,
		IPOPrice: price,
		Source:   source,
	}
	if err := j.AuditLog.Insert(ctx, entry); err != nil {
		logrus.WithFields(logrus.Fields{
			"component": "IPOCalendarJob",
			"ticker":    ticker,
		}).WithError(err).Warn("Failed to record ingestion outcome")
	}
}
