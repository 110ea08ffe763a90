package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/fenilmodi00/ipo-scorecard/config"
	"github.com/fenilmodi00/ipo-scorecard/database"
	"github.com/fenilmodi00/ipo-scorecard/jobs"
	"github.com/fenilmodi00/ipo-scorecard/services"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

// configFrom extracts the configuration passed to Execute
func configFrom(args []interface{}) *config.Config {
	for _, arg := range args {
		if cfg, ok := arg.(*config.Config); ok {
			return cfg
		}
	}
	return config.FromEnvironment()
}

// newCalendarJob wires the ingestion pipeline. The returned cleanup releases
// the HTTP clients and the database when one was opened.
func newCalendarJob(cfg *config.Config, withAudit bool) (*jobs.IPOCalendarJob, func(), error) {
	store, err := services.LoadRecordStore(cfg.DataFile, config.LoadPolicyLenient)
	if err != nil {
		return nil, nil, err
	}

	ingestion := cfg.Unified.Ingestion
	calendar := services.NewFinnhubCalendarClient(ingestion, cfg.FinnhubAPIKey)
	provider := services.NewYahooQuoteProvider(cfg.Unified.Quote)
	mergers := services.MergerDirectories{store, services.NewStaticMergerDirectory(cfg.MergedTickers)}
	resolver := services.NewQuoteResolver(provider, services.NewMemoryQuoteCache(cfg.Unified.Cache.MaxSize),
		mergers, cfg.Unified.Cache, cfg.Unified.Quote.HTTPRequestTimeout)

	var renderer services.PageRenderer
	if ingestion.EnableRenderer {
		renderer = services.NewChromedpRenderer(ingestion.RenderTimeout)
	}
	sectors := services.NewSectorLookupService(ingestion.Profile, renderer)

	job := jobs.NewIPOCalendarJob(calendar, resolver, provider, sectors, store,
		services.NewDatasetWriter(cfg.DataFile, cfg.BackupFile),
		jobs.IngestionSettings{
			PendingFile:      cfg.PendingFile,
			FailedFile:       cfg.FailedFile,
			StartDate:        ingestion.StartDate,
			FirstTradeWindow: ingestion.FirstTradeWindow,
		})

	cleanup := func() {
		calendar.GetHTTPMetrics().LogHTTPSummary()
		provider.Close()
	}
	if withAudit && cfg.DatabaseURL != "" {
		db, err := database.Open(cfg.DatabaseURL, &cfg.Unified.Database)
		if err != nil {
			logrus.WithError(err).Warn("Audit log unavailable, continuing without it")
		} else {
			if err := database.MigrateDB(db, database.Schema()); err != nil {
				logrus.WithError(err).Warn("Audit log migration failed")
			}
			job.WithAuditLog(database.NewIngestionLogRepository(db))
			closeClients := cleanup
			cleanup = func() {
				closeClients()
				db.Close()
			}
		}
	}

	return job, cleanup, nil
}

type findMissingCmd struct {
	start string
}

func (*findMissingCmd) Name() string { return "find-missing" }
func (*findMissingCmd) Synopsis() string {
	return "list calendar IPOs that are missing from the backing file"
}
func (*findMissingCmd) Usage() string {
	return `ingest find-missing [-start <YYYY-MM-DD>]

  Fetches the Finnhub IPO calendar from the start date to today and writes
  every listing the backing file does not contain to the pending file.
`
}

func (p *findMissingCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.start, "start", "", "First calendar date to fetch. Defaults to INGEST_START_DATE.")
}

func (p *findMissingCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cfg := configFrom(args)
	if p.start != "" {
		cfg.Unified.Ingestion.StartDate = p.start
	}

	job, cleanup, err := newCalendarJob(cfg, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer cleanup()

	pending, err := job.FindMissing(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Existing entries: %d\n", pending.ExistingCount)
	fmt.Printf("Pending entries:  %d (%s to %s)\n", pending.PendingCount, pending.DateRange.From, pending.DateRange.To)
	fmt.Printf("Pending file:     %s\n", cfg.PendingFile)
	return subcommands.ExitSuccess
}

type processPendingCmd struct {
	jsonOutput bool
}

func (*processPendingCmd) Name() string { return "process-pending" }
func (*processPendingCmd) Synopsis() string {
	return "price pending IPOs and append the ones that trade to the backing file"
}
func (*processPendingCmd) Usage() string {
	return `ingest process-pending [-json]

  Reads the pending file, looks up the first-trade price and sector of each
  entry, appends the accepted ones to the backing file after a backup and
  writes the rest to the failed file.
`
}

func (p *processPendingCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&p.jsonOutput, "json", false, "Print the run report as JSON.")
}

func (p *processPendingCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cfg := configFrom(args)

	job, cleanup, err := newCalendarJob(cfg, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer cleanup()

	report, err := job.ProcessPending(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if p.jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	fmt.Printf("Total pending entries:  %d\n", report.Total)
	fmt.Printf("Skipped (duplicates):   %d\n", report.Skipped)
	fmt.Printf("Successfully processed: %d\n", len(report.Accepted))
	fmt.Printf("Failed to fetch:        %d\n", len(report.Failed))
	if report.Append.Appended > 0 {
		fmt.Printf("Backing file now holds %d IPOs\n", report.Append.Total)
	}
	return subcommands.ExitSuccess
}

type checkCmd struct{}

func (*checkCmd) Name() string     { return "check" }
func (*checkCmd) Synopsis() string { return "validate the backing file" }
func (*checkCmd) Usage() string {
	return `ingest check

  Loads the backing file under the strict policy and reports the first
  invalid record, if any.
`
}

func (*checkCmd) SetFlags(*flag.FlagSet) {}

func (*checkCmd) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cfg := configFrom(args)

	store, err := services.LoadRecordStore(cfg.DataFile, config.LoadPolicyStrict)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		return subcommands.ExitFailure
	}

	snapshot := store.Snapshot()
	fmt.Printf("valid: %d records (%s layout, %d duplicate tickers)\n",
		len(snapshot.Records), snapshot.Shape, snapshot.Duplicates)
	if snapshot.LastUpdated != "" {
		fmt.Printf("last updated: %s\n", snapshot.LastUpdated)
	}
	return subcommands.ExitSuccess
}
