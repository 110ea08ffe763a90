// Command ingest maintains the IPO backing file from the Finnhub calendar.
//
//	ingest find-missing      list calendar IPOs the backing file lacks
//	ingest process-pending   price pending IPOs and append the ones that trade
//	ingest check             validate the backing file
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/fenilmodi00/ipo-scorecard/config"
	"github.com/fenilmodi00/ipo-scorecard/shared"
	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range commands {
		commander.Register(c, "ingestion")
	}

	flag.Parse()

	cfg := config.LoadConfig()
	shared.ConfigureLogging(cfg.Unified.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(int(commander.Execute(ctx, cfg)))
}

var commands = []subcommands.Command{
	&findMissingCmd{},
	&processPendingCmd{},
	&checkCmd{},
}
