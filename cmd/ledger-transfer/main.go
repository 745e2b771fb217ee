package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ledgersync_backend/config"
	"bitbucket.org/mmdatafocus/ledgersync_backend/models"
	"bitbucket.org/mmdatafocus/ledgersync_backend/transfer"
)

// One-shot transfer job: copies recent ledger invoices into the mirror
// database and exits. Meant for cron / Cloud Run jobs; the HTTP service
// runs the same stage via POST /transfer/run.
func main() {
	from := flag.String("from", "", "Optional: start date (YYYY-MM-DD). Defaults to the lookback window.")
	to := flag.String("to", "", "Optional: end date (YYYY-MM-DD). Defaults to today.")
	days := flag.Int("days", 0, "Lookback window in days when -from is not given (default from TRANSFER_LOOKBACK_DAYS)")
	flag.Parse()

	ctx := context.Background()
	logger := config.GetLogger()

	if err := config.LoadBoardSettings(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid settings: %v\n", err)
		os.Exit(1)
	}
	settings := config.GetBoardSettings()

	// Explicit DB connect (config does not connect in init()).
	config.ConnectDatabasesWithRetry()
	sourceDB := config.GetSourceDB()
	mirrorDB := config.GetMirrorDB()
	if sourceDB == nil || mirrorDB == nil {
		fmt.Fprintln(os.Stderr, "databases not initialized")
		os.Exit(1)
	}

	// Ensure the mirror schema exists (creates mirror_invoices if missing).
	if err := models.MigrateMirrorTables(mirrorDB); err != nil {
		fmt.Fprintf(os.Stderr, "mirror schema migration failed: %v\n", err)
		os.Exit(1)
	}

	lookback := settings.TransferLookbackDays
	if *days > 0 {
		lookback = *days
	}
	fromDate, toDate := transfer.DefaultRange(lookback)
	if strings.TrimSpace(*from) != "" {
		parsed, err := time.Parse("2006-01-02", strings.TrimSpace(*from))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -from date: %v\n", err)
			os.Exit(1)
		}
		fromDate = parsed
	}
	if strings.TrimSpace(*to) != "" {
		parsed, err := time.Parse("2006-01-02", strings.TrimSpace(*to))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -to date: %v\n", err)
			os.Exit(1)
		}
		toDate = parsed
	}

	result, err := transfer.Run(ctx, logger,
		models.NewLedgerStore(sourceDB),
		models.NewMirrorStore(mirrorDB),
		fromDate, toDate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "transfer failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("transfer complete: scanned=%d inserted=%d window=%s..%s\n",
		result.Scanned, result.Inserted,
		fromDate.Format("2006-01-02"), toDate.Format("2006-01-02"))
}
