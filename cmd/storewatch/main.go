// Package main implements the storeWatch CLI: load the input CSVs into
// the database, generate one uptime report synchronously, and print a
// summary of the result.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/codeGROOVE-dev/storeWatch/pkg/ingest"
	"github.com/codeGROOVE-dev/storeWatch/pkg/store"
	"github.com/codeGROOVE-dev/storeWatch/pkg/uptime"
)

var (
	dbPath     = flag.String("db", "store_monitoring.db", "SQLite database path (or set DATABASE_PATH)")
	outPath    = flag.String("out", "report.csv", "Output CSV path")
	maxWorkers = flag.Int("max-workers", 0, "Concurrent store aggregations (0 = min(4, CPUs))")
	defaultTZ  = flag.String("default-tz", uptime.DefaultTimezone, "Timezone for stores without a timezone row")
	skipIngest = flag.Bool("skip-ingest", false, "Report from the existing database without reloading CSVs")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("storeWatch CLI v1.0.0")
		return
	}

	args := flag.Args()
	if len(args) != 1 && !*skipIngest {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <data-dir>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	level := slog.LevelError
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	if *dbPath == "store_monitoring.db" && os.Getenv("DATABASE_PATH") != "" {
		*dbPath = os.Getenv("DATABASE_PATH")
	}

	ctx := context.Background()

	db, err := store.OpenAndPing(ctx, *dbPath, logger)
	if err != nil {
		logger.Error("Database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	if !*skipIngest {
		start := time.Now()
		if err := ingest.LoadDir(ctx, db, args[0], logger); err != nil {
			logger.Error("Ingest failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %s in %v\n", args[0], time.Since(start).Round(time.Millisecond))
	}

	engine := uptime.NewWithLogger(ctx, logger,
		uptime.WithMaxWorkers(*maxWorkers),
		uptime.WithDefaultTimezone(*defaultTZ),
	)

	start := time.Now()
	if err := engine.GenerateReport(ctx, db, *outPath, ""); err != nil {
		logger.Error("Report failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Report written to %s in %v\n", *outPath, time.Since(start).Round(time.Millisecond))

	if err := printSummary(*outPath); err != nil {
		logger.Error("Summary failed", "error", err)
	}
}

// printSummary re-reads the generated CSV and prints the first few rows,
// coloring stores that were fully up green and fully down red.
func printSummary(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening report: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return fmt.Errorf("reading report: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	header := color.New(color.Bold)
	good := color.New(color.FgGreen)
	bad := color.New(color.FgRed)

	rows := records[1:]
	header.Printf("\n%d stores\n", len(rows))

	const preview = 10
	for i, row := range rows {
		if i == preview {
			fmt.Printf("… and %d more\n", len(rows)-preview)
			break
		}
		if len(row) < 7 {
			continue
		}
		line := fmt.Sprintf("%s  up %s min/h %s h/d %s h/w  down %s min/h %s h/d %s h/w",
			row[0], row[1], row[2], row[3], row[4], row[5], row[6])
		switch {
		case row[4] == "0.00" && row[5] == "0.00" && row[6] == "0.00":
			good.Println(line)
		case row[1] == "0.00" && row[2] == "0.00" && row[3] == "0.00":
			bad.Println(line)
		default:
			fmt.Println(line)
		}
	}
	return nil
}
