package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-etl/internal/analytics"
	"github.com/dvloznov/retail-etl/internal/config"
	"github.com/dvloznov/retail-etl/internal/datalake"
	"github.com/dvloznov/retail-etl/internal/domain"
	"github.com/dvloznov/retail-etl/internal/ingestion"
	"github.com/dvloznov/retail-etl/internal/logger"
	"github.com/dvloznov/retail-etl/internal/pipeline"
	"github.com/dvloznov/retail-etl/internal/warehouse"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Logger.Level)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runBatch(cfg, log)
	case "cdc":
		runCDC(cfg, log)
	case "forecast":
		runForecast(cfg, log)
	case "archive":
		runArchive(cfg, log)
	case "revenue":
		runRevenue(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Retail ETL")
	fmt.Println("\nUsage:")
	fmt.Println("  etl <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  run       Process the raw dataset end to end and load the warehouse")
	fmt.Println("  cdc       Process the raw dataset as an initial plus incremental delivery")
	fmt.Println("  forecast  Print the projected daily revenue for the coming days")
	fmt.Println("  archive   Upload a raw source file to the data lake")
	fmt.Println("  revenue   Print revenue by country from the warehouse")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'etl <command> -h' for more information on a command.")
}

// ingest loads the raw dataset and the rate table, the shared front half of
// every processing command.
func ingest(ctx context.Context, cfg *config.Config, log zerolog.Logger) ([]domain.RawRecord, domain.RateTable, error) {
	raw, err := ingestion.NewCSVLoader(log, cfg.Ingestion.RawDataPath).Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading raw data: %w", err)
	}

	rates, err := ingestion.NewFXFetcher(cfg.FX, log).GetRates(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching exchange rates: %w", err)
	}

	return raw, rates, nil
}

// newLoader returns the warehouse loader, or nil for transform-only runs when
// no GCP project is configured.
func newLoader(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*warehouse.Warehouse, error) {
	if cfg.GCP.ProjectID == "" {
		log.Warn().Msg("No GCP project configured, running transform-only")
		return nil, nil
	}
	return warehouse.New(ctx, cfg.GCP, log)
}

func orchestratorConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		BaseCurrency:  cfg.FX.BaseCurrency,
		CDCSplitRatio: cfg.CDC.SplitRatio,
	}
}

func runBatch(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	raw, rates, err := ingest(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	wh, err := newLoader(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Warehouse connection failed")
	}
	var loader pipeline.Loader
	if wh != nil {
		loader = wh
		defer wh.Close()
	}

	result, err := pipeline.NewOrchestrator(orchestratorConfig(cfg), loader, log).Run(ctx, raw, rates)
	if err != nil {
		log.Fatal().Err(err).Msg("Pipeline run failed")
	}

	fmt.Printf("Run %s completed: %d records, %d customer profiles.\n",
		result.RunID, result.Batch.Len(), len(result.Profiles))
}

func runCDC(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("cdc", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	raw, rates, err := ingest(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	wh, err := newLoader(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Warehouse connection failed")
	}
	var loader pipeline.Loader
	if wh != nil {
		loader = wh
		defer wh.Close()
	}

	results, err := pipeline.NewOrchestrator(orchestratorConfig(cfg), loader, log).RunCDC(ctx, raw, rates)
	if err != nil {
		log.Fatal().Err(err).Msg("CDC run failed")
	}

	for i, result := range results {
		kind := "initial"
		if i > 0 {
			kind = "incremental"
		}
		fmt.Printf("%s run %s: %d records, %d customer profiles.\n",
			kind, result.RunID, result.Batch.Len(), len(result.Profiles))
	}
}

func runForecast(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("forecast", flag.ExitOnError)
	horizon := fs.Int("days", 7, "Number of days to forecast")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	raw, rates, err := ingest(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	result, err := pipeline.NewOrchestrator(orchestratorConfig(cfg), nil, log).Run(ctx, raw, rates)
	if err != nil {
		log.Fatal().Err(err).Msg("Pipeline run failed")
	}

	forecast, err := analytics.NewPredictor(log).ForecastRevenue(result.Batch, *horizon)
	if err != nil {
		log.Fatal().Err(err).Msg("Forecast failed")
	}

	fmt.Printf("Projected daily revenue (%s):\n", cfg.FX.BaseCurrency)
	for _, pt := range forecast {
		fmt.Printf("  %s  %12.2f\n", pt.Date.Format("2006-01-02"), pt.Revenue)
	}
}

func runArchive(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to the local source file")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Error: --file is required")
	}
	if cfg.GCP.BucketName == "" {
		log.Fatal().Msg("Error: GCP_BUCKET_NAME is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	uri, err := datalake.NewGCSStore(cfg.GCP, log).ArchiveFile(ctx, *filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Archive failed")
	}

	fmt.Printf("Archived %s to %s\n", *filePath, uri)
}

func runRevenue(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("revenue", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	if cfg.GCP.ProjectID == "" {
		log.Fatal().Msg("Error: GCP_PROJECT_ID is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	wh, err := warehouse.New(ctx, cfg.GCP, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Warehouse connection failed")
	}
	defer wh.Close()

	rows, err := wh.RevenueByCountry(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Query failed")
	}

	fmt.Printf("Revenue by country (%s):\n", cfg.FX.BaseCurrency)
	for _, row := range rows {
		revenue, _ := row.Revenue.Float64()
		fmt.Printf("  %-24s %8d lines  %14.2f\n", row.Country, row.Lines, revenue)
	}
}
