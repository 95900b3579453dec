package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"librarydq/internal/config"
	"librarydq/internal/exporter"
	"librarydq/internal/infrastructure"
	"librarydq/internal/loader"
	"librarydq/internal/metrics"
	"librarydq/internal/pipeline"
	"librarydq/internal/store"
	"librarydq/pkg/contracts"
)

func main() {
	booksFile := flag.String("books", "", "books checkout CSV (defaults to configured path)")
	customersFile := flag.String("customers", "", "customers CSV (defaults to configured path)")
	outDir := flag.String("out", "", "output directory for cleaned CSVs (defaults to configured path)")
	configFile := flag.String("config", "config.yaml", "optional YAML configuration file")
	asOfFlag := flag.String("as-of", "", "overdue reference date as YYYY-MM-DD (defaults to now)")
	skipDB := flag.Bool("skip-db", false, "skip loading results into the bronze database")
	parallel := flag.Bool("parallel", false, "clean both datasets concurrently")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetVersionInfo())
		return
	}

	if err := run(*booksFile, *customersFile, *outDir, *configFile, *asOfFlag, *skipDB, *parallel); err != nil {
		slog.Error("pipeline run failed", "error", err)
		os.Exit(1)
	}
}

func run(booksFile, customersFile, outDir, configFile, asOfFlag string, skipDB, parallel bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if booksFile != "" {
		cfg.Paths.BooksFile = booksFile
	}
	if customersFile != "" {
		cfg.Paths.CustomersFile = customersFile
	}
	if outDir != "" {
		cfg.Paths.OutputDir = outDir
	}
	if parallel {
		cfg.Pipeline.Parallel = true
	}

	var asOf time.Time
	if asOfFlag != "" {
		asOf, err = time.Parse("2006-01-02", asOfFlag)
		if err != nil {
			return fmt.Errorf("parse -as-of %q: %w", asOfFlag, err)
		}
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	batchID := uuid.New().String()
	ctx := infrastructure.WithBatchID(context.Background(), batchID)
	ranAt := time.Now().UTC()

	logger.InfoContext(ctx, "starting library data quality run",
		slog.String("books_file", cfg.Paths.BooksFile),
		slog.String("customers_file", cfg.Paths.CustomersFile),
		slog.String("output_dir", cfg.Paths.OutputDir))

	csvLoader := loader.NewCSVLoader(logger)
	books, err := csvLoader.LoadBooks(ctx, cfg.Paths.BooksFile)
	if err != nil {
		return fmt.Errorf("load books: %w", err)
	}
	customers, err := csvLoader.LoadCustomers(ctx, cfg.Paths.CustomersFile)
	if err != nil {
		return fmt.Errorf("load customers: %w", err)
	}

	runner := pipeline.NewRunner(logger, pipeline.RunnerConfig{
		AsOf:           asOf,
		LoanPeriodDays: cfg.Pipeline.LoanPeriodDays,
		Parallel:       cfg.Pipeline.Parallel,
	})

	tracker := metrics.NewTracker()
	result, err := runner.Run(ctx, books, customers, tracker)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	writer := exporter.NewCSVWriter(logger, cfg.Paths.OutputDir)
	if err := writer.WriteBooks(ctx, result.Books); err != nil {
		return fmt.Errorf("write books output: %w", err)
	}
	if err := writer.WriteCustomers(ctx, result.Customers); err != nil {
		return fmt.Errorf("write customers output: %w", err)
	}
	if err := writer.WriteMetrics(ctx, batchID, ranAt, result.Snapshot); err != nil {
		return fmt.Errorf("write metrics output: %w", err)
	}

	if !skipDB {
		bronze, err := store.Open(cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("open bronze store: %w", err)
		}
		defer bronze.Close()
		if err := bronze.SaveRun(ctx, batchID, ranAt, result.Books, result.Customers, result.Snapshot); err != nil {
			return fmt.Errorf("persist run: %w", err)
		}
	}

	fmt.Print(tracker.Render())

	logger.InfoContext(ctx, "run complete",
		slog.Int("books_out", len(result.Books)),
		slog.Int("customers_out", len(result.Customers)),
		slog.Any("audit", result.Audit.ToMapping()))
	return nil
}
