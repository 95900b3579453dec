// Package exporter writes the cleaned datasets and the per-run processing
// metrics to CSV files in the configured output directory.
package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	apperrors "librarydq/internal/errors"
	"librarydq/internal/metrics"
	"librarydq/pkg/contracts/domain"
)

// Output file names, fixed by the downstream consumers.
const (
	BooksOutputFile     = "books_cleaned_final.csv"
	CustomersOutputFile = "customers_cleaned_final.csv"
	MetricsOutputFile   = "processing_metrics.csv"
)

// CSVWriter exports pipeline results to an output directory.
type CSVWriter struct {
	logger *slog.Logger
	outDir string
}

// NewCSVWriter creates a writer rooted at outDir.
func NewCSVWriter(logger *slog.Logger, outDir string) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger, outDir: outDir}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes data to a CSV file under the output directory.
func (w *CSVWriter) WriteCSV(ctx context.Context, fileName string, options WriteOptions) error {
	fullPath := filepath.Join(w.outDir, fileName)

	w.logger.InfoContext(ctx, "writing CSV file",
		slog.String("path", fullPath),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(w.outDir, 0755); err != nil {
		return apperrors.NewStorageError("failed to create output directory", err).
			WithContext("dir", w.outDir)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return apperrors.NewStorageError("failed to create CSV file", err).
			WithContext("path", fullPath)
	}
	defer file.Close()

	// BOM helps Excel recognize UTF-8.
	if options.BOMPrefix {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return apperrors.NewStorageError("failed to write BOM", err)
		}
	}

	writer := csv.NewWriter(file)

	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return apperrors.NewStorageError("failed to write CSV header row", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("failed to write CSV record %d", i), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.NewStorageError("failed to flush CSV writer", err)
	}
	return nil
}

// WriteBooks exports the cleaned books dataset.
func (w *CSVWriter) WriteBooks(ctx context.Context, records []domain.CheckoutRecord) error {
	headers := []string{
		"BookTitle", "CustomerID", "CheckoutDateRaw", "ReturnDateRaw",
		"CheckoutDateISO", "ReturnDateISO", "LoanDurationDays",
		"NegativeDurationFlag", "ExpectedReturnDate", "OverdueDays", "IsOverdue",
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.BookTitle,
			formatInt64(r.CustomerID),
			r.CheckoutDateRaw,
			r.ReturnDateRaw,
			r.CheckoutDateISO,
			r.ReturnDateISO,
			formatInt(r.LoanDurationDays),
			formatBoolPtr(r.NegativeDurationFlag),
			formatDate(r.ExpectedReturnDate),
			formatInt(r.OverdueDays),
			fmt.Sprintf("%t", r.IsOverdue),
		})
	}

	return w.WriteCSV(ctx, BooksOutputFile, WriteOptions{
		Headers:   headers,
		Records:   rows,
		BOMPrefix: true,
	})
}

// WriteCustomers exports the cleaned customers dataset.
func (w *CSVWriter) WriteCustomers(ctx context.Context, records []domain.CustomerRecord) error {
	headers := []string{"CustomerID", "CustomerName"}

	rows := make([][]string, 0, len(records))
	for _, c := range records {
		rows = append(rows, []string{formatInt64(c.CustomerID), c.Name})
	}

	return w.WriteCSV(ctx, CustomersOutputFile, WriteOptions{
		Headers:   headers,
		Records:   rows,
		BOMPrefix: true,
	})
}

// WriteMetrics exports the per-run processing metrics, one row per dataset.
func (w *CSVWriter) WriteMetrics(ctx context.Context, batchID string, ranAt time.Time, snap metrics.Snapshot) error {
	headers := []string{
		"BatchID", "Timestamp", "Dataset", "InitialRecords",
		"FinalRecords", "TotalDropped", "RetentionRate",
	}

	rows := make([][]string, 0, len(snap.Datasets))
	for _, ds := range snap.Datasets {
		rows = append(rows, []string{
			batchID,
			ranAt.Format(time.RFC3339),
			ds.Dataset,
			fmt.Sprintf("%d", ds.InitialCount),
			fmt.Sprintf("%d", ds.FinalCount),
			fmt.Sprintf("%d", ds.TotalDropped),
			fmt.Sprintf("%.3f", ds.RetentionRate),
		})
	}

	return w.WriteCSV(ctx, MetricsOutputFile, WriteOptions{
		Headers: headers,
		Records: rows,
	})
}

func formatInt64(v *int64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func formatBoolPtr(v *bool) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%t", *v)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
