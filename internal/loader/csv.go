// Package loader reads the raw books and customers CSV files into the
// in-memory record types the pipeline operates on. It owns exactly two
// pieces of policy: fully empty rows are dropped at load time so metrics
// start from real records, and an input missing an expected column entirely
// is a fatal contract break, not dirty data.
package loader

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strings"

	apperrors "librarydq/internal/errors"
	"librarydq/pkg/contracts/domain"
)

// Column headers expected from the source feed.
const (
	ColBookTitle    = "Books"
	ColCustomerID   = "Customer ID"
	ColCheckoutDate = "Book checkout"
	ColReturnDate   = "Book Returned"
	ColCustomerName = "Customer Name"
)

// CSVLoader reads the two source files.
type CSVLoader struct {
	logger *slog.Logger
}

// NewCSVLoader creates a loader.
func NewCSVLoader(logger *slog.Logger) *CSVLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVLoader{logger: logger}
}

// LoadBooks reads the books checkout CSV from path.
func (l *CSVLoader) LoadBooks(ctx context.Context, path string) ([]domain.CheckoutRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open books file", err).
			WithContext("path", path)
	}
	defer file.Close()

	records, err := l.ReadBooks(ctx, file)
	if err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "books CSV loaded",
		slog.String("path", path),
		slog.Int("rows", len(records)))
	return records, nil
}

// ReadBooks parses books checkout rows from r.
func (l *CSVLoader) ReadBooks(ctx context.Context, r io.Reader) ([]domain.CheckoutRecord, error) {
	header, rows, err := readTable(r, "books")
	if err != nil {
		return nil, err
	}

	cols, err := mapColumns("books", header,
		ColBookTitle, ColCustomerID, ColCheckoutDate, ColReturnDate)
	if err != nil {
		return nil, err
	}

	var dropped int
	records := make([]domain.CheckoutRecord, 0, len(rows))
	for _, row := range rows {
		if rowEmpty(row) {
			dropped++
			continue
		}
		records = append(records, domain.CheckoutRecord{
			BookTitle:       cell(row, cols[ColBookTitle]),
			CustomerIDRaw:   cell(row, cols[ColCustomerID]),
			CheckoutDateRaw: cell(row, cols[ColCheckoutDate]),
			ReturnDateRaw:   cell(row, cols[ColReturnDate]),
		})
	}

	if dropped > 0 {
		l.logger.InfoContext(ctx, "dropped fully empty rows at load",
			slog.String("dataset", "books"),
			slog.Int("rows_dropped", dropped))
	}
	return records, nil
}

// LoadCustomers reads the customers CSV from path.
func (l *CSVLoader) LoadCustomers(ctx context.Context, path string) ([]domain.CustomerRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open customers file", err).
			WithContext("path", path)
	}
	defer file.Close()

	records, err := l.ReadCustomers(ctx, file)
	if err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "customers CSV loaded",
		slog.String("path", path),
		slog.Int("rows", len(records)))
	return records, nil
}

// ReadCustomers parses customer rows from r. Columns beyond the id and name
// ride along in the Profile map.
func (l *CSVLoader) ReadCustomers(ctx context.Context, r io.Reader) ([]domain.CustomerRecord, error) {
	header, rows, err := readTable(r, "customers")
	if err != nil {
		return nil, err
	}

	cols, err := mapColumns("customers", header, ColCustomerID, ColCustomerName)
	if err != nil {
		return nil, err
	}

	var dropped int
	records := make([]domain.CustomerRecord, 0, len(rows))
	for _, row := range rows {
		if rowEmpty(row) {
			dropped++
			continue
		}
		c := domain.CustomerRecord{
			CustomerIDRaw: cell(row, cols[ColCustomerID]),
			Name:          cell(row, cols[ColCustomerName]),
		}
		for i, name := range header {
			if i == cols[ColCustomerID] || i == cols[ColCustomerName] {
				continue
			}
			if v := cell(row, i); v != "" {
				if c.Profile == nil {
					c.Profile = make(map[string]string)
				}
				c.Profile[name] = v
			}
		}
		records = append(records, c)
	}

	if dropped > 0 {
		l.logger.InfoContext(ctx, "dropped fully empty rows at load",
			slog.String("dataset", "customers"),
			slog.Int("rows_dropped", dropped))
	}
	return records, nil
}

// readTable reads a whole CSV into a header row plus data rows. Ragged rows
// are tolerated; shape enforcement happens per expected column.
func readTable(r io.Reader, dataset string) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	all, err := reader.ReadAll()
	if err != nil {
		return nil, nil, apperrors.NewParsingError("failed to parse CSV", err).
			WithContext("dataset", dataset)
	}
	if len(all) == 0 {
		return nil, nil, apperrors.NewMalformedInputShape(dataset, []string{"<header row>"})
	}

	header := make([]string, len(all[0]))
	for i, h := range all[0] {
		if i == 0 {
			// Files written for Excel carry a UTF-8 BOM.
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = strings.TrimSpace(h)
	}
	return header, all[1:], nil
}

// mapColumns resolves the expected column names to indices. Any expected
// column absent from the header is an upstream contract break.
func mapColumns(dataset string, header []string, expected ...string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}

	cols := make(map[string]int, len(expected))
	var missing []string
	for _, name := range expected {
		i, ok := index[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		cols[name] = i
	}
	if len(missing) > 0 {
		return nil, apperrors.NewMalformedInputShape(dataset, missing)
	}
	return cols, nil
}

// cell returns row[i], tolerating rows shorter than the header.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// rowEmpty reports whether every cell in the row is blank.
func rowEmpty(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
