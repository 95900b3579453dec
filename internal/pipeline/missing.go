package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cast"

	"librarydq/internal/metrics"
	"librarydq/pkg/contracts/domain"
)

// MissingValueNormalizer coerces customer identifiers to a numeric type and
// drops rows that carry neither a book title nor a customer id. A value that
// fails coercion becomes an absent marker, not a dropped row; a row with
// exactly one of the two identifying fields is kept, since partial
// identification is still useful downstream.
type MissingValueNormalizer struct {
	logger *slog.Logger
}

// NewMissingValueNormalizer creates a missing-value stage.
func NewMissingValueNormalizer(logger *slog.Logger) *MissingValueNormalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MissingValueNormalizer{logger: logger}
}

// Run normalizes identifiers, drops hard-empty rows and records the
// resulting row count.
func (m *MissingValueNormalizer) Run(ctx context.Context, dataset string, records []domain.CheckoutRecord, rec Recorder) ([]domain.CheckoutRecord, error) {
	out := make([]domain.CheckoutRecord, 0, len(records))
	var missingTitles, missingIDs int

	for _, r := range records {
		r.BookTitle = normalizeText(r.BookTitle)
		r.CustomerID = coerceID(r.CustomerIDRaw)

		if r.BookTitle == "" {
			missingTitles++
		}
		if r.CustomerID == nil {
			missingIDs++
		}
		if !r.HasIdentity() {
			continue
		}
		out = append(out, r)
	}

	m.logger.InfoContext(ctx, "normalized missing values",
		slog.String("dataset", dataset),
		slog.Int("missing_titles", missingTitles),
		slog.Int("missing_customer_ids", missingIDs),
		slog.Int("rows_dropped", len(records)-len(out)),
		slog.Int("output_rows", len(out)))

	if err := rec.Record(dataset, metrics.StageMissingValues, len(out)); err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizeCustomers applies the customers-side policy: coerce the id and
// drop fully empty rows. No other field-level cleaning applies to customers
// in the current pipeline.
func (m *MissingValueNormalizer) NormalizeCustomers(ctx context.Context, dataset string, records []domain.CustomerRecord, rec Recorder) ([]domain.CustomerRecord, error) {
	out := make([]domain.CustomerRecord, 0, len(records))
	for _, c := range records {
		c.Name = normalizeText(c.Name)
		c.CustomerID = coerceID(c.CustomerIDRaw)
		if c.Empty() {
			continue
		}
		out = append(out, c)
	}

	m.logger.InfoContext(ctx, "normalized customer records",
		slog.String("dataset", dataset),
		slog.Int("rows_dropped", len(records)-len(out)),
		slog.Int("output_rows", len(out)))

	if err := rec.Record(dataset, metrics.StageMissingValues, len(out)); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeText trims surrounding whitespace and maps the recognized
// empty-value spellings to the empty string.
func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	if isEmptySpelling(s) {
		return ""
	}
	return s
}

// coerceID converts a raw identifier string to int64. Loose numeric forms
// ("  42 ", "42.0") coerce; anything else is absent.
func coerceID(raw string) *int64 {
	s := strings.TrimSpace(raw)
	if isEmptySpelling(s) {
		return nil
	}
	if id, err := cast.ToInt64E(s); err == nil {
		return &id
	}
	// Source feeds sometimes render ids as floats; accept them when the
	// fractional part is zero.
	if f, err := cast.ToFloat64E(s); err == nil && f == float64(int64(f)) {
		id := int64(f)
		return &id
	}
	return nil
}

// isEmptySpelling reports whether s is one of the recognized spellings of
// "no value": empty string or the literals null, none, nan, nat
// (case-insensitive).
func isEmptySpelling(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "none", "nan", "nat":
		return true
	}
	return false
}
