package pipeline

import (
	"context"
	"log/slog"

	"librarydq/internal/metrics"
	"librarydq/pkg/contracts/domain"
)

// Recorder receives one row-count observation per (dataset, stage) boundary.
// *metrics.Tracker satisfies it; the runner substitutes a locked wrapper
// when datasets execute in parallel.
type Recorder interface {
	Record(dataset, stage string, rowCount int) error
}

// Deduplicator removes duplicate checkout records. Two records are
// duplicates when they agree on the composite key (book title, raw customer
// id, raw checkout date). The raw checkout value is compared, not the typed
// date: this stage runs before date repair. The first occurrence in input
// order is kept.
type Deduplicator struct {
	logger *slog.Logger
}

// NewDeduplicator creates a deduplication stage.
func NewDeduplicator(logger *slog.Logger) *Deduplicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{logger: logger}
}

type dedupeKey struct {
	title       string
	customerRaw string
	checkoutRaw string
}

// Run returns the input with later duplicates removed and records the
// resulting row count. An empty input yields an empty output.
func (d *Deduplicator) Run(ctx context.Context, dataset string, records []domain.CheckoutRecord, rec Recorder) ([]domain.CheckoutRecord, error) {
	seen := make(map[dedupeKey]struct{}, len(records))
	out := make([]domain.CheckoutRecord, 0, len(records))

	for _, r := range records {
		key := dedupeKey{
			title:       r.BookTitle,
			customerRaw: r.CustomerIDRaw,
			checkoutRaw: r.CheckoutDateRaw,
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}

	d.logger.InfoContext(ctx, "removed duplicate checkout records",
		slog.String("dataset", dataset),
		slog.Int("input_rows", len(records)),
		slog.Int("output_rows", len(out)),
		slog.Int("duplicates_removed", len(records)-len(out)))

	if err := rec.Record(dataset, metrics.StageDuplicates, len(out)); err != nil {
		return nil, err
	}
	return out, nil
}
