package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"librarydq/internal/metrics"
	"librarydq/pkg/contracts/domain"
)

// Dataset names used for metrics recording.
const (
	DatasetBooks     = "books"
	DatasetCustomers = "customers"
)

// RunnerConfig holds per-run settings for the orchestrator.
type RunnerConfig struct {
	// AsOf is the reference instant for overdue evaluation, held constant
	// for the whole run.
	AsOf time.Time
	// LoanPeriodDays drives the expected return date. Zero means the
	// standard 14-day window.
	LoanPeriodDays int
	// Parallel runs the two datasets on separate goroutines. They share no
	// mutable state apart from the tracker, whose recording is serialized
	// behind a lock in this mode.
	Parallel bool
}

// Result is what a pipeline run hands back to the caller: the two cleaned
// datasets and the metrics snapshot. The runner itself performs no I/O.
type Result struct {
	Books     []domain.CheckoutRecord
	Customers []domain.CustomerRecord
	Snapshot  metrics.Snapshot
	Audit     *AuditReport
}

// Runner sequences the cleaning stages over both datasets: audit, then
// duplicates, missing values, date repair and enrichment for books, and the
// trivial empty-row drop for customers, recording a stage observation at
// every boundary.
type Runner struct {
	logger   *slog.Logger
	cfg      RunnerConfig
	auditor  *Auditor
	dedupe   *Deduplicator
	missing  *MissingValueNormalizer
	dates    *DateRepairer
	enricher *Enricher
}

// NewRunner creates an orchestrator for one pipeline run. A zero AsOf
// defaults to the current wall-clock instant, fixed at construction.
func NewRunner(logger *slog.Logger, cfg RunnerConfig) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AsOf.IsZero() {
		cfg.AsOf = time.Now()
	}
	return &Runner{
		logger:  logger,
		cfg:     cfg,
		auditor: NewAuditor(logger),
		dedupe:  NewDeduplicator(logger),
		missing: NewMissingValueNormalizer(logger),
		dates:   NewDateRepairer(logger),
		enricher: NewEnricher(logger, EnricherConfig{
			LoanPeriodDays: cfg.LoanPeriodDays,
			AsOf:           cfg.AsOf,
		}),
	}
}

// Run executes the full pipeline over both raw datasets against the given
// tracker and returns the cleaned data plus the final snapshot.
func (r *Runner) Run(ctx context.Context, books []domain.CheckoutRecord, customers []domain.CustomerRecord, tracker *metrics.Tracker) (*Result, error) {
	r.logger.InfoContext(ctx, "pipeline run starting",
		slog.Int("books_rows", len(books)),
		slog.Int("customers_rows", len(customers)),
		slog.Time("as_of", r.cfg.AsOf),
		slog.Bool("parallel", r.cfg.Parallel))

	audit := r.auditor.Run(ctx, books, customers)

	if err := tracker.Open(DatasetBooks, metrics.BooksStageOrder, len(books)); err != nil {
		return nil, err
	}
	if err := tracker.Open(DatasetCustomers, metrics.CustomersStageOrder, len(customers)); err != nil {
		return nil, err
	}

	var (
		cleanBooks     []domain.CheckoutRecord
		cleanCustomers []domain.CustomerRecord
		err            error
	)

	if r.cfg.Parallel {
		rec := &lockedRecorder{tracker: tracker}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var bErr error
			cleanBooks, bErr = r.runBooks(gctx, books, rec)
			return bErr
		})
		g.Go(func() error {
			var cErr error
			cleanCustomers, cErr = r.missing.NormalizeCustomers(gctx, DatasetCustomers, customers, rec)
			return cErr
		})
		if err = g.Wait(); err != nil {
			return nil, err
		}
	} else {
		if cleanBooks, err = r.runBooks(ctx, books, tracker); err != nil {
			return nil, err
		}
		if cleanCustomers, err = r.missing.NormalizeCustomers(ctx, DatasetCustomers, customers, tracker); err != nil {
			return nil, err
		}
	}

	snap := tracker.Snapshot()
	r.logger.InfoContext(ctx, "pipeline run complete",
		slog.Int("clean_books_rows", len(cleanBooks)),
		slog.Int("clean_customers_rows", len(cleanCustomers)),
		slog.Any("metrics", snap))

	return &Result{
		Books:     cleanBooks,
		Customers: cleanCustomers,
		Snapshot:  snap,
		Audit:     audit,
	}, nil
}

// runBooks chains the four book stages in declared order.
func (r *Runner) runBooks(ctx context.Context, books []domain.CheckoutRecord, rec Recorder) ([]domain.CheckoutRecord, error) {
	out, err := r.dedupe.Run(ctx, DatasetBooks, books, rec)
	if err != nil {
		return nil, err
	}
	if out, err = r.missing.Run(ctx, DatasetBooks, out, rec); err != nil {
		return nil, err
	}
	if out, err = r.dates.Run(ctx, DatasetBooks, out, rec); err != nil {
		return nil, err
	}
	if out, err = r.enricher.Run(ctx, DatasetBooks, out, rec); err != nil {
		return nil, err
	}
	return out, nil
}

// lockedRecorder serializes Record calls when the two datasets run on
// separate goroutines. The tracker itself stays single-threaded.
type lockedRecorder struct {
	mu      sync.Mutex
	tracker *metrics.Tracker
}

func (l *lockedRecorder) Record(dataset, stage string, rowCount int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tracker.Record(dataset, stage, rowCount)
}
