// Package store persists cleaned datasets and run metrics to a relational
// bronze layer. The pipeline itself never depends on the store; a run with
// persistence disabled produces identical CSV output.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"librarydq/internal/config"
	apperrors "librarydq/internal/errors"
	"librarydq/internal/metrics"
	"librarydq/pkg/contracts/domain"
)

// BronzeStore writes cleaned rows and per-run metrics to the configured
// database. Safe for use from a single goroutine.
type BronzeStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the configured database, runs migrations for the bronze
// tables and returns a ready store.
func Open(cfg config.DatabaseConfig, logger *slog.Logger) (*BronzeStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, apperrors.NewStorageError(
			fmt.Sprintf("open %s database", cfg.Driver), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperrors.NewStorageError("access underlying connection pool", err)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.AutoMigrate(&BookBronze{}, &CustomerBronze{}, &MetricsLog{}); err != nil {
		return nil, apperrors.NewStorageError("migrate bronze tables", err)
	}

	logger.Info("bronze store ready",
		slog.String("driver", cfg.Driver))

	return &BronzeStore{db: db, logger: logger}, nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, apperrors.NewConfigError(
			fmt.Sprintf("unsupported database driver: %s", cfg.Driver), nil)
	}
}

// SaveRun persists the cleaned datasets and one metrics row per dataset
// under the given batch ID. Everything is written in a single transaction
// so a failed run leaves no partial batch behind.
func (s *BronzeStore) SaveRun(ctx context.Context, batchID string, ranAt time.Time,
	books []domain.CheckoutRecord, customers []domain.CustomerRecord, snap metrics.Snapshot) error {

	loadedAt := time.Now().UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(books) > 0 {
			rows := make([]BookBronze, 0, len(books))
			for _, b := range books {
				rows = append(rows, bookRow(batchID, loadedAt, b))
			}
			if err := tx.CreateInBatches(rows, 500).Error; err != nil {
				return fmt.Errorf("insert books_bronze: %w", err)
			}
		}

		if len(customers) > 0 {
			rows := make([]CustomerBronze, 0, len(customers))
			for _, c := range customers {
				rows = append(rows, CustomerBronze{
					BatchID:       batchID,
					CustomerIDRaw: c.CustomerIDRaw,
					CustomerID:    c.CustomerID,
					Name:          c.Name,
					LoadedAt:      loadedAt,
				})
			}
			if err := tx.CreateInBatches(rows, 500).Error; err != nil {
				return fmt.Errorf("insert customers_bronze: %w", err)
			}
		}

		for _, ds := range snap.Datasets {
			row := metricsRow(batchID, ranAt, ds)
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("insert DE_metrics_log: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.NewStorageError("save run to bronze layer", err).
			WithContext("batch_id", batchID)
	}

	s.logger.InfoContext(ctx, "run persisted to bronze layer",
		slog.String("batch_id", batchID),
		slog.Int("books", len(books)),
		slog.Int("customers", len(customers)))
	return nil
}

// Close releases the underlying connection pool.
func (s *BronzeStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func bookRow(batchID string, loadedAt time.Time, b domain.CheckoutRecord) BookBronze {
	return BookBronze{
		BatchID:              batchID,
		BookTitle:            b.BookTitle,
		CustomerIDRaw:        b.CustomerIDRaw,
		CheckoutDateRaw:      b.CheckoutDateRaw,
		ReturnDateRaw:        b.ReturnDateRaw,
		CustomerID:           b.CustomerID,
		CheckoutDate:         b.CheckoutDate,
		ReturnDate:           b.ReturnDate,
		LoanDurationDays:     b.LoanDurationDays,
		NegativeDurationFlag: b.NegativeDurationFlag,
		CheckoutDateISO:      b.CheckoutDateISO,
		ReturnDateISO:        b.ReturnDateISO,
		ExpectedReturnDate:   b.ExpectedReturnDate,
		OverdueDays:          b.OverdueDays,
		IsOverdue:            b.IsOverdue,
		LoadedAt:             loadedAt,
	}
}

func metricsRow(batchID string, ranAt time.Time, ds metrics.DatasetSnapshot) MetricsLog {
	row := MetricsLog{
		BatchID:       batchID,
		Dataset:       ds.Dataset,
		InitialCount:  ds.InitialCount,
		FinalCount:    ds.FinalCount,
		TotalDropped:  ds.TotalDropped,
		RetentionRate: ds.RetentionRate,
		RanAt:         ranAt,
	}
	for _, st := range ds.Stages {
		switch st.Stage {
		case metrics.StageDuplicates:
			row.DuplicatesDropped = -st.Delta
		case metrics.StageMissingValues:
			row.MissingDropped = -st.Delta
		}
	}
	return row
}
