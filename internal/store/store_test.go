package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydq/internal/config"
	apperrors "librarydq/internal/errors"
	"librarydq/internal/metrics"
	"librarydq/pkg/contracts/domain"
)

func openTestStore(t *testing.T) *BronzeStore {
	t.Helper()
	cfg := config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             filepath.Join(t.TempDir(), "bronze.db"),
		ConnMaxLifetime: time.Hour,
	}
	s, err := Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle", DSN: "x"}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestSaveRunPersistsAllTables(t *testing.T) {
	s := openTestStore(t)

	id := int64(42)
	dur := 10
	flag := false
	checkout := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	returned := checkout.AddDate(0, 0, dur)

	books := []domain.CheckoutRecord{
		{
			BookTitle:            "The Go Programming Language",
			CustomerIDRaw:        "42",
			CheckoutDateRaw:      "01/03/2023",
			ReturnDateRaw:        "11/03/2023",
			CustomerID:           &id,
			CheckoutDate:         &checkout,
			ReturnDate:           &returned,
			LoanDurationDays:     &dur,
			NegativeDurationFlag: &flag,
			CheckoutDateISO:      "2023-03-01",
			ReturnDateISO:        "2023-03-11",
		},
		{BookTitle: "Unreturned", CustomerIDRaw: "7", IsOverdue: true},
	}
	customers := []domain.CustomerRecord{
		{CustomerIDRaw: "42", CustomerID: &id, Name: "Ada"},
	}

	tr := metrics.NewTracker()
	require.NoError(t, tr.Open("books", metrics.BooksStageOrder, 5))
	require.NoError(t, tr.Record("books", metrics.StageDuplicates, 4))
	require.NoError(t, tr.Record("books", metrics.StageMissingValues, 2))
	require.NoError(t, tr.Record("books", metrics.StageDateCleaning, 2))
	require.NoError(t, tr.Record("books", metrics.StageEnrichment, 2))

	ranAt := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	batchID := "11111111-2222-3333-4444-555555555555"

	err := s.SaveRun(context.Background(), batchID, ranAt, books, customers, tr.Snapshot())
	require.NoError(t, err)

	var bookCount, customerCount int64
	require.NoError(t, s.db.Model(&BookBronze{}).Where("batch_id = ?", batchID).Count(&bookCount).Error)
	require.NoError(t, s.db.Model(&CustomerBronze{}).Where("batch_id = ?", batchID).Count(&customerCount).Error)
	assert.Equal(t, int64(2), bookCount)
	assert.Equal(t, int64(1), customerCount)

	var logRow MetricsLog
	require.NoError(t, s.db.Where("batch_id = ? AND dataset = ?", batchID, "books").First(&logRow).Error)
	assert.Equal(t, 5, logRow.InitialCount)
	assert.Equal(t, 2, logRow.FinalCount)
	assert.Equal(t, 1, logRow.DuplicatesDropped)
	assert.Equal(t, 2, logRow.MissingDropped)
	assert.Equal(t, 3, logRow.TotalDropped)
	assert.InDelta(t, 0.4, logRow.RetentionRate, 1e-9)

	var stored BookBronze
	require.NoError(t, s.db.Where("batch_id = ? AND book_title = ?", batchID, "Unreturned").First(&stored).Error)
	assert.Nil(t, stored.CustomerID)
	assert.Nil(t, stored.CheckoutDate)
	assert.True(t, stored.IsOverdue)
}

func TestSaveRunEmptyDatasets(t *testing.T) {
	s := openTestStore(t)

	tr := metrics.NewTracker()
	require.NoError(t, tr.Open("customers", metrics.CustomersStageOrder, 0))
	require.NoError(t, tr.Record("customers", metrics.StageMissingValues, 0))

	err := s.SaveRun(context.Background(), "batch-empty", time.Now(), nil, nil, tr.Snapshot())
	require.NoError(t, err)

	var logCount int64
	require.NoError(t, s.db.Model(&MetricsLog{}).Where("batch_id = ?", "batch-empty").Count(&logCount).Error)
	assert.Equal(t, int64(1), logCount)
}
