package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydq/pkg/contracts/domain"
)

func enriched(t *testing.T, e *Enricher, r domain.CheckoutRecord) domain.CheckoutRecord {
	t.Helper()
	out, err := e.Run(context.Background(), "books", []domain.CheckoutRecord{r}, &captureRecorder{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	return out[0]
}

func TestEnricher_Duration(t *testing.T) {
	e := NewEnricher(nil, EnricherConfig{AsOf: date(2023, time.July, 1)})

	t.Run("normal loan", func(t *testing.T) {
		r := domain.CheckoutRecord{
			CheckoutDate: timePtr(date(2023, time.May, 10)),
			ReturnDate:   timePtr(date(2023, time.May, 20)),
		}
		got := enriched(t, e, r)

		require.NotNil(t, got.LoanDurationDays)
		assert.Equal(t, 10, *got.LoanDurationDays)
		require.NotNil(t, got.NegativeDurationFlag)
		assert.False(t, *got.NegativeDurationFlag)
	})

	t.Run("swap correction", func(t *testing.T) {
		r := domain.CheckoutRecord{
			CheckoutDate: timePtr(date(2023, time.May, 20)),
			ReturnDate:   timePtr(date(2023, time.May, 10)),
		}
		got := enriched(t, e, r)

		require.NotNil(t, got.LoanDurationDays)
		assert.Equal(t, 10, *got.LoanDurationDays)
		require.NotNil(t, got.NegativeDurationFlag)
		assert.False(t, *got.NegativeDurationFlag)
		// The typed dates are reordered, earlier first.
		assert.Equal(t, date(2023, time.May, 10), *got.CheckoutDate)
		assert.Equal(t, date(2023, time.May, 20), *got.ReturnDate)
	})

	t.Run("missing date means absent duration and flag", func(t *testing.T) {
		r := domain.CheckoutRecord{
			CheckoutDate: timePtr(date(2023, time.May, 10)),
		}
		got := enriched(t, e, r)

		assert.Nil(t, got.LoanDurationDays)
		assert.Nil(t, got.NegativeDurationFlag)
	})

	t.Run("zero-day loan", func(t *testing.T) {
		r := domain.CheckoutRecord{
			CheckoutDate: timePtr(date(2023, time.May, 10)),
			ReturnDate:   timePtr(date(2023, time.May, 10)),
		}
		got := enriched(t, e, r)

		require.NotNil(t, got.LoanDurationDays)
		assert.Equal(t, 0, *got.LoanDurationDays)
	})
}

func TestEnricher_ISOFields(t *testing.T) {
	e := NewEnricher(nil, EnricherConfig{AsOf: date(2023, time.July, 1)})

	r := domain.CheckoutRecord{
		CheckoutDate: timePtr(date(2023, time.May, 10)),
	}
	got := enriched(t, e, r)

	assert.Equal(t, "2023-05-10", got.CheckoutDateISO)
	assert.Empty(t, got.ReturnDateISO)
}

func TestEnricher_ExpectedReturnDate(t *testing.T) {
	e := NewEnricher(nil, EnricherConfig{AsOf: date(2023, time.July, 1)})

	t.Run("present iff checkout present", func(t *testing.T) {
		got := enriched(t, e, domain.CheckoutRecord{
			CheckoutDate: timePtr(date(2023, time.January, 1)),
		})
		require.NotNil(t, got.ExpectedReturnDate)
		assert.Equal(t, date(2023, time.January, 15), *got.ExpectedReturnDate)
	})

	t.Run("absent checkout means absent expected", func(t *testing.T) {
		got := enriched(t, e, domain.CheckoutRecord{
			ReturnDate: timePtr(date(2023, time.January, 10)),
		})
		assert.Nil(t, got.ExpectedReturnDate)
	})

	t.Run("custom loan period", func(t *testing.T) {
		e21 := NewEnricher(nil, EnricherConfig{LoanPeriodDays: 21, AsOf: date(2023, time.July, 1)})
		got := enriched(t, e21, domain.CheckoutRecord{
			CheckoutDate: timePtr(date(2023, time.January, 1)),
		})
		require.NotNil(t, got.ExpectedReturnDate)
		assert.Equal(t, date(2023, time.January, 22), *got.ExpectedReturnDate)
	})
}

func TestEnricher_Overdue(t *testing.T) {
	tests := []struct {
		name        string
		record      domain.CheckoutRecord
		asOf        time.Time
		wantOverdue bool
		wantDays    *int
	}{
		{
			name:        "unreturned past expected",
			record:      domain.CheckoutRecord{CheckoutDate: timePtr(date(2023, time.January, 1))},
			asOf:        date(2023, time.January, 20),
			wantOverdue: true,
			wantDays:    intPtr(5),
		},
		{
			name:        "unreturned within the window floors at zero",
			record:      domain.CheckoutRecord{CheckoutDate: timePtr(date(2023, time.January, 1))},
			asOf:        date(2023, time.January, 10),
			wantOverdue: false,
			wantDays:    intPtr(0),
		},
		{
			name:        "due exactly today is not overdue",
			record:      domain.CheckoutRecord{CheckoutDate: timePtr(date(2023, time.January, 1))},
			asOf:        date(2023, time.January, 15),
			wantOverdue: false,
			wantDays:    intPtr(0),
		},
		{
			name: "returned late is never overdue",
			record: domain.CheckoutRecord{
				CheckoutDate: timePtr(date(2023, time.January, 1)),
				ReturnDate:   timePtr(date(2023, time.March, 1)),
			},
			asOf:        date(2023, time.July, 1),
			wantOverdue: false,
			wantDays:    nil,
		},
		{
			name:        "absent checkout means no overdue evaluation",
			record:      domain.CheckoutRecord{},
			asOf:        date(2023, time.July, 1),
			wantOverdue: false,
			wantDays:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEnricher(nil, EnricherConfig{AsOf: tt.asOf})
			got := enriched(t, e, tt.record)

			if tt.name == "unreturned past expected" {
				require.NotNil(t, got.ExpectedReturnDate)
				assert.Equal(t, date(2023, time.January, 15), *got.ExpectedReturnDate)
			}

			assert.Equal(t, tt.wantOverdue, got.IsOverdue)
			if tt.wantDays == nil {
				assert.Nil(t, got.OverdueDays)
			} else {
				require.NotNil(t, got.OverdueDays)
				assert.Equal(t, *tt.wantDays, *got.OverdueDays)
			}
		})
	}
}

func TestEnricher_AsOfTimeOfDayIgnored(t *testing.T) {
	// The as-of instant is normalized to a date; a late-evening run must
	// classify the same as a midnight run.
	asOf := time.Date(2023, time.January, 20, 23, 45, 0, 0, time.UTC)
	e := NewEnricher(nil, EnricherConfig{AsOf: asOf})

	got := enriched(t, e, domain.CheckoutRecord{CheckoutDate: timePtr(date(2023, time.January, 1))})
	require.NotNil(t, got.OverdueDays)
	assert.Equal(t, 5, *got.OverdueDays)
}

func TestEnricher_RecordsObservation(t *testing.T) {
	e := NewEnricher(nil, EnricherConfig{AsOf: date(2023, time.July, 1)})
	rec := &captureRecorder{}

	_, err := e.Run(context.Background(), "books", []domain.CheckoutRecord{{}, {}}, rec)
	require.NoError(t, err)

	require.Len(t, rec.counts, 1)
	assert.Equal(t, 2, rec.counts[0])
	assert.Equal(t, "enrichment", rec.stages[0])
}

func intPtr(v int) *int { return &v }
