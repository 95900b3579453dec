package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydq/pkg/contracts/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDateRepairer_Repair(t *testing.T) {
	repairer := NewDateRepairer(nil)

	tests := []struct {
		name string
		raw  string
		want *time.Time
	}{
		{name: "valid date", raw: "15/05/2023", want: timePtr(date(2023, time.May, 15))},
		{name: "surrounding quotes stripped", raw: `"""15/05/2023"""`, want: timePtr(date(2023, time.May, 15))},
		{name: "whitespace and quotes", raw: `  "15/05/2023"  `, want: timePtr(date(2023, time.May, 15))},
		{name: "empty string absent", raw: "", want: nil},
		{name: "null spelling absent", raw: "null", want: nil},
		{name: "NaT spelling absent", raw: "NaT", want: nil},
		{name: "none spelling absent", raw: "None", want: nil},
		{name: "typo year 2063", raw: "10/04/2063", want: timePtr(date(2023, time.April, 10))},
		{name: "typo year 2062", raw: "01/12/2062", want: timePtr(date(2023, time.December, 1))},
		{name: "day 32 clamps to 31 in may", raw: "32/05/2023", want: timePtr(date(2023, time.May, 31))},
		{name: "day 31 clamps to 30 in april", raw: "31/04/2023", want: timePtr(date(2023, time.April, 30))},
		{name: "day 31 clamps to 28 in february", raw: "31/02/2023", want: timePtr(date(2023, time.February, 28))},
		{name: "day 30 clamps to 29 in leap february", raw: "30/02/2024", want: timePtr(date(2024, time.February, 29))},
		{name: "typo year and day clamp combine", raw: "32/05/2063", want: timePtr(date(2023, time.May, 31))},
		{name: "month out of range is unrecoverable", raw: "10/13/2023", want: nil},
		{name: "word salad is unrecoverable", raw: "not a date", want: nil},
		{name: "iso format is not the feed convention", raw: "2023-05-15", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repairer.repair(tt.raw)
			if tt.want == nil {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.True(t, tt.want.Equal(*got), "want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDateRepairer_Run(t *testing.T) {
	records := []domain.CheckoutRecord{
		checkout("Dune", "1", "32/05/2023", `"15/06/2023"`),
		checkout("Emma", "2", "garbage", ""),
	}

	rec := &captureRecorder{}
	out, err := NewDateRepairer(nil).Run(context.Background(), "books", records, rec)
	require.NoError(t, err)

	// Never drops rows.
	require.Len(t, out, 2)
	require.Len(t, rec.counts, 1)
	assert.Equal(t, 2, rec.counts[0])
	assert.Equal(t, "date-cleaning", rec.stages[0])

	require.NotNil(t, out[0].CheckoutDate)
	assert.Equal(t, date(2023, time.May, 31), *out[0].CheckoutDate)
	require.NotNil(t, out[0].ReturnDate)
	assert.Equal(t, date(2023, time.June, 15), *out[0].ReturnDate)

	assert.Nil(t, out[1].CheckoutDate)
	assert.Nil(t, out[1].ReturnDate)
}

func TestDateRepairer_RawFieldsNeverMutated(t *testing.T) {
	records := []domain.CheckoutRecord{
		checkout("Dune", "1", `"32/05/2063"`, "garbage"),
	}

	out, err := NewDateRepairer(nil).Run(context.Background(), "books", records, &captureRecorder{})
	require.NoError(t, err)

	assert.Equal(t, `"32/05/2063"`, out[0].CheckoutDateRaw)
	assert.Equal(t, "garbage", out[0].ReturnDateRaw)
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 31, daysInMonth(2023, time.May))
	assert.Equal(t, 30, daysInMonth(2023, time.April))
	assert.Equal(t, 28, daysInMonth(2023, time.February))
	assert.Equal(t, 29, daysInMonth(2024, time.February))
	assert.Equal(t, 31, daysInMonth(2023, time.December))
}

func timePtr(t time.Time) *time.Time { return &t }
