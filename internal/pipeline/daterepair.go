package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"librarydq/internal/metrics"
	"librarydq/pkg/contracts/domain"
)

// dateLayout is the day/month/year convention used consistently across the
// source feed.
const dateLayout = "02/01/2006"

// typoYears documents a known data-entry defect in the source feed: a fixed
// lookup, not a general heuristic. Dates keyed in as 2062 or 2063 were meant
// to be 2023.
var typoYears = map[int]int{
	2062: 2023,
	2063: 2023,
}

// DateRepairer heuristically fixes malformed date strings and parses them
// into typed dates. It operates independently on the checkout and return
// values, never removes a row, and never touches the raw copies: an
// unparseable date becomes an absent marker and the row survives.
//
// The repair pipeline per string, in order: strip surrounding quotes and
// whitespace; map recognized empty spellings to absent; rewrite typo years;
// clamp an overflowing day-of-month to the last valid day (a clamp, not a
// rollover -- day 32 in a 31-day month becomes 31, never the 1st of the
// next month); parse with the dataset's day/month/year convention.
type DateRepairer struct {
	logger *slog.Logger
}

// NewDateRepairer creates a date-repair stage.
func NewDateRepairer(logger *slog.Logger) *DateRepairer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DateRepairer{logger: logger}
}

// Run repairs both date columns for every record in place and records the
// row count, which this stage by definition cannot change.
func (d *DateRepairer) Run(ctx context.Context, dataset string, records []domain.CheckoutRecord, rec Recorder) ([]domain.CheckoutRecord, error) {
	var badCheckouts, badReturns int

	for i := range records {
		records[i].CheckoutDate = d.repair(records[i].CheckoutDateRaw)
		records[i].ReturnDate = d.repair(records[i].ReturnDateRaw)

		if records[i].CheckoutDate == nil && !isEmptySpelling(records[i].CheckoutDateRaw) {
			badCheckouts++
		}
		if records[i].ReturnDate == nil && !isEmptySpelling(records[i].ReturnDateRaw) {
			badReturns++
		}
	}

	d.logger.InfoContext(ctx, "repaired date fields",
		slog.String("dataset", dataset),
		slog.Int("rows", len(records)),
		slog.Int("unrepairable_checkout_dates", badCheckouts),
		slog.Int("unrepairable_return_dates", badReturns))

	if err := rec.Record(dataset, metrics.StageDateCleaning, len(records)); err != nil {
		return nil, err
	}
	return records, nil
}

// repair runs the per-string repair pipeline. A nil result is the absent
// marker: either a recognized empty spelling or an unrecoverable value.
func (d *DateRepairer) repair(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)

	if isEmptySpelling(s) {
		return nil
	}

	s = d.correctComponents(s)

	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

// correctComponents applies the typo-year rewrite and the day-of-month
// clamp. Values that do not split into three numeric day/month/year parts
// are returned unchanged and left for the parser to reject.
func (d *DateRepairer) correctComponents(s string) string {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return s
	}

	day, errD := strconv.Atoi(strings.TrimSpace(parts[0]))
	month, errM := strconv.Atoi(strings.TrimSpace(parts[1]))
	year, errY := strconv.Atoi(strings.TrimSpace(parts[2]))
	if errD != nil || errM != nil || errY != nil {
		return s
	}

	if fixed, ok := typoYears[year]; ok {
		year = fixed
	}

	if month >= 1 && month <= 12 {
		if last := daysInMonth(year, time.Month(month)); day > last {
			day = last
		}
	}

	return fmt.Sprintf("%02d/%02d/%04d", day, month, year)
}

// daysInMonth returns the number of days in the given month, leap years
// included. Day zero of the following month normalizes to the last day of
// this one.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
