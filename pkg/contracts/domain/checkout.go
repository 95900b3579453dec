package domain

import (
	"time"
)

// CheckoutRecord represents one row of the books checkout dataset as it moves
// through the cleaning pipeline. The *Raw fields preserve the original string
// values exactly as loaded and are never mutated by any stage; the typed and
// derived fields are filled in (or left nil for absent) as stages run.
type CheckoutRecord struct {
	BookTitle       string `json:"book_title" db:"book_title"`
	CustomerIDRaw   string `json:"customer_id_raw" db:"customer_id_raw"`
	CheckoutDateRaw string `json:"checkout_date_raw" db:"checkout_date_raw"`
	ReturnDateRaw   string `json:"return_date_raw" db:"return_date_raw"`

	// Typed fields. nil means the value is absent (missing or unrepairable),
	// which is a data state, not an error.
	CustomerID   *int64     `json:"customer_id" db:"customer_id"`
	CheckoutDate *time.Time `json:"checkout_date" db:"checkout_date"`
	ReturnDate   *time.Time `json:"return_date" db:"return_date"`

	// Enrichment fields, computed from the typed dates. All optional; none
	// of them ever causes a row to be removed.
	LoanDurationDays     *int       `json:"loan_duration_days" db:"loan_duration_days"`
	NegativeDurationFlag *bool      `json:"negative_duration_flag" db:"negative_duration_flag"`
	CheckoutDateISO      string     `json:"checkout_date_iso,omitempty" db:"checkout_date_iso"`
	ReturnDateISO        string     `json:"return_date_iso,omitempty" db:"return_date_iso"`
	ExpectedReturnDate   *time.Time `json:"expected_return_date" db:"expected_return_date"`
	OverdueDays          *int       `json:"overdue_days" db:"overdue_days"`
	IsOverdue            bool       `json:"is_overdue" db:"is_overdue"`
}

// Returned reports whether the book has been returned, i.e. a typed return
// date is present. Overdue status is only computed for unreturned books.
func (r *CheckoutRecord) Returned() bool {
	return r.ReturnDate != nil
}

// HasIdentity reports whether the record carries at least one of its two
// identifying fields. Rows with neither are the only ones the
// missing-value stage is allowed to drop.
func (r *CheckoutRecord) HasIdentity() bool {
	return r.BookTitle != "" || r.CustomerID != nil
}
