package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"librarydq/pkg/contracts/domain"
)

// datePattern is the expected DD/MM/YYYY shape of raw date fields.
var datePattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

// AuditIssue pinpoints one data-quality finding. Row is the source file row
// number (header is row 1, so the first data row is 2).
type AuditIssue struct {
	Row    int    `json:"row"`
	Field  string `json:"field,omitempty"`
	Detail string `json:"detail"`
}

// AuditReport is the pre-clean inventory of everything wrong with the raw
// feed. It is strictly informational: the audit never drops or mutates a
// row, and the cleaning stages run regardless of what it finds.
type AuditReport struct {
	DateFormatIssues    []AuditIssue `json:"date_format_issues"`
	ImpossibleDates     []AuditIssue `json:"impossible_dates"`
	LogicalDateIssues   []AuditIssue `json:"logical_date_issues"`
	UnknownCustomerRefs []AuditIssue `json:"unknown_customer_refs"`
	Duplicates          []AuditIssue `json:"duplicates"`
	FormattingIssues    []AuditIssue `json:"formatting_issues"`
}

// Total returns the number of findings across all categories.
func (r *AuditReport) Total() int {
	return len(r.DateFormatIssues) + len(r.ImpossibleDates) + len(r.LogicalDateIssues) +
		len(r.UnknownCustomerRefs) + len(r.Duplicates) + len(r.FormattingIssues)
}

// ToMapping exposes the per-category counts as a nested mapping for
// structured logging.
func (r *AuditReport) ToMapping() map[string]interface{} {
	return map[string]interface{}{
		"date_format_issues":    len(r.DateFormatIssues),
		"impossible_dates":      len(r.ImpossibleDates),
		"logical_date_issues":   len(r.LogicalDateIssues),
		"unknown_customer_refs": len(r.UnknownCustomerRefs),
		"duplicates":            len(r.Duplicates),
		"formatting_issues":     len(r.FormattingIssues),
		"total":                 r.Total(),
	}
}

// Auditor inspects the raw datasets before any cleaning runs and reports
// what the cleaning stages are about to deal with.
type Auditor struct {
	logger *slog.Logger
}

// NewAuditor creates a pre-clean auditor.
func NewAuditor(logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{logger: logger}
}

// Run audits the raw books records against the customers table and returns
// the findings.
func (a *Auditor) Run(ctx context.Context, books []domain.CheckoutRecord, customers []domain.CustomerRecord) *AuditReport {
	report := &AuditReport{}

	knownCustomers := make(map[int64]struct{}, len(customers))
	for _, c := range customers {
		if id := coerceID(c.CustomerIDRaw); id != nil {
			knownCustomers[*id] = struct{}{}
		}
	}

	firstSeen := make(map[dedupeKey]int, len(books))

	for i, b := range books {
		row := i + 2

		a.auditDateField(report, row, "checkout_date", b.CheckoutDateRaw)
		a.auditDateField(report, row, "return_date", b.ReturnDateRaw)
		a.auditLogicalOrder(report, row, b.CheckoutDateRaw, b.ReturnDateRaw)

		if id := coerceID(b.CustomerIDRaw); id != nil {
			if _, known := knownCustomers[*id]; !known {
				report.UnknownCustomerRefs = append(report.UnknownCustomerRefs, AuditIssue{
					Row:    row,
					Field:  "customer_id",
					Detail: fmt.Sprintf("customer %d not found in customers table", *id),
				})
			}
		}

		if b.BookTitle != strings.TrimSpace(b.BookTitle) {
			report.FormattingIssues = append(report.FormattingIssues, AuditIssue{
				Row:    row,
				Field:  "book_title",
				Detail: "surrounding whitespace in title",
			})
		}

		key := dedupeKey{title: b.BookTitle, customerRaw: b.CustomerIDRaw, checkoutRaw: b.CheckoutDateRaw}
		if first, dup := firstSeen[key]; dup {
			report.Duplicates = append(report.Duplicates, AuditIssue{
				Row:    row,
				Detail: fmt.Sprintf("duplicate of row %d", first),
			})
		} else {
			firstSeen[key] = row
		}
	}

	a.logger.InfoContext(ctx, "pre-clean audit complete",
		slog.Int("books_rows", len(books)),
		slog.Int("total_findings", report.Total()),
		slog.Any("breakdown", report.ToMapping()))

	return report
}

// auditDateField classifies one raw date value: quote clutter, wrong shape,
// or a well-shaped but impossible calendar date.
func (a *Auditor) auditDateField(report *AuditReport, row int, field, raw string) {
	if isEmptySpelling(raw) {
		return
	}

	if strings.Contains(raw, `"`) {
		report.FormattingIssues = append(report.FormattingIssues, AuditIssue{
			Row:    row,
			Field:  field,
			Detail: "extra quotes in date field",
		})
	}

	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"'`))
	if !datePattern.MatchString(s) {
		report.DateFormatIssues = append(report.DateFormatIssues, AuditIssue{
			Row:    row,
			Field:  field,
			Detail: fmt.Sprintf("invalid date format: %q, expected DD/MM/YYYY", s),
		})
		return
	}

	if _, err := time.Parse(dateLayout, s); err != nil {
		report.ImpossibleDates = append(report.ImpossibleDates, AuditIssue{
			Row:    row,
			Field:  field,
			Detail: fmt.Sprintf("impossible date: %s", s),
		})
	}
}

// auditLogicalOrder flags return dates that precede their checkout when
// both raw values parse as-is.
func (a *Auditor) auditLogicalOrder(report *AuditReport, row int, checkoutRaw, returnRaw string) {
	checkout, err1 := time.Parse(dateLayout, strings.TrimSpace(strings.Trim(strings.TrimSpace(checkoutRaw), `"'`)))
	ret, err2 := time.Parse(dateLayout, strings.TrimSpace(strings.Trim(strings.TrimSpace(returnRaw), `"'`)))
	if err1 != nil || err2 != nil {
		return
	}
	if ret.Before(checkout) {
		report.LogicalDateIssues = append(report.LogicalDateIssues, AuditIssue{
			Row:    row,
			Detail: fmt.Sprintf("return date %s precedes checkout date %s", ret.Format(isoLayout), checkout.Format(isoLayout)),
		})
	}
}
