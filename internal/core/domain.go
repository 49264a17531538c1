package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultCategory is the bucket for occurrences without a category.
	DefaultCategory = "Outros"

	// DefaultHorizonMonths bounds projection of open-ended fixed expenses
	// when no end-recurrence date is set.
	DefaultHorizonMonths = 12
)

type (
	// RecurrenceKind classifies how a record repeats.
	RecurrenceKind string

	// Date is a calendar date. The time-of-day component is always
	// midnight UTC; comparisons are therefore date-only.
	Date struct {
		time.Time
	}

	// Money is a monetary amount in integer cents.
	Money struct {
		Cents int64
	}

	// ExpenseRecord is a stored expense as entered by the user. Value is
	// always the total amount, never pre-divided across installments.
	ExpenseRecord struct {
		ID            string
		Value         Money
		Date          Date // when the expense was incurred
		DueDate       Date // first billing date; zero falls back to Date
		Category      string
		Subcategory   string
		Description   string
		CardID        string // empty for non-card expenses
		Fixed         bool   // repeats monthly with no fixed count
		Recurring     bool   // fixed charge still open-ended
		Installments  int    // >= 2 splits the value across monthly charges
		EndRecurrence Date   // bounds fixed projection when set
	}

	// Card is a credit card or account owning card expenses.
	Card struct {
		ID         string
		Name       string
		Brand      string
		LastDigits string
		Limit      Money
		DueDay     int // day of month the statement is due
		ClosingDay int // day of month the statement closes
	}
)

const (
	OneOff      RecurrenceKind = "one-off"
	Fixed       RecurrenceKind = "fixed"
	Installment RecurrenceKind = "installment"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrNegativeValue       = errors.New("negative expense value")
	ErrInvalidInstallments = errors.New("invalid installment count")
	ErrInvalidWindow       = errors.New("invalid window: start after end")
	ErrInvalidDate         = errors.New("invalid date")
	ErrEmptyName           = errors.New("empty name")
	ErrInvalidClosingDay   = errors.New("closing day must be between 1 and 31")
)

// NewDate creates a Date from year, month and day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar date in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a date in ISO form (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// ISO formats the date as 2006-01-02.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

// MonthKey returns the calendar month of the date as "YYYY-MM".
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

// StartOfMonth returns the first day of the date's month.
func (d Date) StartOfMonth() Date {
	return NewDate(d.Year(), int(d.Month()), 1)
}

// AddMonths steps the date forward by whole calendar months, clamping the
// day to the target month's length. Stepping is always computed from the
// receiver, so Jan 31 + 1 is Feb 28/29 and Jan 31 + 2 is Mar 31.
func (d Date) AddMonths(n int) Date {
	y, m, day := d.Date()
	target := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := lastDayOfMonth(target.Year(), target.Month()); day > last {
		day = last
	}
	return NewDate(target.Year(), int(target.Month()), day)
}

// ClampDay returns the date at the given day of the receiver's month,
// clamped to the month's length.
func (d Date) ClampDay(day int) Date {
	if last := lastDayOfMonth(d.Year(), d.Month()); day > last {
		day = last
	}
	return NewDate(d.Year(), int(d.Month()), day)
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Validate checks the date is usable.
func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// EffectiveDueDate is the date the record is first billed on: the due date
// when present, otherwise the occurrence date.
func (r ExpenseRecord) EffectiveDueDate() Date {
	if !r.DueDate.IsZero() {
		return r.DueDate
	}
	return r.Date
}

// Kind classifies the record into exactly one recurrence shape.
// Installments take precedence over the fixed flag: an installment plan
// defines a finite schedule, so it wins when a record ambiguously carries
// both.
func (r ExpenseRecord) Kind() RecurrenceKind {
	if r.Installments >= 2 {
		return Installment
	}
	if r.Fixed || !r.EndRecurrence.IsZero() {
		return Fixed
	}
	return OneOff
}

// Validate rejects records the projection engine must not attempt.
// Ambiguous-but-parseable shapes are not errors; Kind resolves them
// deterministically. An installment count of 0 or 1 means no plan, so
// only negative counts are rejected.
func (r ExpenseRecord) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if r.Value.IsNegative() {
		return ErrNegativeValue
	}
	if r.Installments < 0 {
		return ErrInvalidInstallments
	}
	return nil
}

// Validate checks card fields needed by the billing window resolver.
func (c Card) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.ClosingDay < 1 || c.ClosingDay > 31 {
		return ErrInvalidClosingDay
	}
	if c.DueDay < 1 || c.DueDay > 31 {
		return errors.New("due day must be between 1 and 31")
	}
	return nil
}
