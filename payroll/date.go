package payroll

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar date at day granularity (periods, pay dates, entry dates)
// =============================================================================

// Date is a calendar date normalized to UTC midnight. Payroll has no
// hour-level concepts: periods, pay dates, and entry dates are all whole days.
type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date {
	return DateOf(time.Now().UTC())
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// MustParseDate is for tests and fixtures; panics on bad input.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.normalize().Before(other.normalize()) }
func (d Date) After(other Date) bool         { return d.normalize().After(other.normalize()) }
func (d Date) Equal(other Date) bool         { return d.normalize().Equal(other.normalize()) }
func (d Date) BeforeOrEqual(other Date) bool { return d.Before(other) || d.Equal(other) }
func (d Date) AfterOrEqual(other Date) bool  { return d.After(other) || d.Equal(other) }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{Time: d.Time.AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }
func (d Date) IsZero() bool      { return d.Time.IsZero() }

func (d Date) String() string { return d.normalize().Format("2006-01-02") }

// DaysBetween returns the whole-day distance from one date to another.
func DaysBetween(from, to Date) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

// =============================================================================
// DATE RANGES
// =============================================================================

// InRange reports whether d falls within [start, end], inclusive on both ends.
// Sub-ledger entries are in-period when their date satisfies this test.
func (d Date) InRange(start, end Date) bool {
	return d.AfterOrEqual(start) && d.BeforeOrEqual(end)
}

// RangesOverlap tests two [start, end) ranges for overlap:
// A.start < B.end AND A.end > B.start. This is the period-uniqueness test:
// two payroll periods may share a boundary day but never an interior day.
func RangesOverlap(aStart, aEnd, bStart, bEnd Date) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
