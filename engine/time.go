package engine

import (
	"time"
)

// =============================================================================
// DATE - Day-granularity calendar date
// =============================================================================

// Date is a calendar day. The underlying time is always UTC midnight, so
// two Dates compare equal exactly when they name the same day.
type Date struct {
	Time time.Time
}

const dateLayout = "2006-01-02"

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day (in t's own location).
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, &InvalidArgumentError{Field: "date", Value: s, Reason: "expected YYYY-MM-DD"}
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.normalize().Before(other.normalize()) }
func (d Date) Equal(other Date) bool         { return d.normalize().Equal(other.normalize()) }
func (d Date) After(other Date) bool         { return d.normalize().After(other.normalize()) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.normalize().AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int          { return d.Time.Year() }
func (d Date) Month() time.Month  { return d.Time.Month() }
func (d Date) Day() int           { return d.Time.Day() }
func (d Date) IsZero() bool       { return d.Time.IsZero() }
func (d Date) String() string     { return d.Time.Format(dateLayout) }
func (d Date) WithDay(day int) Date { return NewDate(d.Year(), d.Month(), day) }

// =============================================================================
// CALENDAR UTILITIES
// =============================================================================

// MinDueDay and MaxDueDay bound a monthly due day. Day 28 exists in every
// month, so a due day in this range never needs month-length adjustment.
const (
	MinDueDay = 1
	MaxDueDay = 28
)

// DaysBetween returns whole days from start to end, never negative.
func DaysBetween(start, end Date) int {
	if !end.After(start) {
		return 0
	}
	return int(end.dayNumber() - start.dayNumber())
}

// dayNumber counts days since the Unix epoch. Counting through
// time.Duration would saturate for spans over ~292 years.
func (d Date) dayNumber() int64 {
	return d.normalize().Unix() / secondsPerDay
}

const secondsPerDay = 24 * 60 * 60

// StartOfMonth returns the first day of d's month.
func StartOfMonth(d Date) Date { return NewDate(d.Year(), d.Month(), 1) }

// EndOfMonth returns the last day of d's month.
func EndOfMonth(d Date) Date { return AddCalendarMonth(d).AddDays(-1) }

// AddCalendarMonth returns the first day of the month after d.
func AddCalendarMonth(d Date) Date {
	// time.Date normalizes month 13 to January of the following year.
	return NewDate(d.Year(), d.Month()+1, 1)
}

// NextDueDate returns the first occurrence of dueDay strictly after anchor.
// The candidate in anchor's own month is used unless it falls on or before
// anchor, in which case the due date rolls to the following month.
func NextDueDate(anchor Date, dueDay int) (Date, error) {
	if err := ValidateDueDay(dueDay); err != nil {
		return Date{}, err
	}
	candidate := anchor.WithDay(dueDay)
	if !candidate.After(anchor) {
		candidate = AddCalendarMonth(anchor).WithDay(dueDay)
	}
	return candidate, nil
}

// ValidateDueDay rejects due days outside [MinDueDay, MaxDueDay].
func ValidateDueDay(dueDay int) error {
	if dueDay < MinDueDay || dueDay > MaxDueDay {
		return &InvalidArgumentError{
			Field:  "due_day",
			Value:  dueDay,
			Reason: "must be between 1 and 28",
		}
	}
	return nil
}

// clampDueDay forces a calendar day into the due-day range. Card due dates
// can land on the 29th-31st; the monthly projection uses the clamped day.
func clampDueDay(day int) int {
	if day < MinDueDay {
		return MinDueDay
	}
	if day > MaxDueDay {
		return MaxDueDay
	}
	return day
}
