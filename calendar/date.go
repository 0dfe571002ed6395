// Package calendar provides the civil date arithmetic, week numbering and
// local-time resolution used by the recurrence evaluator.
package calendar

import (
	"fmt"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// Date is a proleptic Gregorian calendar date without a clock or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour       int
	Minute     int
	Second     int
	Nanosecond int
}

// DateTime is a local date and time of day, not yet bound to a zone.
type DateTime struct {
	Date
	Clock
}

// NewDate returns the date for year, month and day, normalizing overflowing
// values the same way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the wall date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ClockOf returns the wall clock of t in t's location.
func ClockOf(t time.Time) Clock {
	h, m, s := t.Clock()
	return Clock{Hour: h, Minute: m, Second: s, Nanosecond: t.Nanosecond()}
}

// DateTimeOf returns the local date and time of t in t's location.
func DateTimeOf(t time.Time) DateTime {
	return DateTime{Date: DateOf(t), Clock: ClockOf(t)}
}

// utc anchors the date at midnight UTC, where every day is exactly 24h long.
func (d Date) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// At combines the date with a clock.
func (d Date) At(c Clock) DateTime {
	return DateTime{Date: d, Clock: c}
}

// AddDays returns the date n days later (earlier if n is negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.utc().AddDate(0, 0, n))
}

// AddMonths adds n months, clamping the day to the end of the target month.
// Jan 31 plus one month is Feb 28 (or 29).
func (d Date) AddMonths(n int) Date {
	total := d.Year*12 + int(d.Month-1) + n
	year, month := floorDiv(total, 12), time.Month(floorMod(total, 12)+1)
	return Date{Year: year, Month: month, Day: min(d.Day, DaysIn(year, month))}
}

// AddYears adds n years, clamping Feb 29 to Feb 28 in non-leap years.
func (d Date) AddYears(n int) Date {
	year := d.Year + n
	return Date{Year: year, Month: d.Month, Day: min(d.Day, DaysIn(year, d.Month))}
}

// WithNearestDay moves the date to day within the same month, or to the last
// day of the month when day does not exist in it.
func (d Date) WithNearestDay(day int) Date {
	return Date{Year: d.Year, Month: d.Month, Day: max(1, min(day, DaysIn(d.Year, d.Month)))}
}

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday {
	return d.utc().Weekday()
}

// YearDay returns the 1-based day of the year.
func (d Date) YearDay() int {
	return d.utc().YearDay()
}

// Next returns the first date strictly after d that falls on wd.
func (d Date) Next(wd time.Weekday) Date {
	diff := (int(wd) - int(d.Weekday()) + 7) % 7
	if diff == 0 {
		diff = 7
	}
	return d.AddDays(diff)
}

// Previous returns the last date strictly before d that falls on wd.
func (d Date) Previous(wd time.Weekday) Date {
	diff := (int(d.Weekday()) - int(wd) + 7) % 7
	if diff == 0 {
		diff = 7
	}
	return d.AddDays(-diff)
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or
// after o.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

// Before reports whether d is before o.
func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

// After reports whether d is after o.
func (d Date) After(o Date) bool { return d.Compare(o) > 0 }

// DaysUntil returns the number of days from d to o (negative if o is earlier).
func (d Date) DaysUntil(o Date) int {
	return int((o.utc().Unix() - d.utc().Unix()) / secondsPerDay)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Compare orders two local date-times.
func (dt DateTime) Compare(o DateTime) int {
	if c := dt.Date.Compare(o.Date); c != 0 {
		return c
	}
	return dt.Clock.Compare(o.Clock)
}

func (dt DateTime) String() string {
	return dt.Date.String() + "T" + dt.Clock.String()
}

// Compare orders two clocks.
func (c Clock) Compare(o Clock) int {
	switch {
	case c.Hour != o.Hour:
		return cmpInt(c.Hour, o.Hour)
	case c.Minute != o.Minute:
		return cmpInt(c.Minute, o.Minute)
	case c.Second != o.Second:
		return cmpInt(c.Second, o.Second)
	default:
		return cmpInt(c.Nanosecond, o.Nanosecond)
	}
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// IsLeap reports whether year is a Gregorian leap year.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	switch month {
	case time.February:
		if IsLeap(year) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// DaysInYear returns 366 for leap years and 365 otherwise.
func DaysInYear(year int) int {
	if IsLeap(year) {
		return 366
	}
	return 365
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
