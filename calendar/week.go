package calendar

import "time"

// WeekRule numbers weeks the ISO-8601 way, generalized over the first day of
// the week: week 1 of a week-year is the first week with at least MinDays
// days in the new calendar year.
type WeekRule struct {
	FirstDay time.Weekday
	MinDays  int
}

// NewWeekRule returns the rule used by RFC 5545 (minimum four days in the
// first week) for the given first day of the week.
func NewWeekRule(first time.Weekday) WeekRule {
	return WeekRule{FirstDay: first, MinDays: 4}
}

// dayInWeek returns the 0-based position of wd within a week starting at
// FirstDay.
func (r WeekRule) dayInWeek(wd time.Weekday) int {
	return (int(wd) - int(r.FirstDay) + 7) % 7
}

// start returns the first day of week 1 of weekYear.
func (r WeekRule) start(weekYear int) Date {
	jan1 := Date{Year: weekYear, Month: time.January, Day: 1}
	offset := r.dayInWeek(jan1.Weekday())
	start := jan1.AddDays(-offset)
	if 7-offset < r.MinDays {
		start = start.AddDays(7)
	}
	return start
}

// WeekYear returns the week-year that d belongs to, which differs from the
// calendar year for some dates at the very start or end of a year.
func (r WeekRule) WeekYear(d Date) int {
	switch {
	case d.Before(r.start(d.Year)):
		return d.Year - 1
	case !d.Before(r.start(d.Year + 1)):
		return d.Year + 1
	default:
		return d.Year
	}
}

// WeekOfWeekYear returns the 1-based week number of d within its week-year.
func (r WeekRule) WeekOfWeekYear(d Date) int {
	return r.start(r.WeekYear(d)).DaysUntil(d)/7 + 1
}

// WeeksInWeekYear returns 52 or 53.
func (r WeekRule) WeeksInWeekYear(weekYear int) int {
	return r.start(weekYear).DaysUntil(r.start(weekYear+1)) / 7
}

// DateOf returns the date of weekday wd in the given week of weekYear.
// Callers are expected to pass a week in 1..WeeksInWeekYear(weekYear).
func (r WeekRule) DateOf(weekYear, week int, wd time.Weekday) Date {
	return r.start(weekYear).AddDays((week-1)*7 + r.dayInWeek(wd))
}

// StartOfWeek returns the first day of the week containing d.
func (r WeekRule) StartOfWeek(d Date) Date {
	return d.AddDays(-r.dayInWeek(d.Weekday()))
}
