package recurrence

import (
	"slices"
	"time"

	"github.com/cyp0633/librrule/calendar"
)

// nthWeekday returns the n-th wd in [start, end), counting from the end when
// n is negative. found is false when that weekday falls outside the window.
func nthWeekday(start, end calendar.Date, wd time.Weekday, n int) (d calendar.Date, found bool, err error) {
	switch {
	case n > 0:
		d = start
		if d.Weekday() != wd {
			d = d.Next(wd)
		}
		d = d.AddDays(7 * (n - 1))
		return d, d.Before(end), nil
	case n < 0:
		// end is exclusive
		d = end.Previous(wd).AddDays(7 * (n + 1))
		return d, !d.Before(start), nil
	default:
		return d, false, configErrorf("BYDAY ordinal of 0 is not allowed")
	}
}

// weekdaysBetween lists every date in [start, end) that falls on one of days,
// in order. days must be ordered relative to the week start.
func weekdaysBetween(start, end calendar.Date, days []time.Weekday) []calendar.Date {
	if len(days) == 0 {
		return nil
	}

	// Start at the listed weekday closest on or after start; the cyclic order
	// of days is the same whatever the week start.
	i, gap := 0, 7
	for j, wd := range days {
		if g := weekPosition(start.Weekday(), wd); g < gap {
			i, gap = j, g
		}
	}
	d := start.AddDays(gap)

	var out []calendar.Date
	for d.Before(end) {
		out = append(out, d)
		i = (i + 1) % len(days)
		d = d.Next(days[i])
	}
	return out
}

// expandWeekdays returns the ordered, distinct dates in [start, end) selected
// by the plain weekdays and the ordinal weekdays.
func expandWeekdays(start, end calendar.Date, plain []time.Weekday, ordinal []WeekDay) ([]calendar.Date, error) {
	out := weekdaysBetween(start, end, plain)
	if len(ordinal) == 0 {
		return out, nil
	}

	for _, wd := range ordinal {
		d, found, err := nthWeekday(start, end, wd.Day, wd.Offset.OrEmpty())
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, calendar.Date.Compare)
	return slices.Compact(out), nil
}
