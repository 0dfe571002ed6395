package recurrence

import (
	"cmp"
	"slices"
	"time"

	"github.com/cyp0633/librrule/calendar"
)

// normalCache holds the normalized values of one context-dependent clause
// together with the context key they were computed for.
type normalCache[K comparable] struct {
	key    K
	values []int
	valid  bool
	// alwaysNormal marks values that do not depend on the key.
	alwaysNormal bool
}

// get returns the values for key, recomputing them unless they are
// key-independent or the cache is enabled and still holds key.
func (c *normalCache[K]) get(key K, enabled bool, compute func(K) []int) []int {
	if c.alwaysNormal || (enabled && c.valid && c.key == key) {
		return c.values
	}
	c.values, c.key, c.valid = compute(key), key, true
	return c.values
}

type yearMonth struct {
	year  int
	month time.Month
}

// byRuleValues is the normalized view of a rule's BY-clauses for one
// evaluation. Context-dependent clauses are normalized lazily and cached per
// period key.
type byRuleValues struct {
	firstDayOfWeek time.Weekday
	cacheEnabled   bool

	months  []int
	hours   []int
	minutes []int
	seconds []int

	byWeekNo []int
	weeks    normalCache[int]

	byYearDay []int
	yearDays  normalCache[int]

	byMonthDay []int
	monthDays  normalCache[yearMonth]

	byDay             []WeekDay
	daysWithoutOffset []time.Weekday
	daysWithOffset    []WeekDay
	hasByDayOffsets   bool

	bySetPos          []int
	setPos            normalCache[int]
	hasNegativeSetPos bool
}

func newByRuleValues(rule *Rule, cacheEnabled bool) *byRuleValues {
	v := &byRuleValues{
		firstDayOfWeek: rule.FirstDayOfWeek,
		cacheEnabled:   cacheEnabled,

		months:  sortValues(rule.ByMonth),
		hours:   sortValues(rule.ByHour),
		minutes: sortValues(rule.ByMinute),
		seconds: sortValues(rule.BySecond),

		byWeekNo:   slices.Clone(rule.ByWeekNo),
		byYearDay:  slices.Clone(rule.ByYearDay),
		byMonthDay: slices.Clone(rule.ByMonthDay),
		byDay:      slices.Clone(rule.ByDay),
		bySetPos:   slices.Clone(rule.BySetPosition),
	}

	if !slices.ContainsFunc(v.byWeekNo, func(x int) bool { return x < 0 }) {
		v.weeks = normalCache[int]{values: sortValues(v.byWeekNo), valid: true, alwaysNormal: true}
	}
	if !slices.ContainsFunc(v.byYearDay, func(x int) bool { return x <= 0 }) {
		v.yearDays = normalCache[int]{values: sortValues(v.byYearDay), valid: true, alwaysNormal: true}
	}

	v.hasNegativeSetPos = slices.ContainsFunc(v.bySetPos, func(x int) bool { return x < 0 })
	if !v.hasNegativeSetPos {
		v.setPos = normalCache[int]{values: sortValues(v.bySetPos), valid: true, alwaysNormal: true}
	}

	for _, wd := range v.byDay {
		if wd.Offset.IsPresent() {
			v.hasByDayOffsets = true
			v.daysWithOffset = append(v.daysWithOffset, wd)
		} else {
			v.daysWithoutOffset = append(v.daysWithoutOffset, wd.Day)
		}
	}
	v.daysWithoutOffset = normalizeWeekdays(v.daysWithoutOffset, v.firstDayOfWeek)
	// Ordering by offset only keeps the generated dates roughly ordered;
	// the expansion sorts them again.
	slices.SortStableFunc(v.daysWithOffset, func(a, b WeekDay) int {
		return cmp.Compare(a.Offset.OrEmpty(), b.Offset.OrEmpty())
	})

	return v
}

func (v *byRuleValues) byMonth() bool       { return len(v.months) > 0 }
func (v *byRuleValues) byWeekNoSet() bool   { return len(v.byWeekNo) > 0 }
func (v *byRuleValues) bySetPosition() bool { return len(v.bySetPos) > 0 }

// weekNumbers returns the BYWEEKNO values for a week-year with
// weeksInWeekYear weeks.
func (v *byRuleValues) weekNumbers(weeksInWeekYear int) []int {
	return v.weeks.get(weeksInWeekYear, v.cacheEnabled, func(weeks int) []int {
		return normalizeWeekNo(v.byWeekNo, weeks)
	})
}

// yearDayNumbers returns the BYYEARDAY values for year.
func (v *byRuleValues) yearDayNumbers(year int) []int {
	return v.yearDays.get(year, v.cacheEnabled, func(year int) []int {
		return normalizeYearDays(v.byYearDay, year)
	})
}

// monthDayNumbers returns the BYMONTHDAY values that exist in the month.
func (v *byRuleValues) monthDayNumbers(year int, month time.Month) []int {
	return v.monthDays.get(yearMonth{year, month}, v.cacheEnabled, func(k yearMonth) []int {
		return normalizeMonthDays(v.byMonthDay, k.year, k.month)
	})
}

// setPositions returns the 1-based BYSETPOS values for a set of size count.
// Without negative positions the count is irrelevant.
func (v *byRuleValues) setPositions(count int) []int {
	return v.setPos.get(count, v.cacheEnabled, func(count int) []int {
		return normalizeSetPos(v.bySetPos, count)
	})
}

// matchesByDay reports whether d matches any BYDAY entry. Ordinals count
// within the month when inMonth is set, and within the year otherwise.
func (v *byRuleValues) matchesByDay(d calendar.Date, inMonth bool) (bool, error) {
	if !v.hasByDayOffsets {
		return slices.Contains(v.daysWithoutOffset, d.Weekday()), nil
	}

	var start, end calendar.Date
	if inMonth {
		start = calendar.Date{Year: d.Year, Month: d.Month, Day: 1}
		end = start.AddMonths(1)
	} else {
		start = calendar.Date{Year: d.Year, Month: time.January, Day: 1}
		end = start.AddYears(1)
	}

	for _, wd := range v.byDay {
		if wd.Day != d.Weekday() {
			continue
		}
		n, ok := wd.Offset.Get()
		if !ok {
			return true, nil
		}
		match, found, err := nthWeekday(start, end, wd.Day, n)
		if err != nil {
			return false, err
		}
		if found && match == d {
			return true, nil
		}
	}
	return false, nil
}

func sortValues(values []int) []int {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}

// fromEnd maps a 1-based index that may count from the end of a period of the
// given size onto a 1-based index from the start.
func fromEnd(value, size int) int {
	return size + value + 1
}

func normalizeWeekNo(byWeekNo []int, weeksInWeekYear int) []int {
	out := make([]int, len(byWeekNo))
	for i, w := range byWeekNo {
		if w >= 0 {
			out[i] = w
		} else {
			out[i] = fromEnd(w, weeksInWeekYear)
		}
	}
	return sortValues(out)
}

func normalizeYearDays(byYearDay []int, year int) []int {
	daysInYear := calendar.DaysInYear(year)
	out := make([]int, len(byYearDay))
	for i, d := range byYearDay {
		if d > 0 {
			out[i] = d
		} else {
			out[i] = fromEnd(d, daysInYear)
		}
	}
	return sortValues(out)
}

func normalizeMonthDays(byMonthDay []int, year int, month time.Month) []int {
	daysInMonth := calendar.DaysIn(year, month)
	out := make([]int, 0, len(byMonthDay))
	for _, d := range byMonthDay {
		if d <= 0 {
			d = fromEnd(d, daysInMonth)
		}
		if d > 0 && d <= daysInMonth {
			out = append(out, d)
		}
	}
	return sortValues(out)
}

func normalizeSetPos(bySetPos []int, count int) []int {
	out := make([]int, len(bySetPos))
	for i, p := range bySetPos {
		if p < 0 {
			out[i] = fromEnd(p, count)
		} else {
			out[i] = p
		}
	}
	return sortValues(out)
}

// normalizeWeekdays orders weekdays as they appear in a week starting on
// first.
func normalizeWeekdays(days []time.Weekday, first time.Weekday) []time.Weekday {
	sorted := slices.Clone(days)
	slices.SortFunc(sorted, func(a, b time.Weekday) int {
		return cmp.Compare(weekPosition(first, a), weekPosition(first, b))
	})
	return slices.Compact(sorted)
}

func weekPosition(first, wd time.Weekday) int {
	return (int(wd) - int(first) + 7) % 7
}
