package recurrence

import (
	"iter"
	"slices"
	"time"

	"github.com/cyp0633/librrule/calendar"
)

// stage is one step of the occurrence pipeline. apply wraps the candidates
// produced by the coarser stages.
type stage struct {
	name  string
	apply func(r *run, in iter.Seq[time.Time]) iter.Seq[time.Time]
}

// planStages turns a rule into its pipeline, ordered coarse to fine. Absent
// clauses pass candidates through and get no stage. A date-only reference
// has no time-of-day stages.
func planStages(rule *Rule, hasTime bool) ([]stage, error) {
	freq := rule.Frequency
	byMonth := len(rule.ByMonth) > 0
	byWeekNo := len(rule.ByWeekNo) > 0
	byYearDay := len(rule.ByYearDay) > 0
	byMonthDay := len(rule.ByMonthDay) > 0
	byDay := len(rule.ByDay) > 0
	byDayOffsets := slices.ContainsFunc(rule.ByDay, func(wd WeekDay) bool { return wd.Offset.IsPresent() })

	var plan []stage

	if byMonth {
		if freq == Yearly {
			plan = append(plan, stage{"expand-month", (*run).expandMonth})
		} else {
			plan = append(plan, stage{"limit-month", (*run).limitMonth})
		}
	}

	if byWeekNo {
		if freq != Yearly {
			return nil, configErrorf("BYWEEKNO is not supported with %s", freq)
		}
		plan = append(plan, stage{"expand-week-number", (*run).expandWeekNo})
	}

	if byYearDay {
		switch {
		case freq == Yearly:
			plan = append(plan, stage{"expand-year-day", (*run).expandYearDay})
		case freq < Daily:
			plan = append(plan, stage{"limit-year-day", (*run).limitYearDay})
		default:
			return nil, configErrorf("BYYEARDAY is not supported with %s", freq)
		}
	}

	if byMonthDay {
		switch {
		case freq == Weekly:
			return nil, configErrorf("BYMONTHDAY is not supported with %s", freq)
		case freq > Weekly && byYearDay:
			plan = append(plan, stage{"limit-month-day", (*run).limitMonthDay})
		case freq > Weekly && byWeekNo:
			plan = append(plan, stage{"expand-month-day-in-week", (*run).expandMonthDayFromWeek})
		case freq > Weekly:
			plan = append(plan, stage{"expand-month-day", (*run).expandMonthDayFromMonth})
		default:
			plan = append(plan, stage{"limit-month-day", (*run).limitMonthDay})
		}
	}

	switch {
	case !byDay:
		// Month and year periods carry the reference day unless another
		// clause picks the days.
		if (freq == Monthly || freq == Yearly) && !byMonthDay && !byYearDay && !byWeekNo {
			plan = append(plan, stage{"limit-reference-day", (*run).limitReferenceDay})
		}
	case freq == Weekly:
		if byDayOffsets {
			return nil, configErrorf("BYDAY ordinals are not supported with %s", freq)
		}
		plan = append(plan, stage{"expand-day-in-week", (*run).expandDayFromWeek})
	case freq == Monthly:
		if byMonthDay {
			plan = append(plan, stage{"limit-day-in-month", (*run).limitDayOfMonth})
		} else {
			plan = append(plan, stage{"expand-day-in-month", (*run).expandDayInMonth})
		}
	case freq == Yearly:
		switch {
		case (byYearDay || byMonthDay) && byMonth:
			plan = append(plan, stage{"limit-day-in-month", (*run).limitDayOfMonth})
		case byYearDay || byMonthDay:
			plan = append(plan, stage{"limit-day-in-year", (*run).limitDayOfYear})
		case byWeekNo:
			plan = append(plan, stage{"expand-day-in-week-number", (*run).expandDayInWeekNo})
		case byMonth:
			plan = append(plan, stage{"expand-day-in-month", (*run).expandDayInMonth})
		default:
			plan = append(plan, stage{"expand-day-in-year", (*run).expandDayInYear})
		}
	default:
		if byDayOffsets {
			return nil, configErrorf("BYDAY ordinals are not supported with %s", freq)
		}
		plan = append(plan, stage{"limit-weekday", (*run).limitWeekday})
	}

	if !hasTime {
		return plan, nil
	}

	if len(rule.ByHour) > 0 {
		if freq > Hourly {
			plan = append(plan, stage{"expand-hour", (*run).expandHour})
		} else {
			plan = append(plan, stage{"limit-hour", (*run).limitHour})
		}
	}
	if len(rule.ByMinute) > 0 {
		if freq > Minutely {
			plan = append(plan, stage{"expand-minute", (*run).expandMinute})
		} else {
			plan = append(plan, stage{"limit-minute", (*run).limitMinute})
		}
	}
	if len(rule.BySecond) > 0 {
		if freq > Secondly {
			plan = append(plan, stage{"expand-second", (*run).expandSecond})
		} else {
			plan = append(plan, stage{"limit-second", (*run).limitSecond})
		}
	}

	return plan, nil
}

// filter keeps the candidates accepted by keep.
func filter(in iter.Seq[time.Time], keep func(time.Time) bool) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for v := range in {
			if keep(v) && !yield(v) {
				return
			}
		}
	}
}

// expandDates re-emits each candidate on the dates picked by dates, keeping
// the candidate's time of day. A failing dates aborts the run.
func (r *run) expandDates(in iter.Seq[time.Time], dates func(v time.Time) ([]calendar.Date, error)) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for v := range in {
			out, err := dates(v)
			if err != nil {
				r.err = err
				return
			}
			clock := calendar.ClockOf(v)
			for _, d := range out {
				if !yield(r.zone.Lenient(d.At(clock))) {
					return
				}
			}
		}
	}
}

// expandClock re-emits each candidate once per value, replacing one field of
// its time of day. The new time keeps the candidate's offset where it can.
func (r *run) expandClock(in iter.Seq[time.Time], values []int, set func(c *calendar.Clock, v int)) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for v := range in {
			dt := calendar.DateTimeOf(v)
			for _, x := range values {
				next := dt
				set(&next.Clock, x)
				if !yield(r.zone.RelativeTo(next, v)) {
					return
				}
			}
		}
	}
}

// limitDays keeps the candidates whose date passes match. A failing match
// aborts the run.
func (r *run) limitDays(in iter.Seq[time.Time], match func(d calendar.Date) (bool, error)) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for v := range in {
			ok, err := match(calendar.DateOf(v))
			if err != nil {
				r.err = err
				return
			}
			if ok && !yield(v) {
				return
			}
		}
	}
}

func (r *run) limitMonth(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return filter(in, func(v time.Time) bool {
		return slices.Contains(r.values.months, int(v.Month()))
	})
}

func (r *run) expandMonth(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return r.expandDates(in, func(v time.Time) ([]calendar.Date, error) {
		out := make([]calendar.Date, 0, len(r.values.months))
		for _, m := range r.values.months {
			month := time.Month(m)
			day := min(calendar.DaysIn(v.Year(), month), v.Day())
			out = append(out, calendar.Date{Year: v.Year(), Month: month, Day: day})
		}
		return out, nil
	})
}

func (r *run) expandWeekNo(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return r.expandDates(in, func(v time.Time) ([]calendar.Date, error) {
		weekYear := r.weekYearNearReference(calendar.DateOf(v))
		weeks := r.weeks.WeeksInWeekYear(weekYear)

		var out []calendar.Date
		for _, w := range r.values.weekNumbers(weeks) {
			if w < 1 || w > weeks {
				continue
			}
			d := r.weeks.DateOf(weekYear, w, r.ref.Weekday())
			if r.values.byMonth() && d.Month != v.Month() {
				continue
			}
			out = append(out, d)
		}
		return out, nil
	})
}

// weekYearNearReference picks the week-year of d the way a yearly rule
// means it: the week-year holding the reference week in d's calendar year.
// References in the first or last week of a year would otherwise drift to a
// neighbouring week-year.
func (r *run) weekYearNearReference(d calendar.Date) int {
	if d.Month != r.ref.Month || d.Day != r.ref.Day {
		d = r.ref.Date.AddYears(d.Year - r.ref.Year)
	}

	weekYear := r.weeks.WeekYear(d)
	switch diff := r.weeks.WeekOfWeekYear(d) - r.refWeekNo; {
	case diff > 1:
		weekYear++
	case diff < -1:
		weekYear--
	}
	return weekYear
}

func (r *run) limitYearDay(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return filter(in, func(v time.Time) bool {
		return slices.Contains(r.values.yearDayNumbers(v.Year()), v.YearDay())
	})
}

func (r *run) expandYearDay(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return r.expandDates(in, func(v time.Time) ([]calendar.Date, error) {
		vd := calendar.DateOf(v)
		valueWeek := r.weeks.WeekOfWeekYear(vd)
		jan1 := calendar.Date{Year: vd.Year, Month: time.January, Day: 1}
		daysInYear := calendar.DaysInYear(vd.Year)

		var out []calendar.Date
		for _, day := range r.values.yearDayNumbers(vd.Year) {
			if day < 1 || day > daysInYear {
				continue
			}
			d := jan1.AddDays(day - 1)
			if r.values.byMonth() && d.Month != vd.Month {
				continue
			}
			if r.values.byWeekNoSet() && r.weeks.WeekOfWeekYear(d) != valueWeek {
				continue
			}
			out = append(out, d)
		}
		return out, nil
	})
}

func (r *run) limitMonthDay(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return filter(in, func(v time.Time) bool {
		return slices.Contains(r.values.monthDayNumbers(v.Year(), v.Month()), v.Day())
	})
}

func (r *run) expandMonthDayFromMonth(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return r.expandDates(in, func(v time.Time) ([]calendar.Date, error) {
		days := r.values.monthDayNumbers(v.Year(), v.Month())
		out := make([]calendar.Date, 0, len(days))
		for _, day := range days {
			out = append(out, calendar.Date{Year: v.Year(), Month: v.Month(), Day: day})
		}
		return out, nil
	})
}

func (r *run) expandMonthDayFromWeek(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return r.expandDates(in, func(v time.Time) ([]calendar.Date, error) {
		days := r.values.monthDayNumbers(v.Year(), v.Month())
		start := r.weeks.StartOfWeek(calendar.DateOf(v))

		var out []calendar.Date
		for i := range 7 {
			d := start.AddDays(i)
			if !slices.Contains(days, d.Day) {
				continue
			}
			if r.values.byMonth() && !slices.Contains(r.values.months, int(d.Month)) {
				continue
			}
			out = append(out, d)
		}
		return out, nil
	})
}

// limitReferenceDay drops month-level candidates whose month is too short
// for the reference day. The seed already sits on the nearest day.
func (r *run) limitReferenceDay(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	refDay := r.ref.Day
	return filter(in, func(v time.Time) bool {
		return v.Day() == refDay || refDay <= calendar.DaysIn(v.Year(), v.Month())
	})
}

func (r *run) limitWeekday(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return filter(in, func(v time.Time) bool {
		return slices.Contains(r.values.daysWithoutOffset, v.Weekday())
	})
}

func (r *run) limitDayOfMonth(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return r.limitDays(in, func(d calendar.Date) (bool, error) {
		return r.values.matchesByDay(d, true)
	})
}

func (r *run) limitDayOfYear(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return r.limitDays(in, func(d calendar.Date) (bool, error) {
		return r.values.matchesByDay(d, false)
	})
}

// expandDayFromWeek expands a weekly candidate to the listed weekdays of its
// week, staying inside the candidate's month when BYMONTH is present.
func (r *run) expandDayFromWeek(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return r.expandDates(in, func(v time.Time) ([]calendar.Date, error) {
		vd := calendar.DateOf(v)
		weekYear := r.weeks.WeekYear(vd)
		week := r.weeks.WeekOfWeekYear(vd)

		out := make([]calendar.Date, 0, len(r.values.daysWithoutOffset))
		for _, wd := range r.values.daysWithoutOffset {
			d := r.weeks.DateOf(weekYear, week, wd)
			if r.values.byMonth() && d.Month != vd.Month {
				continue
			}
			out = append(out, d)
		}
		return out, nil
	})
}

func (r *run) expandDayInWeekNo(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return r.expandDates(in, func(v time.Time) ([]calendar.Date, error) {
		vd := calendar.DateOf(v)
		start := r.weeks.StartOfWeek(vd)
		end := start.AddDays(7)

		if r.values.byMonth() {
			if start.Month != vd.Month {
				start = calendar.Date{Year: vd.Year, Month: vd.Month, Day: 1}
			} else if end.Month != vd.Month && end.Day != 1 {
				end = calendar.Date{Year: end.Year, Month: end.Month, Day: 1}
			}
		}
		return expandWeekdays(start, end, r.values.daysWithoutOffset, r.values.daysWithOffset)
	})
}

func (r *run) expandDayInMonth(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return r.expandDates(in, func(v time.Time) ([]calendar.Date, error) {
		start := calendar.Date{Year: v.Year(), Month: v.Month(), Day: 1}
		return expandWeekdays(start, start.AddMonths(1), r.values.daysWithoutOffset, r.values.daysWithOffset)
	})
}

func (r *run) expandDayInYear(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return r.expandDates(in, func(v time.Time) ([]calendar.Date, error) {
		start := calendar.Date{Year: v.Year(), Month: time.January, Day: 1}
		return expandWeekdays(start, start.AddYears(1), r.values.daysWithoutOffset, r.values.daysWithOffset)
	})
}

func (r *run) limitHour(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return filter(in, func(v time.Time) bool {
		return slices.Contains(r.values.hours, v.Hour())
	})
}

func (r *run) expandHour(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return r.expandClock(in, r.values.hours, func(c *calendar.Clock, h int) { c.Hour = h })
}

func (r *run) limitMinute(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return filter(in, func(v time.Time) bool {
		return slices.Contains(r.values.minutes, v.Minute())
	})
}

func (r *run) expandMinute(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return r.expandClock(in, r.values.minutes, func(c *calendar.Clock, m int) { c.Minute = m })
}

func (r *run) limitSecond(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return filter(in, func(v time.Time) bool {
		return slices.Contains(r.values.seconds, v.Second())
	})
}

func (r *run) expandSecond(in iter.Seq[time.Time]) iter.Seq[time.Time] {
	return r.expandClock(in, r.values.seconds, func(c *calendar.Clock, s int) { c.Second = s })
}
