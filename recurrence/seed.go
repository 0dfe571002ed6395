package recurrence

import (
	"time"

	"github.com/cyp0633/librrule/calendar"
)

// advance moves the seed to the next period. It fails once more than the
// configured number of periods in a row produced nothing.
func (r *run) advance() error {
	if limit := r.options.MaxUnmatchedIncrements; limit > 0 && r.unmatched > limit {
		r.logger.Warn("unmatched increment limit exceeded",
			"limit", limit,
			"frequency", r.rule.Frequency.String(),
			"seed", r.seed)
		return limitError(limit)
	}
	r.unmatched++
	r.seed = r.step(r.seed, r.rule.interval())
	return nil
}

// step moves t forward by n frequency units. Time-based frequencies add
// exact durations. Day-based frequencies move the local date and put the
// reference time of day back on it, so a DST shift on one day does not carry
// into the following ones. Months and years keep the reference day where the
// month has one.
func (r *run) step(t time.Time, n int) time.Time {
	switch r.rule.Frequency {
	case Secondly:
		return t.Add(time.Duration(n) * time.Second)
	case Minutely:
		return t.Add(time.Duration(n) * time.Minute)
	case Hourly:
		return t.Add(time.Duration(n) * time.Hour)
	}

	d := calendar.DateOf(t)
	switch r.rule.Frequency {
	case Daily:
		d = d.AddDays(n)
	case Weekly:
		d = d.AddDays(7 * n)
	case Monthly:
		d = d.AddMonths(n).WithNearestDay(r.ref.Day)
	case Yearly:
		d = d.AddYears(n).WithNearestDay(r.ref.Day)
	}
	return r.zone.Lenient(d.At(r.ref.Clock))
}

// skipTo returns the last seed at or before limit that is a whole number of
// intervals away from the current seed.
func (r *run) skipTo(limit time.Time) time.Time {
	seed := r.seed
	if !limit.After(seed) {
		return seed
	}

	var units int
	switch r.rule.Frequency {
	case Secondly:
		units = int(limit.Sub(seed) / time.Second)
	case Minutely:
		units = int(limit.Sub(seed) / time.Minute)
	case Hourly:
		units = int(limit.Sub(seed) / time.Hour)
	case Daily:
		units = calendar.DateOf(seed).DaysUntil(calendar.DateOf(limit))
	case Weekly:
		units = calendar.DateOf(seed).DaysUntil(calendar.DateOf(limit)) / 7
	case Monthly:
		units = monthsBetween(calendar.DateOf(seed), calendar.DateOf(limit))
	case Yearly:
		units = yearsBetween(calendar.DateOf(seed), calendar.DateOf(limit))
	}

	interval := r.rule.interval()
	units = interval * (units / interval)
	if units <= 0 {
		return seed
	}

	r.logger.Debug("skipping ahead to period start",
		"periods", units,
		"period_start", limit)
	return r.step(seed, units)
}

// monthsBetween counts the whole months from a to b, for a before b.
func monthsBetween(a, b calendar.Date) int {
	n := (b.Year-a.Year)*12 + int(b.Month) - int(a.Month)
	if a.AddMonths(n).After(b) {
		n--
	}
	return n
}

// yearsBetween counts the whole years from a to b, for a before b.
func yearsBetween(a, b calendar.Date) int {
	n := b.Year - a.Year
	if a.AddYears(n).After(b) {
		n--
	}
	return n
}
