package recurrence

import (
	"time"

	"github.com/cyp0633/librrule/calendar"
	"github.com/samber/mo"
)

// Frequency is the base repeat unit of a rule, ordered from the finest to the
// coarsest granularity.
type Frequency int

const (
	Secondly Frequency = iota
	Minutely
	Hourly
	Daily
	Weekly
	Monthly
	Yearly
)

// String returns the RFC 5545 name of the frequency.
func (f Frequency) String() string {
	switch f {
	case Secondly:
		return "SECONDLY"
	case Minutely:
		return "MINUTELY"
	case Hourly:
		return "HOURLY"
	case Daily:
		return "DAILY"
	case Weekly:
		return "WEEKLY"
	case Monthly:
		return "MONTHLY"
	case Yearly:
		return "YEARLY"
	default:
		return "UNKNOWN"
	}
}

// WeekDay is one BYDAY entry: a weekday, optionally with a signed ordinal
// ("2MO" is the second Monday, "-1FR" the last Friday).
type WeekDay struct {
	Day    time.Weekday
	Offset mo.Option[int]
}

// Weekday returns a plain BYDAY entry without an ordinal.
func Weekday(day time.Weekday) WeekDay {
	return WeekDay{Day: day, Offset: mo.None[int]()}
}

// NthWeekday returns a BYDAY entry with an ordinal.
func NthWeekday(n int, day time.Weekday) WeekDay {
	return WeekDay{Day: day, Offset: mo.Some(n)}
}

// Rule is a structured RFC 5545 recurrence rule. It is treated as immutable
// while an evaluation is running.
type Rule struct {
	Frequency Frequency
	// Interval is the step in units of Frequency. Zero means 1.
	Interval int
	// At most one of Count and Until may be present.
	Count mo.Option[int]
	Until mo.Option[time.Time]

	FirstDayOfWeek time.Weekday

	ByMonth       []int
	ByWeekNo      []int
	ByYearDay     []int
	ByMonthDay    []int
	ByDay         []WeekDay
	ByHour        []int
	ByMinute      []int
	BySecond      []int
	BySetPosition []int
}

// NewRule returns a rule with the given frequency, an interval of one and
// weeks starting on Monday.
func NewRule(freq Frequency) *Rule {
	return &Rule{
		Frequency:      freq,
		Interval:       1,
		FirstDayOfWeek: time.Monday,
	}
}

func (r *Rule) interval() int {
	return max(1, r.Interval)
}

// hasByRules reports whether any clause other than BYSETPOS is present.
func (r *Rule) hasByRules() bool {
	return len(r.ByMonth) > 0 || len(r.ByWeekNo) > 0 || len(r.ByYearDay) > 0 ||
		len(r.ByMonthDay) > 0 || len(r.ByDay) > 0 || len(r.ByHour) > 0 ||
		len(r.ByMinute) > 0 || len(r.BySecond) > 0
}

// Reference is the DTSTART of a recurrence: the first instance and the
// template for every field no BY-clause overrides.
type Reference struct {
	calendar.DateTime
	// HasTime is false for DATE values; such references skip the hour, minute
	// and second stages entirely.
	HasTime bool
}

// ReferenceAt returns a timed reference from t's wall clock in t's location.
func ReferenceAt(t time.Time) Reference {
	return Reference{DateTime: calendar.DateTimeOf(t), HasTime: true}
}

// DateOnly returns a reference for an all-day DATE value.
func DateOnly(year int, month time.Month, day int) Reference {
	return Reference{DateTime: calendar.NewDate(year, month, day).At(calendar.Clock{})}
}

// RecurrenceInfo contains all recurrence-related information for a component
type RecurrenceInfo struct {
	RRULE        string      // The RRULE value (without "RRULE:" prefix)
	RDATE        []time.Time // Additional recurrence dates
	EXDATE       []time.Time // Exception dates (excluded occurrences)
	RecurrenceID *time.Time  // For exception instances - which occurrence this overrides
	AllDay       bool        // DTSTART is a DATE value
}

// TimeOccurrence is a single expanded instance of a component
type TimeOccurrence struct {
	Start        time.Time  // Start time of this occurrence
	End          time.Time  // End time of this occurrence
	IsException  bool       // True if this is an exception/override instance
	RecurrenceID *time.Time // If this is an exception, the original occurrence time
}
