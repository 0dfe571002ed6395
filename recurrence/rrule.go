package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"
)

var rruleWeekdays = [...]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// ParseRule parses an RRULE value, with or without the "RRULE:" prefix.
// UNTIL values without a zone are read in loc; a nil loc means UTC.
func ParseRule(value string, loc *time.Location) (*Rule, error) {
	if loc == nil {
		loc = time.UTC
	}
	value = strings.TrimPrefix(strings.TrimSpace(value), "RRULE:")

	opt, err := rrule.StrToROptionInLocation(value, loc)
	if err != nil {
		return nil, inputError(fmt.Sprintf("failed to parse RRULE %q", value), err)
	}

	rule, err := RuleFromROption(*opt)
	if err != nil {
		return nil, err
	}

	// rrule-go reads "0MO" as a plain "MO"; keep the explicit ordinal so
	// evaluation can reject it.
	for _, i := range zeroOrdinals(value) {
		if i < len(rule.ByDay) {
			rule.ByDay[i].Offset = mo.Some(0)
		}
	}
	return rule, nil
}

// RuleFromROption converts an rrule-go option set to a Rule. DTSTART is not
// part of a Rule and is ignored.
func RuleFromROption(opt rrule.ROption) (*Rule, error) {
	if opt.Freq < rrule.YEARLY || opt.Freq > rrule.SECONDLY {
		return nil, configErrorf("unknown frequency %d", int(opt.Freq))
	}
	if len(opt.Byeaster) > 0 {
		return nil, configErrorf("BYEASTER is not supported")
	}

	rule := &Rule{
		Frequency:      Yearly - Frequency(opt.Freq),
		Interval:       opt.Interval,
		Count:          mo.None[int](),
		Until:          mo.None[time.Time](),
		FirstDayOfWeek: weekdayFromRRule(opt.Wkst.Day()),
		ByMonth:        opt.Bymonth,
		ByWeekNo:       opt.Byweekno,
		ByYearDay:      opt.Byyearday,
		ByMonthDay:     opt.Bymonthday,
		ByHour:         opt.Byhour,
		ByMinute:       opt.Byminute,
		BySecond:       opt.Bysecond,
		BySetPosition:  opt.Bysetpos,
	}
	if opt.Count > 0 {
		rule.Count = mo.Some(opt.Count)
	}
	if !opt.Until.IsZero() {
		rule.Until = mo.Some(opt.Until)
	}

	for _, wd := range opt.Byweekday {
		day := weekdayFromRRule(wd.Day())
		if n := wd.N(); n != 0 {
			rule.ByDay = append(rule.ByDay, NthWeekday(n, day))
		} else {
			rule.ByDay = append(rule.ByDay, Weekday(day))
		}
	}
	return rule, nil
}

// ROption converts the rule back to an rrule-go option set starting at
// dtstart. A zero BYDAY ordinal has no rrule-go form and becomes a plain
// weekday.
func (r *Rule) ROption(dtstart time.Time) rrule.ROption {
	opt := rrule.ROption{
		Freq:       rrule.Frequency(Yearly - r.Frequency),
		Dtstart:    dtstart,
		Interval:   r.Interval,
		Wkst:       rruleWeekday(r.FirstDayOfWeek, 0),
		Bysetpos:   r.BySetPosition,
		Bymonth:    r.ByMonth,
		Bymonthday: r.ByMonthDay,
		Byyearday:  r.ByYearDay,
		Byweekno:   r.ByWeekNo,
		Byhour:     r.ByHour,
		Byminute:   r.ByMinute,
		Bysecond:   r.BySecond,
	}
	if count, ok := r.Count.Get(); ok {
		opt.Count = count
	}
	if until, ok := r.Until.Get(); ok {
		opt.Until = until
	}
	for _, wd := range r.ByDay {
		opt.Byweekday = append(opt.Byweekday, rruleWeekday(wd.Day, wd.Offset.OrEmpty()))
	}
	return opt
}

// String returns the rule as an RRULE value without the "RRULE:" prefix.
func (r *Rule) String() string {
	opt := r.ROption(time.Time{})
	return opt.RRuleString()
}

// weekdayFromRRule maps rrule-go's Monday-based index to time.Weekday.
func weekdayFromRRule(day int) time.Weekday {
	return time.Weekday((day + 1) % 7)
}

func rruleWeekday(day time.Weekday, n int) rrule.Weekday {
	wd := rruleWeekdays[(int(day)+6)%7]
	return wd.Nth(n)
}

// zeroOrdinals returns the positions of BYDAY entries written with an
// explicit zero ordinal, such as "0MO" or "+0FR".
func zeroOrdinals(value string) []int {
	var out []int
	for _, part := range strings.Split(value, ";") {
		key, list, ok := strings.Cut(part, "=")
		if !ok || key != "BYDAY" {
			continue
		}
		for i, entry := range strings.Split(list, ",") {
			if len(entry) <= 2 {
				continue
			}
			if n, err := strconv.Atoi(entry[:len(entry)-2]); err == nil && n == 0 {
				out = append(out, i)
			}
		}
	}
	return out
}
