package recurrence

import "time"

// Validate reports the first configuration error in the rule, or nil.
// A BYDAY ordinal of zero is not reported here; it surfaces when an
// evaluation first needs the ordinal. BYWEEKNO 0 is accepted and matches no
// week.
func (r *Rule) Validate() error {
	if r.Frequency < Secondly || r.Frequency > Yearly {
		return configErrorf("unknown frequency %d", int(r.Frequency))
	}
	if r.Interval < 0 {
		return configErrorf("INTERVAL must be positive, got %d", r.Interval)
	}
	if r.FirstDayOfWeek < time.Sunday || r.FirstDayOfWeek > time.Saturday {
		return configErrorf("invalid WKST %d", int(r.FirstDayOfWeek))
	}
	if r.Count.IsPresent() && r.Until.IsPresent() {
		return configErrorf("COUNT and UNTIL are mutually exclusive")
	}
	if count, ok := r.Count.Get(); ok && count < 1 {
		return configErrorf("COUNT must be positive, got %d", count)
	}

	checks := []struct {
		name     string
		values   []int
		min, max int
		signed   bool
	}{
		{"BYMONTH", r.ByMonth, 1, 12, false},
		{"BYWEEKNO", r.ByWeekNo, 0, 53, true},
		{"BYYEARDAY", r.ByYearDay, 1, 366, true},
		{"BYMONTHDAY", r.ByMonthDay, 1, 31, true},
		{"BYHOUR", r.ByHour, 0, 23, false},
		{"BYMINUTE", r.ByMinute, 0, 59, false},
		{"BYSECOND", r.BySecond, 0, 59, false},
		{"BYSETPOS", r.BySetPosition, 1, 366, true},
	}
	for _, c := range checks {
		for _, v := range c.values {
			abs := v
			if c.signed && v < 0 {
				abs = -v
			}
			if abs < c.min || abs > c.max {
				return configErrorf("%s value %d out of range", c.name, v)
			}
		}
	}

	for _, wd := range r.ByDay {
		if wd.Day < time.Sunday || wd.Day > time.Saturday {
			return configErrorf("BYDAY has invalid weekday %d", int(wd.Day))
		}
		if n, ok := wd.Offset.Get(); ok && (n > 53 || n < -53) {
			return configErrorf("BYDAY ordinal %d out of range", n)
		}
	}

	if len(r.BySetPosition) > 0 && !r.hasByRules() {
		return configErrorf("BYSETPOS requires another BY-clause")
	}

	if _, err := planStages(r, true); err != nil {
		return err
	}
	return nil
}
