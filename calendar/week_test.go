package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekRule_MatchesISOWeek(t *testing.T) {
	rule := NewWeekRule(time.Monday)

	// Cross-check against the standard library's ISO week over several
	// year boundaries.
	start := Date{2019, time.December, 20}
	for i := 0; i < 5*366; i++ {
		d := start.AddDays(i)
		wantYear, wantWeek := d.utc().ISOWeek()

		if !assert.Equal(t, wantYear, rule.WeekYear(d), "week-year of %s", d) {
			return
		}
		if !assert.Equal(t, wantWeek, rule.WeekOfWeekYear(d), "week of %s", d) {
			return
		}
	}
}

func TestWeekRule_WeeksInWeekYear(t *testing.T) {
	rule := NewWeekRule(time.Monday)

	assert.Equal(t, 53, rule.WeeksInWeekYear(2020))
	assert.Equal(t, 52, rule.WeeksInWeekYear(2021))
	assert.Equal(t, 53, rule.WeeksInWeekYear(2015))
	assert.Equal(t, 52, rule.WeeksInWeekYear(2024))
}

func TestWeekRule_DateOf(t *testing.T) {
	rule := NewWeekRule(time.Monday)

	// ISO week 1 of 2021 starts on Monday 2021-01-04
	assert.Equal(t, Date{2021, time.January, 4}, rule.DateOf(2021, 1, time.Monday))
	assert.Equal(t, Date{2021, time.January, 10}, rule.DateOf(2021, 1, time.Sunday))
	// Week 53 of 2020 runs into January 2021
	assert.Equal(t, Date{2021, time.January, 1}, rule.DateOf(2020, 53, time.Friday))
}

func TestWeekRule_SundayStart(t *testing.T) {
	rule := NewWeekRule(time.Sunday)

	// 2023-01-01 is a Sunday, so week 1 starts that day
	assert.Equal(t, Date{2023, time.January, 1}, rule.DateOf(2023, 1, time.Sunday))
	assert.Equal(t, 1, rule.WeekOfWeekYear(Date{2023, time.January, 7}))
	assert.Equal(t, 2, rule.WeekOfWeekYear(Date{2023, time.January, 8}))
	assert.Equal(t, Date{2023, time.January, 1}, rule.StartOfWeek(Date{2023, time.January, 4}))
}
