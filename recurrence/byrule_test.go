package recurrence

import (
	"testing"
	"time"

	"github.com/cyp0633/librrule/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMonthDays(t *testing.T) {
	tests := []struct {
		name     string
		values   []int
		year     int
		month    time.Month
		expected []int
	}{
		{"positive values sorted", []int{15, 1, 15}, 2024, time.March, []int{1, 15}},
		{"last day of leap February", []int{-1}, 2024, time.February, []int{29}},
		{"last day of February", []int{-1}, 2023, time.February, []int{28}},
		{"day beyond month is dropped", []int{31, -31}, 2024, time.April, nil},
		{"mixed", []int{-1, 1, 30}, 2024, time.April, []int{1, 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeMonthDays(tt.values, tt.year, tt.month)
			if tt.expected == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeYearDaysAndWeeks(t *testing.T) {
	assert.Equal(t, []int{1, 366}, normalizeYearDays([]int{-1, 1}, 2024))
	assert.Equal(t, []int{1, 365}, normalizeYearDays([]int{-1, 1}, 2023))
	assert.Equal(t, []int{1, 52, 53}, normalizeWeekNo([]int{-1, 1, 52}, 53))
	assert.Equal(t, []int{2, 10}, normalizeSetPos([]int{-1, 2}, 10))
}

func TestNormalize_Idempotent(t *testing.T) {
	values := []int{1, 5, 17, 28}

	once := normalizeMonthDays(values, 2024, time.February)
	twice := normalizeMonthDays(once, 2024, time.February)
	assert.Equal(t, once, twice)

	once = normalizeYearDays(values, 2023)
	assert.Equal(t, once, normalizeYearDays(once, 2023))

	once = normalizeSetPos(values, 30)
	assert.Equal(t, once, normalizeSetPos(once, 30))
}

func TestNormalizeWeekdays(t *testing.T) {
	days := []time.Weekday{time.Sunday, time.Friday, time.Monday, time.Friday}

	assert.Equal(t, []time.Weekday{time.Monday, time.Friday, time.Sunday}, normalizeWeekdays(days, time.Monday))
	assert.Equal(t, []time.Weekday{time.Sunday, time.Monday, time.Friday}, normalizeWeekdays(days, time.Sunday))
}

func TestNormalCache(t *testing.T) {
	calls := 0
	compute := func(k int) []int {
		calls++
		return []int{k}
	}

	var c normalCache[int]
	assert.Equal(t, []int{1}, c.get(1, true, compute))
	assert.Equal(t, []int{1}, c.get(1, true, compute))
	assert.Equal(t, 1, calls, "same key is served from the cache")

	assert.Equal(t, []int{2}, c.get(2, true, compute))
	assert.Equal(t, 2, calls)

	assert.Equal(t, []int{2}, c.get(2, false, compute))
	assert.Equal(t, 3, calls, "a disabled cache always recomputes")

	fixed := normalCache[int]{values: []int{7}, valid: true, alwaysNormal: true}
	assert.Equal(t, []int{7}, fixed.get(99, false, compute))
	assert.Equal(t, 3, calls)
}

func TestByRuleValues_SetPositions(t *testing.T) {
	rule := NewRule(Monthly)
	rule.ByDay = []WeekDay{Weekday(time.Monday)}
	rule.BySetPosition = []int{3, -1, 1, 3}

	v := newByRuleValues(rule, true)
	require.True(t, v.hasNegativeSetPos)
	assert.Equal(t, []int{1, 3, 5}, v.setPositions(5))
	assert.Equal(t, []int{1, 3}, v.setPositions(3))

	rule.BySetPosition = []int{2, 1}
	v = newByRuleValues(rule, false)
	assert.False(t, v.hasNegativeSetPos)
	assert.Equal(t, []int{1, 2}, v.setPositions(0))
}

func TestByRuleValues_SplitsWeekdays(t *testing.T) {
	rule := NewRule(Monthly)
	rule.FirstDayOfWeek = time.Sunday
	rule.ByDay = []WeekDay{
		NthWeekday(-1, time.Friday),
		Weekday(time.Saturday),
		NthWeekday(1, time.Monday),
		Weekday(time.Sunday),
	}

	v := newByRuleValues(rule, true)
	assert.True(t, v.hasByDayOffsets)
	assert.Equal(t, []time.Weekday{time.Sunday, time.Saturday}, v.daysWithoutOffset)
	assert.Equal(t, []WeekDay{NthWeekday(-1, time.Friday), NthWeekday(1, time.Monday)}, v.daysWithOffset)
}

func TestByRuleValues_MatchesByDay(t *testing.T) {
	rule := NewRule(Yearly)
	rule.ByDay = []WeekDay{NthWeekday(1, time.Monday), NthWeekday(-1, time.Friday), Weekday(time.Wednesday)}
	v := newByRuleValues(rule, true)

	tests := []struct {
		date    calendar.Date
		inMonth bool
		match   bool
	}{
		{calendar.NewDate(2024, time.March, 4), true, true},    // first Monday of March
		{calendar.NewDate(2024, time.March, 4), false, false},  // not the first Monday of the year
		{calendar.NewDate(2024, time.January, 1), false, true}, // first Monday of the year
		{calendar.NewDate(2024, time.March, 29), true, true},   // last Friday of March
		{calendar.NewDate(2024, time.March, 22), true, false},
		{calendar.NewDate(2024, time.December, 27), false, true}, // last Friday of the year
		{calendar.NewDate(2024, time.March, 13), true, true},     // any Wednesday
		{calendar.NewDate(2024, time.March, 14), true, false},
	}

	for _, tt := range tests {
		got, err := v.matchesByDay(tt.date, tt.inMonth)
		require.NoError(t, err)
		assert.Equal(t, tt.match, got, "%s in month: %v", tt.date, tt.inMonth)
	}
}

func TestNthWeekday(t *testing.T) {
	start := calendar.NewDate(2024, time.February, 1)
	end := start.AddMonths(1)

	tests := []struct {
		wd       time.Weekday
		n        int
		expected calendar.Date
		found    bool
	}{
		{time.Thursday, 1, calendar.NewDate(2024, time.February, 1), true},
		{time.Friday, 1, calendar.NewDate(2024, time.February, 2), true},
		{time.Thursday, 5, calendar.NewDate(2024, time.February, 29), true},
		{time.Friday, 5, calendar.NewDate(2024, time.March, 1), false},
		{time.Thursday, -1, calendar.NewDate(2024, time.February, 29), true},
		{time.Wednesday, -1, calendar.NewDate(2024, time.February, 28), true},
		{time.Wednesday, -4, calendar.NewDate(2024, time.February, 7), true},
		{time.Wednesday, -5, calendar.NewDate(2024, time.January, 31), false},
	}

	for _, tt := range tests {
		got, found, err := nthWeekday(start, end, tt.wd, tt.n)
		require.NoError(t, err)
		assert.Equal(t, tt.found, found, "%d%s", tt.n, tt.wd)
		assert.Equal(t, tt.expected, got, "%d%s", tt.n, tt.wd)
	}

	_, _, err := nthWeekday(start, end, time.Monday, 0)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestWeekdaysBetween_MonthStartingMidWeek(t *testing.T) {
	// February 2024 starts on a Thursday
	start := calendar.NewDate(2024, time.February, 1)
	days := normalizeWeekdays([]time.Weekday{time.Monday, time.Wednesday, time.Friday}, time.Monday)

	got := weekdaysBetween(start, start.AddMonths(1), days)
	require.NotEmpty(t, got)
	assert.Equal(t, calendar.NewDate(2024, time.February, 2), got[0])
	assert.Len(t, got, 12)
	assert.Equal(t, calendar.NewDate(2024, time.February, 28), got[len(got)-1])

	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Before(got[i]))
	}
}

func TestExpandWeekdays(t *testing.T) {
	start := calendar.NewDate(2024, time.March, 1)
	end := start.AddMonths(1)

	got, err := expandWeekdays(start, end,
		[]time.Weekday{time.Friday},
		[]WeekDay{NthWeekday(1, time.Friday), NthWeekday(-1, time.Sunday)},
	)
	require.NoError(t, err)
	assert.Equal(t, []calendar.Date{
		calendar.NewDate(2024, time.March, 1),
		calendar.NewDate(2024, time.March, 8),
		calendar.NewDate(2024, time.March, 15),
		calendar.NewDate(2024, time.March, 22),
		calendar.NewDate(2024, time.March, 29),
		calendar.NewDate(2024, time.March, 31),
	}, got, "duplicates between plain and ordinal weekdays collapse")

	_, err = expandWeekdays(start, end, nil, []WeekDay{NthWeekday(0, time.Friday)})
	assert.ErrorIs(t, err, ErrConfiguration)
}
