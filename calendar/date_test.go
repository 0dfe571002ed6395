package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDate_AddMonthsClamps(t *testing.T) {
	tests := []struct {
		name   string
		date   Date
		months int
		want   Date
	}{
		{"jan 31 to feb in leap year", Date{2024, time.January, 31}, 1, Date{2024, time.February, 29}},
		{"jan 31 to feb", Date{2023, time.January, 31}, 1, Date{2023, time.February, 28}},
		{"across year", Date{2023, time.November, 15}, 3, Date{2024, time.February, 15}},
		{"backwards", Date{2024, time.March, 31}, -1, Date{2024, time.February, 29}},
		{"backwards across year", Date{2024, time.January, 10}, -13, Date{2022, time.December, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.date.AddMonths(tt.months))
		})
	}
}

func TestDate_AddYearsClampsLeapDay(t *testing.T) {
	assert.Equal(t, Date{2025, time.February, 28}, Date{2024, time.February, 29}.AddYears(1))
	assert.Equal(t, Date{2028, time.February, 29}, Date{2024, time.February, 29}.AddYears(4))
}

func TestDate_WithNearestDay(t *testing.T) {
	assert.Equal(t, Date{2023, time.February, 28}, Date{2023, time.February, 1}.WithNearestDay(31))
	assert.Equal(t, Date{2023, time.March, 31}, Date{2023, time.March, 28}.WithNearestDay(31))
	assert.Equal(t, Date{2023, time.March, 5}, Date{2023, time.March, 28}.WithNearestDay(5))
}

func TestDate_NextPrevious(t *testing.T) {
	// 2024-05-15 is a Wednesday
	d := Date{2024, time.May, 15}
	assert.Equal(t, time.Wednesday, d.Weekday())

	assert.Equal(t, Date{2024, time.May, 22}, d.Next(time.Wednesday), "next is strictly after")
	assert.Equal(t, Date{2024, time.May, 17}, d.Next(time.Friday))
	assert.Equal(t, Date{2024, time.May, 8}, d.Previous(time.Wednesday), "previous is strictly before")
	assert.Equal(t, Date{2024, time.May, 13}, d.Previous(time.Monday))
}

func TestDate_DaysUntilAndCompare(t *testing.T) {
	a := Date{2024, time.February, 27}
	b := Date{2024, time.March, 2}

	assert.Equal(t, 4, a.DaysUntil(b))
	assert.Equal(t, -4, b.DaysUntil(a))
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, 366, Date{2024, time.January, 1}.DaysUntil(Date{2025, time.January, 1}))
}

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 29, DaysIn(2000, time.February))
	assert.Equal(t, 28, DaysIn(1900, time.February))
	assert.Equal(t, 30, DaysIn(2023, time.September))
	assert.Equal(t, 31, DaysIn(2023, time.December))
	assert.Equal(t, 366, DaysInYear(2024))
	assert.Equal(t, 365, DaysInYear(2023))
}

func TestDate_YearDay(t *testing.T) {
	assert.Equal(t, 1, Date{2024, time.January, 1}.YearDay())
	assert.Equal(t, 366, Date{2024, time.December, 31}.YearDay())
	assert.Equal(t, 60, Date{2023, time.March, 1}.YearDay())
}
