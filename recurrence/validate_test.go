package recurrence

import (
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
)

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(r *Rule)
	}{
		{"unknown frequency", func(r *Rule) { r.Frequency = Frequency(42) }},
		{"negative interval", func(r *Rule) { r.Interval = -1 }},
		{"invalid week start", func(r *Rule) { r.FirstDayOfWeek = time.Weekday(9) }},
		{"count and until", func(r *Rule) {
			r.Count = mo.Some(3)
			r.Until = mo.Some(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		}},
		{"zero count", func(r *Rule) { r.Count = mo.Some(0) }},
		{"month 13", func(r *Rule) { r.ByMonth = []int{13} }},
		{"month zero", func(r *Rule) { r.ByMonth = []int{0} }},
		{"week number 54", func(r *Rule) { r.ByWeekNo = []int{54} }},
		{"week number -54", func(r *Rule) { r.ByWeekNo = []int{-54} }},
		{"year day 367", func(r *Rule) { r.ByYearDay = []int{367} }},
		{"year day zero", func(r *Rule) { r.ByYearDay = []int{0} }},
		{"month day 32", func(r *Rule) { r.ByMonthDay = []int{32} }},
		{"month day -32", func(r *Rule) { r.ByMonthDay = []int{-32} }},
		{"month day zero", func(r *Rule) { r.ByMonthDay = []int{0} }},
		{"hour 24", func(r *Rule) { r.ByHour = []int{24} }},
		{"negative hour", func(r *Rule) { r.ByHour = []int{-1} }},
		{"minute 60", func(r *Rule) { r.ByMinute = []int{60} }},
		{"second 60", func(r *Rule) { r.BySecond = []int{60} }},
		{"set position zero", func(r *Rule) {
			r.ByDay = []WeekDay{Weekday(time.Monday)}
			r.BySetPosition = []int{0}
		}},
		{"set position 367", func(r *Rule) {
			r.ByDay = []WeekDay{Weekday(time.Monday)}
			r.BySetPosition = []int{367}
		}},
		{"set position alone", func(r *Rule) { r.BySetPosition = []int{1} }},
		{"invalid weekday", func(r *Rule) { r.ByDay = []WeekDay{Weekday(time.Weekday(7))} }},
		{"weekday ordinal 54", func(r *Rule) { r.ByDay = []WeekDay{NthWeekday(54, time.Monday)} }},
		{"week number with monthly frequency", func(r *Rule) {
			r.Frequency = Monthly
			r.ByWeekNo = []int{1}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := NewRule(Yearly)
			tt.modify(rule)

			err := rule.Validate()
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.NotErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestValidate_Valid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(r *Rule)
	}{
		{"defaults", func(r *Rule) {}},
		{"zero interval", func(r *Rule) { r.Interval = 0 }},
		{"count", func(r *Rule) { r.Count = mo.Some(1) }},
		{"until", func(r *Rule) { r.Until = mo.Some(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) }},
		{"negative month day", func(r *Rule) { r.ByMonthDay = []int{-31, 31} }},
		{"negative year day", func(r *Rule) { r.ByYearDay = []int{-366} }},
		{"negative week number", func(r *Rule) { r.ByWeekNo = []int{-53, 53} }},
		{"week number zero", func(r *Rule) { r.ByWeekNo = []int{0, 20} }},
		{"last set position", func(r *Rule) {
			r.ByDay = []WeekDay{Weekday(time.Monday), Weekday(time.Friday)}
			r.BySetPosition = []int{-1}
		}},
		{"zero weekday ordinal is reported later", func(r *Rule) {
			r.Frequency = Monthly
			r.ByDay = []WeekDay{NthWeekday(0, time.Monday)}
		}},
		{"clock values", func(r *Rule) {
			r.ByHour = []int{0, 23}
			r.ByMinute = []int{0, 59}
			r.BySecond = []int{0, 59}
		}},
		{"sunday week start", func(r *Rule) { r.FirstDayOfWeek = time.Sunday }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := NewRule(Yearly)
			tt.modify(rule)
			assert.NoError(t, rule.Validate())
		})
	}
}
