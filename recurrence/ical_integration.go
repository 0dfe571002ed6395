package recurrence

import (
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// ExtractRecurrenceInfoFromComponent extracts recurrence information from an iCal component
func ExtractRecurrenceInfoFromComponent(comp *ical.Component) RecurrenceInfo {
	info := RecurrenceInfo{}

	if rruleProp := comp.Props.Get(ical.PropRecurrenceRule); rruleProp != nil && rruleProp.Value != "" {
		info.RRULE = rruleProp.Value
	}

	// RDATE and EXDATE may each appear several times
	for _, prop := range comp.Props.Values(ical.PropRecurrenceDates) {
		info.RDATE = append(info.RDATE, parseDateList(prop)...)
	}
	for _, prop := range comp.Props.Values(ical.PropExceptionDates) {
		info.EXDATE = append(info.EXDATE, parseDateList(prop)...)
	}

	if recurrenceIDProp := comp.Props.Get("RECURRENCE-ID"); recurrenceIDProp != nil && recurrenceIDProp.Value != "" {
		if recID, err := parseDateTime(*recurrenceIDProp); err == nil {
			info.RecurrenceID = &recID
		}
	}

	if dtstart := comp.Props.Get(ical.PropDateTimeStart); dtstart != nil {
		info.AllDay = isDateValue(*dtstart)
	}

	return info
}

// ExtractBasicTimeInfoFromComponent extracts start and end times from an iCal component
func ExtractBasicTimeInfoFromComponent(comp *ical.Component) (start, end time.Time, hasTime bool) {
	if dtstart, err := comp.Props.DateTime(ical.PropDateTimeStart, nil); err == nil {
		start = dtstart
		hasTime = true
		allDay := false
		if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
			allDay = isDateValue(*prop)
		}

		// Get end time - either from DTEND or DURATION or default
		if dtend, err := comp.Props.DateTime(ical.PropDateTimeEnd, nil); err == nil {
			end = dtend

			// An all-day event whose DTEND repeats the start DATE lasts one day.
			if allDay && sameDate(start, end) {
				end = start.AddDate(0, 0, 1)
			}
		} else if durationProp := comp.Props.Get(ical.PropDuration); durationProp != nil {
			duration, err := durationProp.Duration()
			if err != nil {
				hasTime = false
				return
			}
			end = start.Add(duration)
		} else if allDay {
			end = start.AddDate(0, 0, 1)
		} else {
			end = start
		}
	}

	// For VTODO, also check DUE property
	if comp.Name == ical.CompToDo {
		if due, err := comp.Props.DateTime(ical.PropDue, nil); err == nil {
			if !hasTime {
				start = due
				end = due
				hasTime = true
			} else if due.After(end) {
				end = due
			}
		}
	}

	return start, end, hasTime
}

// parseDateList parses a comma-separated RDATE or EXDATE property. Values
// that fail to parse are skipped.
func parseDateList(prop ical.Prop) []time.Time {
	if prop.Value == "" {
		return nil
	}

	var dates []time.Time
	for _, value := range strings.Split(prop.Value, ",") {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		single := prop
		single.Value = value
		if t, err := parseDateTime(single); err == nil {
			dates = append(dates, t)
		}
	}
	return dates
}

// parseDateTime parses a DATE or DATE-TIME property value. DATE values are
// stored as midnight UTC, which isExcluded treats as a whole-day match.
// DATE-TIME values honour TZID.
func parseDateTime(prop ical.Prop) (time.Time, error) {
	if isDateValue(prop) || len(prop.Value) == len("20060102") {
		t, err := time.Parse("20060102", prop.Value)
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return prop.DateTime(nil)
}

func isDateValue(prop ical.Prop) bool {
	return strings.EqualFold(prop.Params.Get("VALUE"), "DATE")
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SafeTimeDeref safely dereferences a time pointer, returning zero time if nil
func SafeTimeDeref(t *time.Time, defaultTime time.Time) time.Time {
	if t == nil {
		return defaultTime
	}
	return *t
}
