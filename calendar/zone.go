package calendar

import "time"

// Zone resolves local date-times to instants. Implementations must be safe
// for concurrent use.
type Zone interface {
	// Location is the location every resolved instant is expressed in.
	Location() *time.Location
	// Lenient resolves dt, picking the earlier instant for ambiguous local
	// times and shifting skipped local times forward by the gap length.
	Lenient(dt DateTime) time.Time
	// RelativeTo resolves dt, preferring the UTC offset of ref when dt is
	// ambiguous. Skipped local times are handled as in Lenient.
	RelativeTo(dt DateTime, ref time.Time) time.Time
}

// LocationZone is a Zone backed by a *time.Location.
type LocationZone struct {
	loc *time.Location
}

// In returns the Zone for loc. A nil loc means UTC.
func In(loc *time.Location) LocationZone {
	if loc == nil {
		loc = time.UTC
	}
	return LocationZone{loc: loc}
}

// Location implements Zone.
func (z LocationZone) Location() *time.Location {
	return z.loc
}

// Lenient implements Zone.
func (z LocationZone) Lenient(dt DateTime) time.Time {
	return z.resolve(dt, nil)
}

// RelativeTo implements Zone.
func (z LocationZone) RelativeTo(dt DateTime, ref time.Time) time.Time {
	return z.resolve(dt, &ref)
}

// resolve maps dt onto the zone. Transitions are assumed to be at least a
// day apart, so the offsets in effect a day either side of dt are the only
// candidates.
func (z LocationZone) resolve(dt DateTime, ref *time.Time) time.Time {
	naive := time.Date(dt.Year, dt.Month, dt.Day, dt.Hour, dt.Minute, dt.Second, dt.Nanosecond, time.UTC)

	_, before := naive.Add(-24 * time.Hour).In(z.loc).Zone()
	_, after := naive.Add(24 * time.Hour).In(z.loc).Zone()

	early := naive.Add(-time.Duration(before) * time.Second).In(z.loc)
	late := naive.Add(-time.Duration(after) * time.Second).In(z.loc)
	if late.Before(early) {
		early, late = late, early
	}

	earlyOK := DateTimeOf(early) == dt
	lateOK := DateTimeOf(late) == dt

	switch {
	case earlyOK && lateOK && !early.Equal(late):
		if ref != nil {
			_, refOffset := ref.In(z.loc).Zone()
			if _, off := late.Zone(); off == refOffset {
				return late
			}
		}
		return early
	case earlyOK:
		return early
	case lateOK:
		return late
	}

	// The local time falls in a gap: read it with the offset in effect
	// before the transition, which lands after the gap.
	return naive.Add(-time.Duration(before) * time.Second).In(z.loc)
}
