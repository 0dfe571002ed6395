package recurrence

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"time"

	"github.com/cyp0633/librrule/calendar"
	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/samber/mo"
	"golang.org/x/sync/errgroup"
)

// Engine expands recurring components into concrete occurrences over a time
// range, combining RRULE, RDATE and EXDATE.
type Engine struct {
	cache  *RecurrenceCache
	config EngineConfig
	logger *slog.Logger
}

// NewEngine creates a recurrence engine without a result cache
func NewEngine(opts ...EngineOption) *Engine {
	return NewEngineWithConfig(DisabledCacheConfig, opts...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Close releases the engine's cache, if any
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// CacheStats returns statistics of the engine's cache. The second result is
// false when caching is disabled.
func (e *Engine) CacheStats() (CacheStats, bool) {
	if e.cache == nil {
		return CacheStats{}, false
	}
	return e.cache.Stats(), true
}

// Expand returns the occurrences of a component that overlap
// [rangeStart, rangeEnd], sorted by start. masterStart and masterEnd are the
// first instance's bounds; every occurrence keeps their duration.
func (e *Engine) Expand(
	masterStart, masterEnd time.Time,
	recurrence RecurrenceInfo,
	rangeStart, rangeEnd time.Time,
) ([]TimeOccurrence, error) {
	if rangeEnd.Before(rangeStart) {
		return nil, inputError(fmt.Sprintf("range end %s is before range start %s", rangeEnd, rangeStart), nil)
	}

	if e.cache != nil {
		if cached, ok := e.cache.Get(opExpand, masterStart, masterEnd, recurrence, rangeStart, rangeEnd); ok {
			e.logger.Debug("expansion served from cache", "rrule", recurrence.RRULE)
			return slices.Clone(cached.([]TimeOccurrence)), nil
		}
	}

	logger := e.logger.With("expansion_id", uuid.NewString())
	duration := masterEnd.Sub(masterStart)

	// An overridden instance stands for itself only
	if recurrence.RecurrenceID != nil {
		var out []TimeOccurrence
		if overlaps(masterStart, masterEnd, rangeStart, rangeEnd) {
			out = append(out, TimeOccurrence{
				Start:        masterStart,
				End:          masterEnd,
				IsException:  true,
				RecurrenceID: recurrence.RecurrenceID,
			})
		}
		return out, nil
	}

	var starts []time.Time
	if recurrence.RRULE == "" {
		starts = append(starts, masterStart)
	} else {
		evaluator, err := e.evaluator(masterStart, recurrence, rangeStart.Add(-duration), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare RRULE %q: %w", recurrence.RRULE, err)
		}
		for start, err := range evaluator.Occurrences() {
			if err != nil {
				return nil, fmt.Errorf("failed to expand RRULE %q: %w", recurrence.RRULE, err)
			}
			if start.After(rangeEnd) {
				break
			}
			// starts before the range do not count against the cap
			if start.Add(duration).Before(rangeStart) {
				continue
			}
			starts = append(starts, start)
			if e.config.MaxOccurrences > 0 && len(starts) >= e.config.MaxOccurrences+len(recurrence.EXDATE) {
				logger.Warn("expansion truncated", "max_occurrences", e.config.MaxOccurrences)
				break
			}
		}
	}

	for _, rdate := range recurrence.RDATE {
		if !slices.ContainsFunc(starts, rdate.Equal) {
			starts = append(starts, rdate)
		}
	}

	var occurrences []TimeOccurrence
	for _, start := range starts {
		end := start.Add(duration)
		if !overlaps(start, end, rangeStart, rangeEnd) || e.isExcluded(start, recurrence.EXDATE) {
			continue
		}
		occurrences = append(occurrences, TimeOccurrence{Start: start, End: end})
	}
	slices.SortFunc(occurrences, func(a, b TimeOccurrence) int {
		return a.Start.Compare(b.Start)
	})
	if e.config.MaxOccurrences > 0 && len(occurrences) > e.config.MaxOccurrences {
		occurrences = occurrences[:e.config.MaxOccurrences]
	}

	logger.Debug("expanded recurrence",
		"rrule", recurrence.RRULE,
		"rdates", len(recurrence.RDATE),
		"exdates", len(recurrence.EXDATE),
		"occurrences", len(occurrences))

	if e.cache != nil {
		e.cache.Set(opExpand, masterStart, masterEnd, recurrence, rangeStart, rangeEnd, slices.Clone(occurrences))
	}
	return occurrences, nil
}

// HasOccurrenceInRange checks if a recurring event has any occurrence in the
// time range. It stops at the first one instead of expanding the range.
func (e *Engine) HasOccurrenceInRange(
	masterStart, masterEnd time.Time,
	recurrence RecurrenceInfo,
	rangeStart, rangeEnd time.Time,
) (bool, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(opHasOccurrence, masterStart, masterEnd, recurrence, rangeStart, rangeEnd); ok {
			return cached.(bool), nil
		}
	}

	found, err := e.hasOccurrenceInRange(masterStart, masterEnd, recurrence, rangeStart, rangeEnd)
	if err != nil {
		return false, err
	}

	if e.cache != nil {
		e.cache.Set(opHasOccurrence, masterStart, masterEnd, recurrence, rangeStart, rangeEnd, found)
	}
	return found, nil
}

func (e *Engine) hasOccurrenceInRange(
	masterStart, masterEnd time.Time,
	recurrence RecurrenceInfo,
	rangeStart, rangeEnd time.Time,
) (bool, error) {
	// Fast path: the master instance itself
	if overlaps(masterStart, masterEnd, rangeStart, rangeEnd) && !e.isExcluded(masterStart, recurrence.EXDATE) {
		return true, nil
	}

	duration := masterEnd.Sub(masterStart)

	if recurrence.RRULE != "" && recurrence.RecurrenceID == nil {
		evaluator, err := e.evaluator(masterStart, recurrence, rangeStart.Add(-duration), e.logger)
		if err != nil {
			return false, fmt.Errorf("failed to check RRULE occurrences: %w", err)
		}
		for start, err := range evaluator.Occurrences() {
			if err != nil {
				return false, fmt.Errorf("failed to check RRULE occurrences: %w", err)
			}
			if start.After(rangeEnd) {
				break
			}
			if overlaps(start, start.Add(duration), rangeStart, rangeEnd) && !e.isExcluded(start, recurrence.EXDATE) {
				return true, nil
			}
		}
	}

	for _, rdate := range recurrence.RDATE {
		if overlaps(rdate, rdate.Add(duration), rangeStart, rangeEnd) && !e.isExcluded(rdate, recurrence.EXDATE) {
			return true, nil
		}
	}

	return false, nil
}

// evaluator prepares the RRULE of a component for evaluation from
// masterStart, in masterStart's location.
func (e *Engine) evaluator(masterStart time.Time, recurrence RecurrenceInfo, periodStart time.Time, logger *slog.Logger) (*Evaluator, error) {
	loc := masterStart.Location()
	rule, err := ParseRule(recurrence.RRULE, loc)
	if err != nil {
		return nil, err
	}

	ref := ReferenceAt(masterStart)
	if recurrence.AllDay {
		ref = DateOnly(masterStart.Date())
	}

	return NewEvaluator(rule, ref, calendar.In(loc),
		WithEvaluationOptions(e.config.Evaluation),
		WithPeriodStart(periodStart),
		WithLogger(logger),
	)
}

// isExcluded checks if a given time is in the EXDATE list
func (e *Engine) isExcluded(t time.Time, exdates []time.Time) bool {
	for _, exdate := range exdates {
		if t.Equal(exdate) {
			return true
		}

		// Date-only exceptions are stored as midnight UTC and exclude the
		// whole local day of the occurrence
		if exdate.Location() == time.UTC && exdate.Hour() == 0 && exdate.Minute() == 0 && exdate.Second() == 0 && exdate.Nanosecond() == 0 {
			if sameDate(t, exdate) {
				return true
			}
		}
	}
	return false
}

// overlaps reports whether [start, end] and [rangeStart, rangeEnd] share an
// instant.
func overlaps(start, end, rangeStart, rangeEnd time.Time) bool {
	return !start.After(rangeEnd) && !end.Before(rangeStart)
}

// ExpandComponent expands a single VEVENT or VTODO over the range
func (e *Engine) ExpandComponent(comp *ical.Component, rangeStart, rangeEnd time.Time) ([]TimeOccurrence, error) {
	start, end, ok := ExtractBasicTimeInfoFromComponent(comp)
	if !ok {
		return nil, inputError(fmt.Sprintf("%s has no usable DTSTART", comp.Name), nil)
	}
	return e.Expand(start, end, ExtractRecurrenceInfoFromComponent(comp), rangeStart, rangeEnd)
}

// ComponentExpansion is the outcome of expanding every component sharing one
// UID: the master and its overridden instances.
type ComponentExpansion struct {
	UID         string
	Occurrences mo.Result[[]TimeOccurrence]
}

// ExpandCalendar expands every event and to-do of cal over the range.
// Components are grouped by UID; an instance with a RECURRENCE-ID replaces
// the occurrence of its master that it overrides. A failing group does not
// stop the others. Results are ordered by UID.
func (e *Engine) ExpandCalendar(cal *ical.Calendar, rangeStart, rangeEnd time.Time) []ComponentExpansion {
	type group struct {
		masters   []*ical.Component
		overrides []*ical.Component
	}
	groups := make(map[string]*group)

	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent && comp.Name != ical.CompToDo {
			continue
		}
		uid, _ := comp.Props.Text(ical.PropUID)
		g, ok := groups[uid]
		if !ok {
			g = &group{}
			groups[uid] = g
		}
		if comp.Props.Get("RECURRENCE-ID") != nil {
			g.overrides = append(g.overrides, comp)
		} else {
			g.masters = append(g.masters, comp)
		}
	}

	uids := slices.Sorted(maps.Keys(groups))
	results := make([]ComponentExpansion, len(uids))

	// Groups share nothing but the cache, so they expand in parallel
	var eg errgroup.Group
	eg.SetLimit(e.concurrency())
	for i, uid := range uids {
		g := groups[uid]
		eg.Go(func() error {
			occurrences, err := e.expandGroup(g.masters, g.overrides, rangeStart, rangeEnd)
			result := mo.Ok(occurrences)
			if err != nil {
				e.logger.Warn("failed to expand component", "uid", uid, "error", err)
				result = mo.Err[[]TimeOccurrence](err)
			}
			results[i] = ComponentExpansion{UID: uid, Occurrences: result}
			return nil
		})
	}
	_ = eg.Wait()

	return results
}

func (e *Engine) concurrency() int {
	if e.config.Concurrency > 0 {
		return e.config.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}

func (e *Engine) expandGroup(masters, overrides []*ical.Component, rangeStart, rangeEnd time.Time) ([]TimeOccurrence, error) {
	var occurrences []TimeOccurrence
	for _, master := range masters {
		expanded, err := e.ExpandComponent(master, rangeStart, rangeEnd)
		if err != nil {
			return nil, err
		}
		occurrences = append(occurrences, expanded...)
	}

	for _, override := range overrides {
		info := ExtractRecurrenceInfoFromComponent(override)
		recurrenceID := SafeTimeDeref(info.RecurrenceID, time.Time{})
		if recurrenceID.IsZero() {
			continue
		}
		occurrences = slices.DeleteFunc(occurrences, func(o TimeOccurrence) bool {
			return o.Start.Equal(recurrenceID)
		})

		expanded, err := e.ExpandComponent(override, rangeStart, rangeEnd)
		if err != nil {
			return nil, err
		}
		occurrences = append(occurrences, expanded...)
	}

	slices.SortFunc(occurrences, func(a, b TimeOccurrence) int {
		return a.Start.Compare(b.Start)
	})
	return occurrences, nil
}
