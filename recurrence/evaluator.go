package recurrence

import (
	"io"
	"iter"
	"log/slog"
	"slices"
	"time"

	"github.com/cyp0633/librrule/calendar"
	"github.com/samber/mo"
)

// Evaluator expands one rule from one reference date-time. It holds no
// evaluation state, so a single Evaluator may serve concurrent callers as
// long as its Zone is safe for concurrent use.
type Evaluator struct {
	rule    Rule
	ref     Reference
	zone    calendar.Zone
	weeks   calendar.WeekRule
	plan    []stage
	options EvaluationOptions
	logger  *slog.Logger

	periodStart mo.Option[time.Time]
	refInstant  time.Time
	refWeekNo   int
}

// EvaluatorOption configures an Evaluator
type EvaluatorOption func(*Evaluator)

// WithPeriodStart lets evaluation jump close to t instead of walking every
// period from the reference. It is ignored for rules with a COUNT, which is
// always measured from the reference. Occurrences before t may still be
// produced for the period that contains t.
func WithPeriodStart(t time.Time) EvaluatorOption {
	return func(e *Evaluator) {
		e.periodStart = mo.Some(t)
	}
}

// WithMaxUnmatchedIncrements sets how many consecutive periods may pass
// without an occurrence before evaluation fails. Zero disables the limit.
func WithMaxUnmatchedIncrements(n int) EvaluatorOption {
	return func(e *Evaluator) {
		e.options.MaxUnmatchedIncrements = n
	}
}

// WithNormalizationCache toggles caching of normalized BY-values per period.
func WithNormalizationCache(enabled bool) EvaluatorOption {
	return func(e *Evaluator) {
		e.options.NormalizationCache = enabled
	}
}

// WithEvaluationOptions replaces all evaluation options at once.
func WithEvaluationOptions(opts EvaluationOptions) EvaluatorOption {
	return func(e *Evaluator) {
		e.options = opts
	}
}

// WithLogger sets the logger for the evaluator
func WithLogger(logger *slog.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// NewEvaluator validates rule and prepares its stage plan. The rule is
// copied; later changes to it do not affect the Evaluator. A nil zone
// means UTC.
func NewEvaluator(rule *Rule, ref Reference, zone calendar.Zone, opts ...EvaluatorOption) (*Evaluator, error) {
	if rule == nil {
		return nil, inputError("nil rule", nil)
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	plan, err := planStages(rule, ref.HasTime)
	if err != nil {
		return nil, err
	}
	if zone == nil {
		zone = calendar.In(time.UTC)
	}

	e := &Evaluator{
		rule:    *rule,
		ref:     ref,
		zone:    zone,
		weeks:   calendar.NewWeekRule(rule.FirstDayOfWeek),
		plan:    plan,
		options: DefaultEvaluationOptions,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.refInstant = zone.Lenient(ref.DateTime)
	e.refWeekNo = e.weeks.WeekOfWeekYear(ref.Date)
	return e, nil
}

// Occurrences returns the occurrences of the rule in increasing order,
// starting at the reference. The sequence is infinite unless the rule has a
// COUNT or UNTIL. Each iteration is an independent evaluation. If the rule
// fails while evaluating, the sequence ends with a zero time and the error.
func (e *Evaluator) Occurrences() iter.Seq2[time.Time, error] {
	return func(yield func(time.Time, error) bool) {
		r := e.newRun()
		count, hasCount := e.rule.Count.Get()
		until, hasUntil := e.rule.Until.Get()

		e.logger.Debug("evaluation started",
			"frequency", e.rule.Frequency.String(),
			"reference", e.refInstant,
			"stages", len(e.plan))

		produced := 0
		for v := range r.bySetPosition() {
			if hasUntil && v.After(until) {
				break
			}
			if v.Before(e.refInstant) {
				continue
			}
			if !yield(v, nil) {
				return
			}
			produced++
			if hasCount && produced >= count {
				return
			}
			r.unmatched = 0
		}

		if r.err != nil {
			e.logger.Warn("evaluation failed", "error", r.err, "produced", produced)
			yield(time.Time{}, r.err)
			return
		}
		e.logger.Debug("evaluation finished", "produced", produced)
	}
}

// Collect drains up to limit occurrences from seq. A non-positive limit means
// no limit, which only terminates for bounded rules.
func Collect(seq iter.Seq2[time.Time, error], limit int) ([]time.Time, error) {
	var out []time.Time
	for t, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, t)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// run is the state of one evaluation: the normalizer with its caches, the
// seed cursor and the first error raised by any stage.
type run struct {
	*Evaluator
	values    *byRuleValues
	seed      time.Time
	unmatched int
	err       error
}

func (e *Evaluator) newRun() *run {
	r := &run{
		Evaluator: e,
		values:    newByRuleValues(&e.rule, e.options.NormalizationCache),
		seed:      e.refInstant,
	}
	if start, ok := e.periodStart.Get(); ok && !e.rule.Count.IsPresent() {
		r.seed = r.skipTo(start.In(e.zone.Location()))
	}
	return r
}

// periods applies the stage plan to source.
func (r *run) periods(source iter.Seq[time.Time]) iter.Seq[time.Time] {
	for _, s := range r.plan {
		source = s.apply(r, source)
	}
	return source
}

// seeds yields the seed and advances it, forever or until the unmatched
// limit trips.
func (r *run) seeds(yield func(time.Time) bool) {
	for {
		if !yield(r.seed) {
			return
		}
		if r.err != nil {
			return
		}
		if err := r.advance(); err != nil {
			r.err = err
			return
		}
	}
}

// seedOnce yields only the current seed, so that the pipeline produces the
// set of a single period.
func (r *run) seedOnce(yield func(time.Time) bool) {
	yield(r.seed)
}

func (r *run) bySetPosition() iter.Seq[time.Time] {
	switch {
	case !r.values.bySetPosition():
		return r.periods(r.seeds)
	case r.values.hasNegativeSetPos:
		return r.materializedSetPosition
	default:
		return r.streamedSetPosition
	}
}

// streamedSetPosition picks set members by ordinal without holding a
// period's set in memory, and stops pulling once the last ordinal is found.
func (r *run) streamedSetPosition(yield func(time.Time) bool) {
	positions := r.values.setPositions(0)
	for {
		i, n := 0, 0
		for v := range r.periods(r.seedOnce) {
			n++
			if n < positions[i] {
				continue
			}
			if !yield(v) {
				return
			}
			if i++; i == len(positions) {
				break
			}
		}
		if r.err != nil {
			return
		}
		if err := r.advance(); err != nil {
			r.err = err
			return
		}
	}
}

// materializedSetPosition collects every period's full set first, which
// negative positions need to count from the end.
func (r *run) materializedSetPosition(yield func(time.Time) bool) {
	r.logger.Debug("materializing full period sets for negative BYSETPOS")
	for {
		set := slices.Collect(r.periods(r.seedOnce))
		if r.err != nil {
			return
		}
		for _, pos := range r.values.setPositions(len(set)) {
			if pos < 1 {
				continue
			}
			if pos > len(set) {
				break
			}
			if !yield(set[pos-1]) {
				return
			}
		}
		if err := r.advance(); err != nil {
			r.err = err
			return
		}
	}
}
