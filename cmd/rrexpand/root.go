package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cyp0633/librrule/recurrence"
	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// errExpansionFailed is returned when at least one component failed to
// expand. The failures themselves are logged.
var errExpansionFailed = errors.New("some components failed to expand")

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "rrexpand",
		Short: "Expand iCalendar recurrences over a time range",
		Long: `rrexpand prints one line per occurrence: UID, start and end in RFC 3339.

Input is either an iCalendar file (--file, "-" for stdin) or a single rule
given with --rrule and --dtstart. Every flag can also be set from the
environment with the RREXPAND_ prefix, or from a config file.`,
		Example: `  rrexpand --rrule "FREQ=MONTHLY;BYDAY=FR;BYMONTHDAY=13" --dtstart 19970902T090000 --tz America/New_York --from 19970901 --to 20001231
  rrexpand -f calendar.ics --from 2024-01-01 --to 2024-02-01`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if path := v.GetString("config"); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read config %s: %w", path, err)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, v)
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "config file (YAML, TOML or JSON)")
	flags.StringP("file", "f", "", `iCalendar file to expand, "-" for stdin`)
	flags.String("rrule", "", "RRULE value for an ad-hoc event")
	flags.String("dtstart", "", "DTSTART of the ad-hoc event, e.g. 20240101T090000 or 20240101")
	flags.String("tz", "", "TZID of the ad-hoc event's DTSTART")
	flags.String("duration", "", "DURATION of the ad-hoc event, e.g. PT1H")
	flags.StringSlice("exdate", nil, "EXDATE values of the ad-hoc event")
	flags.StringSlice("rdate", nil, "RDATE values of the ad-hoc event")
	flags.String("from", "", "range start (RFC 3339, iCalendar DATE-TIME or DATE)")
	flags.String("to", "", "range end (RFC 3339, iCalendar DATE-TIME or DATE)")
	flags.Int("limit", recurrence.DefaultEngineConfig.MaxOccurrences, "maximum occurrences per component")
	flags.Int("max-unmatched", recurrence.DefaultEvaluationOptions.MaxUnmatchedIncrements, "periods without an occurrence before giving up, 0 for no limit")
	flags.Bool("no-norm-cache", false, "recompute normalized BY-values for every candidate")
	flags.Int("concurrency", 0, "components expanded in parallel, 0 for one per CPU")
	flags.BoolP("verbose", "v", false, "log evaluation details to stderr")

	v.SetEnvPrefix("rrexpand")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)

	return cmd
}

func run(cmd *cobra.Command, v *viper.Viper) error {
	level := slog.LevelWarn
	if v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	loc := time.UTC
	if tz := v.GetString("tz"); tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return fmt.Errorf("unknown time zone %q: %w", tz, err)
		}
	}

	rangeStart, err := parseInstant(v.GetString("from"), loc)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	rangeEnd, err := parseInstant(v.GetString("to"), loc)
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}

	cal, err := loadCalendar(cmd.InOrStdin(), v)
	if err != nil {
		return err
	}

	config := recurrence.DisabledCacheConfig
	config.MaxOccurrences = v.GetInt("limit")
	config.Concurrency = v.GetInt("concurrency")
	config.Evaluation.MaxUnmatchedIncrements = v.GetInt("max-unmatched")
	config.Evaluation.NormalizationCache = !v.GetBool("no-norm-cache")

	engine := recurrence.NewEngineWithConfig(config, recurrence.WithEngineLogger(logger))
	defer engine.Close()

	failed := 0
	out := cmd.OutOrStdout()
	for _, expansion := range engine.ExpandCalendar(cal, rangeStart, rangeEnd) {
		occurrences, err := expansion.Occurrences.Get()
		if err != nil {
			logger.Error("expansion failed", "uid", expansion.UID, "error", err)
			failed++
			continue
		}
		for _, o := range occurrences {
			writeOccurrence(out, expansion.UID, o)
		}
	}

	if failed > 0 {
		return errExpansionFailed
	}
	return nil
}

func writeOccurrence(w io.Writer, uid string, o recurrence.TimeOccurrence) {
	line := fmt.Sprintf("%s\t%s\t%s", uid, o.Start.Format(time.RFC3339), o.End.Format(time.RFC3339))
	if o.IsException {
		line += "\texception"
	}
	fmt.Fprintln(w, line)
}

// loadCalendar decodes --file or builds a calendar holding the ad-hoc event.
func loadCalendar(stdin io.Reader, v *viper.Viper) (*ical.Calendar, error) {
	file := v.GetString("file")
	rrule := v.GetString("rrule")

	switch {
	case file != "" && rrule != "":
		return nil, errors.New("--file and --rrule are mutually exclusive")
	case file == "-":
		return decodeCalendar(stdin)
	case file != "":
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", file, err)
		}
		defer f.Close()
		return decodeCalendar(f)
	case rrule != "":
		return adHocCalendar(v)
	default:
		return nil, errors.New("either --file or --rrule is required")
	}
}

func decodeCalendar(r io.Reader) (*ical.Calendar, error) {
	cal, err := ical.NewDecoder(r).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode calendar: %w", err)
	}
	return cal, nil
}

func adHocCalendar(v *viper.Viper) (*ical.Calendar, error) {
	dtstart := v.GetString("dtstart")
	if dtstart == "" {
		return nil, errors.New("--rrule needs --dtstart")
	}
	tz := v.GetString("tz")

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uuid.NewString())
	event.Props.Set(dateProp(ical.PropDateTimeStart, dtstart, tz))

	rule := ical.NewProp(ical.PropRecurrenceRule)
	rule.Value = strings.TrimPrefix(v.GetString("rrule"), "RRULE:")
	event.Props.Set(rule)

	if duration := v.GetString("duration"); duration != "" {
		prop := ical.NewProp(ical.PropDuration)
		prop.Value = duration
		if _, err := prop.Duration(); err != nil {
			return nil, fmt.Errorf("invalid --duration %q: %w", duration, err)
		}
		event.Props.Set(prop)
	}
	if exdates := v.GetStringSlice("exdate"); len(exdates) > 0 {
		event.Props.Add(dateProp(ical.PropExceptionDates, strings.Join(exdates, ","), tz))
	}
	if rdates := v.GetStringSlice("rdate"); len(rdates) > 0 {
		event.Props.Add(dateProp(ical.PropRecurrenceDates, strings.Join(rdates, ","), tz))
	}

	cal := ical.NewCalendar()
	cal.Children = append(cal.Children, event.Component)
	return cal, nil
}

// dateProp builds a DATE-TIME property in tz, or a DATE property when value
// is a bare date.
func dateProp(name, value, tz string) *ical.Prop {
	prop := ical.NewProp(name)
	prop.Value = value
	first, _, _ := strings.Cut(value, ",")
	switch {
	case len(first) == len("20060102"):
		prop.Params.Set("VALUE", "DATE")
	case tz != "" && !strings.HasSuffix(first, "Z"):
		prop.Params.Set("TZID", tz)
	}
	return prop
}

var instantLayouts = []string{
	time.RFC3339,
	"20060102T150405Z",
	"20060102T150405",
	"2006-01-02T15:04:05",
	"20060102",
	"2006-01-02",
}

// parseInstant reads value in the first matching layout. Values without a
// zone are read in loc.
func parseInstant(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("value is required")
	}
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			if strings.HasSuffix(layout, "Z") {
				t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
			}
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q", value)
}
