package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// fields drops the generated UID of ad-hoc events from every output line.
func fields(output string) [][]string {
	var out [][]string
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		out = append(out, strings.Split(line, "\t")[1:])
	}
	return out
}

func TestRootCommand_AdHocRule(t *testing.T) {
	stdout, _, err := execute(t, "",
		"--rrule", "FREQ=DAILY;COUNT=3",
		"--dtstart", "20240101T090000",
		"--duration", "PT1H",
		"--from", "2024-01-01",
		"--to", "2024-01-31",
	)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"2024-01-01T09:00:00Z", "2024-01-01T10:00:00Z"},
		{"2024-01-02T09:00:00Z", "2024-01-02T10:00:00Z"},
		{"2024-01-03T09:00:00Z", "2024-01-03T10:00:00Z"},
	}, fields(stdout))
}

func TestRootCommand_AdHocRuleInTimeZone(t *testing.T) {
	stdout, _, err := execute(t, "",
		"--rrule", "RRULE:FREQ=MONTHLY;BYDAY=FR;BYMONTHDAY=13;COUNT=3",
		"--dtstart", "19970902T090000",
		"--tz", "America/New_York",
		"--from", "19970901",
		"--to", "20001231",
	)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"1998-02-13T09:00:00-05:00", "1998-02-13T09:00:00-05:00"},
		{"1998-03-13T09:00:00-05:00", "1998-03-13T09:00:00-05:00"},
		{"1998-11-13T09:00:00-05:00", "1998-11-13T09:00:00-05:00"},
	}, fields(stdout))
}

func TestRootCommand_ExceptionDates(t *testing.T) {
	stdout, _, err := execute(t, "",
		"--rrule", "FREQ=DAILY;COUNT=3",
		"--dtstart", "20240101T090000",
		"--exdate", "20240102T090000",
		"--rdate", "20240110T090000",
		"--from", "2024-01-01",
		"--to", "2024-01-31",
	)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"2024-01-01T09:00:00Z", "2024-01-01T09:00:00Z"},
		{"2024-01-03T09:00:00Z", "2024-01-03T09:00:00Z"},
		{"2024-01-10T09:00:00Z", "2024-01-10T09:00:00Z"},
	}, fields(stdout))
}

func TestRootCommand_CalendarFromStdin(t *testing.T) {
	ics := strings.ReplaceAll(`BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//librrule//rrexpand test//EN
BEGIN:VEVENT
UID:standup
DTSTAMP:20240101T000000Z
DTSTART:20240101T090000Z
DTEND:20240101T093000Z
RRULE:FREQ=WEEKLY;COUNT=3
END:VEVENT
BEGIN:VEVENT
UID:standup
DTSTAMP:20240101T000000Z
RECURRENCE-ID:20240108T090000Z
DTSTART:20240108T110000Z
DTEND:20240108T113000Z
END:VEVENT
END:VCALENDAR
`, "\n", "\r\n")

	stdout, _, err := execute(t, ics, "-f", "-", "--from", "2024-01-01", "--to", "2024-02-01")
	require.NoError(t, err)

	assert.Equal(t, "standup\t2024-01-01T09:00:00Z\t2024-01-01T09:30:00Z\n"+
		"standup\t2024-01-08T11:00:00Z\t2024-01-08T11:30:00Z\texception\n"+
		"standup\t2024-01-15T09:00:00Z\t2024-01-15T09:30:00Z\n", stdout)
}

func TestRootCommand_LimitFromEnvironment(t *testing.T) {
	t.Setenv("RREXPAND_LIMIT", "2")

	stdout, _, err := execute(t, "",
		"--rrule", "FREQ=DAILY",
		"--dtstart", "20240101T090000",
		"--from", "2024-01-01",
		"--to", "2024-12-31",
	)
	require.NoError(t, err)
	assert.Len(t, fields(stdout), 2)
}

func TestRootCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no input", []string{"--from", "2024-01-01", "--to", "2024-02-01"}},
		{"missing range", []string{"--rrule", "FREQ=DAILY", "--dtstart", "20240101"}},
		{"rrule without dtstart", []string{"--rrule", "FREQ=DAILY", "--from", "2024-01-01", "--to", "2024-02-01"}},
		{"file and rrule", []string{"-f", "-", "--rrule", "FREQ=DAILY", "--from", "2024-01-01", "--to", "2024-02-01"}},
		{"unknown zone", []string{"--rrule", "FREQ=DAILY", "--dtstart", "20240101", "--tz", "Nowhere/City", "--from", "2024-01-01", "--to", "2024-02-01"}},
		{"bad duration", []string{"--rrule", "FREQ=DAILY", "--dtstart", "20240101", "--duration", "an hour", "--from", "2024-01-01", "--to", "2024-02-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, "", tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestRootCommand_InvalidRuleIsReported(t *testing.T) {
	_, stderr, err := execute(t, "",
		"--rrule", "FREQ=WEEKLY;BYMONTHDAY=1",
		"--dtstart", "20240101T090000",
		"--from", "2024-01-01",
		"--to", "2024-02-01",
	)
	assert.ErrorIs(t, err, errExpansionFailed)
	assert.Contains(t, stderr, "expansion failed")
}

func TestParseInstant(t *testing.T) {
	for _, value := range []string{"2024-03-01T12:00:00Z", "20240301T120000Z"} {
		got, err := parseInstant(value, time.UTC)
		require.NoError(t, err, value)
		assert.Equal(t, "2024-03-01T12:00:00Z", got.Format("2006-01-02T15:04:05Z07:00"), value)
	}

	_, err := parseInstant("next tuesday", time.UTC)
	assert.Error(t, err)
}
