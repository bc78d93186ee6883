// Package humantime turns loosely-phrased caller dates and times into the
// canonical forms the rest of the system stores and compares: ISO dates
// (YYYY-MM-DD) and 24-hour clock times (HH:MM).
package humantime

import (
	"errors"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// ErrInvalidDateTime is returned when input cannot be understood. Callers
// surface it to the agent as a prompt to re-ask, never as a guess.
var ErrInvalidDateTime = errors.New("invalid date/time")

var parser *when.Parser

func init() {
	parser = when.New(nil)
	parser.Add(en.All...)
	parser.Add(common.All...)
}

// Normalize parses a flexible date ("Feb 10 2026", "next Tuesday") and time
// ("9am", "2 PM", "14:30") relative to the current moment.
func Normalize(dateInput, timeInput string) (string, string, error) {
	return NormalizeAt(time.Now(), dateInput, timeInput)
}

// NormalizeAt is Normalize with an explicit base for relative phrases,
// which keeps tests deterministic.
func NormalizeAt(base time.Time, dateInput, timeInput string) (string, string, error) {
	date, err := parseDate(base, dateInput)
	if err != nil {
		return "", "", err
	}

	clock, err := parseClock(base, timeInput)
	if err != nil {
		return "", "", err
	}

	return date.Format("2006-01-02"), clock.Format("15:04"), nil
}

func parseDate(base time.Time, input string) (time.Time, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, ErrInvalidDateTime
	}

	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}

	if d, err := dateparse.ParseAny(s); err == nil {
		return d, nil
	}

	// Relative phrases: "next Tuesday", "tomorrow", "in two days".
	if r, err := parser.Parse(s, base); err == nil && r != nil {
		return r.Time, nil
	}

	return time.Time{}, ErrInvalidDateTime
}

// dateLayouts covers canonical input plus common spoken-then-transcribed
// forms the fuzzy parsers are unreliable on.
var dateLayouts = []string{
	"2006-01-02",
	"Jan 2 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
}

var clockLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"3 PM",
	"3PM",
}

func parseClock(base time.Time, input string) (time.Time, error) {
	s := strings.ToUpper(strings.TrimSpace(input))
	if s == "" {
		return time.Time{}, ErrInvalidDateTime
	}

	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	// "noon", "at 2:30 in the afternoon" and similar.
	if r, err := parser.Parse(s, base); err == nil && r != nil {
		return r.Time, nil
	}

	return time.Time{}, ErrInvalidDateTime
}
