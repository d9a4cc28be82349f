// Package clock converts wall-clock "HH:MM" strings and calendar dates used by exam schedules.
package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-day layout accepted by the API.
const DateLayout = "2006-01-02"

// MinutesPerDay bounds the minutes returned by ParseMinutes.
const MinutesPerDay = 24 * 60

// ParseMinutes converts "HH:MM" (24h) into minutes since midnight.
func ParseMinutes(hhmm string) (int, error) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", hhmm)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", hhmm)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", hhmm)
	}
	return h*60 + m, nil
}

// FormatMinutes renders minutes since midnight as zero padded "HH:MM".
func FormatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Span returns the start/end minutes of a same-day slot, requiring start < end.
func Span(start, end string) (int, int, error) {
	s, err := ParseMinutes(start)
	if err != nil {
		return 0, 0, err
	}
	e, err := ParseMinutes(end)
	if err != nil {
		return 0, 0, err
	}
	if s >= e {
		return 0, 0, fmt.Errorf("start time %s must be before end time %s", start, end)
	}
	return s, e, nil
}

// ParseDate parses a YYYY-MM-DD calendar day at UTC midnight.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw)
	}
	return d, nil
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
