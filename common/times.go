package common

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts lists the layouts accepted for date fields, most common first.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05-07",
}

// ParseDate parses a date or timestamp string. Values without a zone are interpreted in loc, and
// values with a zone are converted to loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, value, loc)
		if err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", value)
}

// StartOfDay returns midnight of the day containing t, in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

const secondsPerDay = 24 * 60 * 60

// DaysBetween returns the number of calendar days from `from` to `to` as observed in loc. The
// result is positive when `to` falls on a later day than `from`.
func DaysBetween(from, to time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	fy, fm, fd := from.In(loc).Date()
	ty, tm, td := to.In(loc).Date()

	// Comparing UTC midnights keeps daylight saving transitions out of the arithmetic.
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int((b.Unix() - a.Unix()) / secondsPerDay)
}

// SameMonthDay returns true if both times fall on the same month and day, ignoring the year.
func SameMonthDay(a, b time.Time) bool {
	return a.Month() == b.Month() && a.Day() == b.Day()
}

// FormatDate formats a date the way it's shown to store operators.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// FormatTimestamp formats a timestamp as milliseconds since the epoch.
func FormatTimestamp(timestamp time.Time) string {
	return fmt.Sprintf("%d", timestamp.UnixNano()/int64(time.Millisecond))
}
