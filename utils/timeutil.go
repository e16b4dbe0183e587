package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ISOFromTime formats a time as an ISO-8601 UTC timestamp. All lock-expiry
// and event timestamps in the database use this format.
func ISOFromTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseISO parses an ISO-8601 timestamp as written by ISOFromTime.
func ParseISO(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// DateFromTime formats a time as a date-only string (YYYY-MM-DD, UTC).
// Dates in this format compare correctly as strings.
func DateFromTime(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ParseDuration extends time.ParseDuration to support days (d).
func ParseDuration(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		daysStr := strings.TrimSuffix(s, "d")
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return 0, fmt.Errorf("invalid day value: %s", daysStr)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
