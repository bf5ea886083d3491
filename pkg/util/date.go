package util

import (
	"fmt"
	"strconv"
	"time"
)

var dateLayouts = []string{time.DateOnly, time.RFC3339, time.RFC3339Nano, "2006-01"}

// ParseDate accepts a calendar date, an RFC 3339 timestamp, a year-month or
// unix seconds. Calendar dates are UTC midnight.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// QuarterOf returns the calendar quarter, 1 to 4.
func QuarterOf(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// QuarterLabel renders t as e.g. "2024Q3".
func QuarterLabel(t time.Time) string {
	return fmt.Sprintf("%dQ%d", t.Year(), QuarterOf(t))
}
