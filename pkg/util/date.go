package util

import (
	"strconv"
	"time"
)

var timeLayouts = []string{time.RFC3339, time.RFC3339Nano}

// ParseTime accepts RFC3339 timestamps and unix seconds. The second
// return is false when s matched neither.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses s, falling back to def when empty or invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// TruncateDay normalizes a timestamp to midnight UTC of its calendar day.
func TruncateDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
