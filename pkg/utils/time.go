package utils

import "time"

// ParseRFC3339 parses an optional RFC3339 time. An empty string is the zero time.
func ParseRFC3339(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// FormatRFC3339 renders t in UTC with millisecond precision, or "" for the zero time
func FormatRFC3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
