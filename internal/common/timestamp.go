package common

import "time"

// logTimestampLayout is RFC 3339 with millisecond precision in UTC, e.g.
// "2025-01-15T03:28:47.739Z". Grounded on
// original_source/mcproc/src/common/timestamp.rs's
// to_rfc3339_opts(SecondsFormat::Millis, true) and spec.md §6.
const logTimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t as RFC 3339 UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(logTimestampLayout)
}

// ParseTimestamp parses a log-file timestamp produced by FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(logTimestampLayout, s)
}
