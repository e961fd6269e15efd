package common

import (
	"testing"
	"time"
)

func TestFormatTimestampRoundTrip(t *testing.T) {
	in := time.Date(2025, 1, 15, 3, 28, 47, 739_000_000, time.UTC)
	got := FormatTimestamp(in)
	want := "2025-01-15T03:28:47.739Z"
	if got != want {
		t.Fatalf("FormatTimestamp() = %q, want %q", got, want)
	}
	parsed, err := ParseTimestamp(got)
	if err != nil {
		t.Fatalf("ParseTimestamp(%q): %v", got, err)
	}
	if !parsed.Equal(in) {
		t.Fatalf("round trip mismatch: got %v, want %v", parsed, in)
	}
}

func TestFormatTimestampConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("test", 3600)
	in := time.Date(2025, 1, 15, 4, 28, 47, 0, loc)
	got := FormatTimestamp(in)
	want := "2025-01-15T03:28:47.000Z"
	if got != want {
		t.Fatalf("FormatTimestamp() = %q, want %q", got, want)
	}
}
