package tsv

import (
	"strings"
	"time"
)

// TimestampLayout is the D/M/YY H:MM:SS layout written by the logger. Day,
// month and hour may be written with one or two digits; minutes, seconds
// and the year always have two.
const TimestampLayout = "2/1/06 15:04:05"

// ParseTimestamp decodes a logger timestamp.
//
// The wall-clock value is taken as UTC; any timezone carried by file
// metadata is ignored. ok is false for empty or non-matching input.
func ParseTimestamp(raw string) (ts time.Time, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	t, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
