package types

import (
	"sync"
	"time"
)

// TimeFormat is the wire form of every timestamp: ISO-8601 UTC with a fixed
// nine-digit fractional second. The width never varies, so lexicographic
// order over serialized timestamps equals temporal order; journal range
// queries and ORDER BY compare the stored strings directly.
const TimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

var clockMu sync.Mutex
var clockLast time.Time

// Now returns the current UTC time, strictly increasing within the process.
// If the wall clock has not advanced past the previous reading, the previous
// reading plus one microsecond is returned instead. Journal ordering relies
// on this: two entries never share a timestamp.
func Now() time.Time {
	clockMu.Lock()
	defer clockMu.Unlock()
	now := time.Now().UTC()
	if !now.After(clockLast) {
		now = clockLast.Add(time.Microsecond)
	}
	clockLast = now
	return now
}

// FormatTime serializes a timestamp in the wire format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseTime parses a wire-format timestamp. Any fractional-second precision
// is accepted on input; only serialization is fixed-width.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
