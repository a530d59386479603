package organize

import (
	"math"
	"sort"
	"time"
)

// clockLayout is the canonical minute-resolution stamp used everywhere a
// session time is shown or compared.
const clockLayout = "2006-01-02 15:04"

// UnknownTime is the sentinel for a missing or unparsable timestamp.
const UnknownTime = "Unknown"

// FormatUnixTime renders unix seconds as "YYYY-MM-DD HH:MM" in UTC.
// Nil and non-positive values come back as UnknownTime; exports routinely
// carry absent or zeroed create_time fields.
func FormatUnixTime(ts *float64) string {
	if ts == nil || *ts <= 0 {
		return UnknownTime
	}
	ns := int64(math.Round(*ts * 1e9))
	return time.Unix(0, ns).UTC().Format(clockLayout)
}

// parseClock parses a canonical stamp back into a time. UnknownTime and
// malformed stamps yield the zero time, which sorts as the minimum.
func parseClock(s string) time.Time {
	if s == UnknownTime {
		return time.Time{}
	}
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// sortByClockDesc orders items newest-first by their canonical time stamp;
// entries with an Unknown stamp sink to the end.
func sortByClockDesc[T any](items []T, clock func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		return parseClock(clock(items[i])).After(parseClock(clock(items[j])))
	})
}
