package organize

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"
)

// Mode selects how an organize job buckets its sessions.
type Mode string

const (
	ModeCategory Mode = "category"
	ModeMonth    Mode = "month"
	ModeYear     Mode = "year"
)

// ParseMode maps arbitrary input to a valid Mode, defaulting to category.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeMonth:
		return ModeMonth
	case ModeYear:
		return ModeYear
	default:
		return ModeCategory
	}
}

// groupAll is the single group name inside each calendar bucket.
const groupAll = "All"

const (
	monthPeriodLayout = "January 2006"
	yearPeriodLayout  = "2006"
)

// TimePeriods holds calendar buckets keyed by period ("January 2024" or
// "2024"), each with a single "All" group. Order lists periods newest-first
// with "Unknown" last, and the JSON encoding preserves that order.
type TimePeriods struct {
	Order   []string
	Buckets map[string]map[string][]SessionSummary
}

// MarshalJSON emits the buckets as a JSON object with keys in Order.
func (tp TimePeriods) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, period := range tp.Order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(period)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(tp.Buckets[period])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// GroupSessionsByDate buckets sessions into calendar periods derived from
// their create time. mode must be ModeMonth or ModeYear; anything else is
// treated as ModeMonth. Sessions with a missing or unparsable create time
// land in the "Unknown" period.
func GroupSessionsByDate(sessions []SessionRecord, mode Mode) TimePeriods {
	buckets := make(map[string]map[string][]SessionSummary)

	for _, s := range sessions {
		info := s.Summary()
		period := periodKey(info.CreateTime, mode)
		if buckets[period] == nil {
			buckets[period] = make(map[string][]SessionSummary)
		}
		buckets[period][groupAll] = append(buckets[period][groupAll], info)
	}

	order := make([]string, 0, len(buckets))
	for period := range buckets {
		order = append(order, period)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return periodTime(order[i], mode).After(periodTime(order[j], mode))
	})

	for _, groups := range buckets {
		for name := range groups {
			sortByClockDesc(groups[name], func(v SessionSummary) string { return v.CreateTime })
		}
	}

	return TimePeriods{Order: order, Buckets: buckets}
}

// periodKey derives the bucket key from a canonical create-time stamp.
func periodKey(createTime string, mode Mode) string {
	t := parseClock(createTime)
	if t.IsZero() {
		return UnknownTime
	}
	if mode == ModeYear {
		return t.Format(yearPeriodLayout)
	}
	return t.Format(monthPeriodLayout)
}

// periodTime parses a bucket key back into a sortable time. "Unknown" maps
// to the zero time so it orders as the oldest period.
func periodTime(period string, mode Mode) time.Time {
	if period == UnknownTime {
		return time.Time{}
	}
	layout := monthPeriodLayout
	if mode == ModeYear {
		layout = yearPeriodLayout
	}
	t, err := time.Parse(layout, period)
	if err != nil {
		return time.Time{}
	}
	return t
}
