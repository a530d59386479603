package organize

import (
	"testing"
	"time"
)

func TestFormatUnixTime(t *testing.T) {
	t.Parallel()

	if got := FormatUnixTime(f64(1704067200)); got != "2024-01-01 00:00" {
		t.Fatalf("FormatUnixTime=%q, want 2024-01-01 00:00", got)
	}
	if got := FormatUnixTime(nil); got != UnknownTime {
		t.Fatalf("nil=%q", got)
	}
	if got := FormatUnixTime(f64(0)); got != UnknownTime {
		t.Fatalf("zero=%q", got)
	}
	if got := FormatUnixTime(f64(-5)); got != UnknownTime {
		t.Fatalf("negative=%q", got)
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	got := parseClock("2024-01-01 00:00")
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("parseClock=%v, want %v", got, want)
	}
	if !parseClock(UnknownTime).IsZero() {
		t.Fatalf("Unknown should parse to zero time")
	}
	if !parseClock("garbage").IsZero() {
		t.Fatalf("garbage should parse to zero time")
	}
}

func TestSortByClockDesc_UnknownLast(t *testing.T) {
	t.Parallel()

	items := []SessionSummary{
		{ID: "old", CreateTime: "2022-03-01 09:00"},
		{ID: "none", CreateTime: UnknownTime},
		{ID: "new", CreateTime: "2024-06-15 12:30"},
	}
	sortByClockDesc(items, func(v SessionSummary) string { return v.CreateTime })

	if items[0].ID != "new" || items[1].ID != "old" || items[2].ID != "none" {
		t.Fatalf("order=%s,%s,%s", items[0].ID, items[1].ID, items[2].ID)
	}
}
