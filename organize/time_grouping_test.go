package organize

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestGroupSessionsByDate_YearOrdering(t *testing.T) {
	t.Parallel()

	sessions := []SessionRecord{
		{ID: "b", CreateTime: f64(1646092800)}, // 2022-03-01
		{ID: "d"},                              // no timestamp
		{ID: "a", CreateTime: f64(1704067200)}, // 2024-01-01
		{ID: "c", CreateTime: f64(1672531200)}, // 2023-01-01
	}

	tp := GroupSessionsByDate(sessions, ModeYear)

	want := []string{"2024", "2023", "2022", UnknownTime}
	if len(tp.Order) != len(want) {
		t.Fatalf("Order=%v, want %v", tp.Order, want)
	}
	for i := range want {
		if tp.Order[i] != want[i] {
			t.Fatalf("Order=%v, want %v", tp.Order, want)
		}
	}
}

func TestGroupSessionsByDate_MonthRoundTrip(t *testing.T) {
	t.Parallel()

	sessions := []SessionRecord{
		{ID: "1", Title: "X", CreateTime: f64(1704067200)},
	}
	tp := GroupSessionsByDate(sessions, ModeMonth)

	if len(tp.Order) != 1 || tp.Order[0] != "January 2024" {
		t.Fatalf("Order=%v, want [January 2024]", tp.Order)
	}
	groups := tp.Buckets["January 2024"]
	if len(groups) != 1 {
		t.Fatalf("groups=%v, want single All group", groups)
	}
	entries := groups["All"]
	if len(entries) != 1 {
		t.Fatalf("entries=%v, want 1", entries)
	}
	if entries[0].CreateTime != "2024-01-01 00:00" {
		t.Fatalf("CreateTime=%q", entries[0].CreateTime)
	}
	if entries[0].Title != "X" {
		t.Fatalf("Title=%q", entries[0].Title)
	}
}

func TestGroupSessionsByDate_EmptyInput(t *testing.T) {
	t.Parallel()

	tp := GroupSessionsByDate(nil, ModeMonth)
	if len(tp.Order) != 0 || len(tp.Buckets) != 0 {
		t.Fatalf("tp=%+v, want empty", tp)
	}
	b, err := json.Marshal(tp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "{}" {
		t.Fatalf("json=%s, want {}", b)
	}
}

func TestGroupSessionsByDate_AllUnknown(t *testing.T) {
	t.Parallel()

	sessions := []SessionRecord{{ID: "1"}, {ID: "2"}}
	tp := GroupSessionsByDate(sessions, ModeYear)

	if len(tp.Order) != 1 || tp.Order[0] != UnknownTime {
		t.Fatalf("Order=%v, want [Unknown]", tp.Order)
	}
	if got := len(tp.Buckets[UnknownTime]["All"]); got != 2 {
		t.Fatalf("entries=%d, want 2", got)
	}
}

func TestGroupSessionsByDate_SortsWithinGroupDescending(t *testing.T) {
	t.Parallel()

	sessions := []SessionRecord{
		{ID: "early", CreateTime: f64(1704067200)}, // 2024-01-01 00:00
		{ID: "late", CreateTime: f64(1705276800)},  // 2024-01-15 00:00
	}
	tp := GroupSessionsByDate(sessions, ModeMonth)

	entries := tp.Buckets["January 2024"]["All"]
	if len(entries) != 2 {
		t.Fatalf("entries=%v", entries)
	}
	if entries[0].ID != "late" || entries[1].ID != "early" {
		t.Fatalf("order=%s,%s, want late,early", entries[0].ID, entries[1].ID)
	}
}

func TestTimePeriods_MarshalPreservesOrder(t *testing.T) {
	t.Parallel()

	sessions := []SessionRecord{
		{ID: "b", CreateTime: f64(1646092800)}, // 2022
		{ID: "a", CreateTime: f64(1704067200)}, // 2024
		{ID: "d"},                              // Unknown
	}
	tp := GroupSessionsByDate(sessions, ModeYear)

	b, err := json.Marshal(tp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	i2024 := strings.Index(s, `"2024"`)
	i2022 := strings.Index(s, `"2022"`)
	iUnknown := strings.Index(s, `"Unknown"`)
	if i2024 == -1 || i2022 == -1 || iUnknown == -1 {
		t.Fatalf("missing keys in %s", s)
	}
	if !(i2024 < i2022 && i2022 < iUnknown) {
		t.Fatalf("key order wrong in %s", s)
	}

	// Round-trips through a generic map.
	var decoded map[string]map[string][]SessionSummary
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != 3 {
		t.Fatalf("decoded=%v", decoded)
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	if ParseMode("month") != ModeMonth || ParseMode("year") != ModeYear {
		t.Fatalf("month/year parse failed")
	}
	if ParseMode("category") != ModeCategory {
		t.Fatalf("category parse failed")
	}
	if ParseMode("bogus") != ModeCategory {
		t.Fatalf("unknown mode should default to category")
	}
}
