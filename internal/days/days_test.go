package days

import (
	"testing"
	"time"
	_ "time/tzdata"
)

func TestMonthGridStartsOnWeekStart(t *testing.T) {
	// March 2025 begins on a Saturday.
	day := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	grid := MonthGrid(day, time.Monday)
	if len(grid) != 42 {
		t.Fatalf("expected 42 days; got %d", len(grid))
	}
	if got := Key(grid[0]); got != "2025-02-24" {
		t.Fatalf("expected grid to start on Monday 2025-02-24; got %s", got)
	}

	grid = MonthGrid(day, time.Sunday)
	if got := Key(grid[0]); got != "2025-02-23" {
		t.Fatalf("expected grid to start on Sunday 2025-02-23; got %s", got)
	}
}

func TestRangeSkipsHiddenDays(t *testing.T) {
	from := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC) // Monday
	to := time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC)  // Sunday

	got := Range(from, to, []int{6, 7})
	if len(got) != 5 {
		t.Fatalf("expected 5 weekdays; got %d", len(got))
	}
	for _, d := range got {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			t.Fatalf("hidden day leaked: %s", Key(d))
		}
	}

	if r := Range(to, from, nil); len(r) != 0 {
		t.Fatalf("expected empty range for inverted bounds; got %d", len(r))
	}
}

func TestBetweenAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	a := time.Date(2025, 3, 29, 23, 0, 0, 0, loc)
	b := time.Date(2025, 3, 31, 1, 0, 0, 0, loc)
	if got := Between(a, b); got != 2 {
		t.Fatalf("expected 2 days across DST; got %d", got)
	}
	if got := Between(b, a); got != -2 {
		t.Fatalf("expected -2 days; got %d", got)
	}
}

func TestHourOfAndEndOfDay(t *testing.T) {
	day := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	if got := HourOf(time.Date(2025, 1, 6, 9, 30, 0, 0, time.UTC), day); got != 9.5 {
		t.Fatalf("expected 9.5; got %v", got)
	}
	end := EndOfDay(day)
	if end.Hour() != 23 || end.Minute() != 59 || end.Nanosecond() != 999_000_000 {
		t.Fatalf("unexpected end of day %v", end)
	}
	if !Same(day, end) {
		t.Fatalf("end of day must stay on the same date")
	}
}

func TestHourOfUsesWallClockOnDSTDays(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	spring := time.Date(2025, 3, 9, 0, 0, 0, 0, ny)
	fall := time.Date(2025, 11, 2, 0, 0, 0, 0, ny)

	cases := []struct {
		name string
		t    time.Time
		day  time.Time
		want float64
	}{
		{"spring forward", time.Date(2025, 3, 9, 10, 0, 0, 0, ny), spring, 10},
		{"fall back", time.Date(2025, 11, 2, 16, 30, 0, 0, ny), fall, 16.5},
		{"next midnight", time.Date(2025, 11, 3, 0, 0, 0, 0, ny), fall, 24},
		{"previous evening", time.Date(2025, 3, 8, 22, 0, 0, 0, ny), spring, -2},
	}
	for _, tc := range cases {
		if got := HourOf(tc.t, tc.day); got != tc.want {
			t.Fatalf("%s: HourOf = %v; want %v", tc.name, got, tc.want)
		}
	}
}
