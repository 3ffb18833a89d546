// Package days holds the calendar-day arithmetic shared by the store, the
// layout engine and the drag controller.
package days

import (
	"time"
)

// KeyLayout is the date-key format used by the date-bucketed index.
const KeyLayout = "2006-01-02"

// monthGridDays is the fixed number of cells in a month view (6 weeks).
const monthGridDays = 42

// Key returns the YYYY-MM-DD key of t in t's own location.
func Key(t time.Time) string {
	return t.Format(KeyLayout)
}

// ParseKey parses a YYYY-MM-DD key as midnight in loc.
func ParseKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(KeyLayout, key, loc)
}

// Start returns local midnight of t's calendar day.
func Start(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Next returns midnight of the following calendar day. It goes through
// AddDate so DST transitions keep 23h/25h days intact.
func Next(t time.Time) time.Time {
	return Start(t).AddDate(0, 0, 1)
}

// EndOfDay returns 23:59:59.999 of t's calendar day, the end stamp the widget
// uses for all-day events.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// At returns t's calendar day at hour:minute.
func At(t time.Time, hour, minute int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, t.Location())
}

// Same reports whether a and b fall on the same calendar day in a's location.
func Same(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Between returns the number of calendar days from a's day to b's day,
// counted in a's location.
func Between(a, b time.Time) int {
	a = Start(a)
	b = Start(b.In(a.Location()))
	// Use noon to stay clear of DST gaps.
	an := a.Add(12 * time.Hour)
	bn := b.Add(12 * time.Hour)
	return int(bn.Sub(an).Round(24*time.Hour) / (24 * time.Hour))
}

// HourOf returns the wall-clock hour of t on day's calendar, so 10:00 is 10
// even on a DST transition day. The next midnight is 24; values below 0 or
// above 24 mean t lies outside that day.
func HourOf(t, day time.Time) float64 {
	t = t.In(day.Location())
	wall := float64(t.Hour()) +
		float64(t.Minute())/60 +
		float64(t.Second())/3600 +
		float64(t.Nanosecond())/float64(time.Hour)
	return float64(Between(day, t))*24 + wall
}

// Weekday normalizes a configured weekday number, accepting 7 as Sunday.
func Weekday(n int) (time.Weekday, bool) {
	if n == 7 {
		n = 0
	}
	if n < 0 || n > 6 {
		return 0, false
	}
	return time.Weekday(n), true
}

// MonthGrid returns the 42 days shown by a month view containing day. The
// grid starts on weekStart and is padded with days of the adjacent months.
func MonthGrid(day time.Time, weekStart time.Weekday) []time.Time {
	y, m, _ := day.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, day.Location())
	back := (int(first.Weekday()) - int(weekStart) + 7) % 7
	cur := first.AddDate(0, 0, -back)

	out := make([]time.Time, 0, monthGridDays)
	for range monthGridDays {
		out = append(out, cur)
		cur = cur.AddDate(0, 0, 1)
	}
	return out
}

// WeekOf returns the seven days of the week containing day.
func WeekOf(day time.Time, weekStart time.Weekday) []time.Time {
	back := (int(day.Weekday()) - int(weekStart) + 7) % 7
	cur := Start(day).AddDate(0, 0, -back)
	out := make([]time.Time, 0, 7)
	for range 7 {
		out = append(out, cur)
		cur = cur.AddDate(0, 0, 1)
	}
	return out
}

// Range returns each day from from to to inclusive, skipping weekdays listed
// in hidden (0 or 7 = Sunday). A range where from is after to is empty.
func Range(from, to time.Time, hidden []int) []time.Time {
	skip := make(map[time.Weekday]bool, len(hidden))
	for _, h := range hidden {
		if wd, ok := Weekday(h); ok {
			skip[wd] = true
		}
	}

	from = Start(from)
	to = Start(to.In(from.Location()))
	var out []time.Time
	for cur := from; !cur.After(to); cur = cur.AddDate(0, 0, 1) {
		if skip[cur.Weekday()] {
			continue
		}
		out = append(out, cur)
	}
	return out
}
