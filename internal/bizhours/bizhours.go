// Package bizhours resolves the configured business hours for a calendar day
// and checks whether a placement fits inside them. It is only consulted when
// gating drag-and-drop.
package bizhours

import (
	"time"

	"calgrid/internal/days"
	appLog "calgrid/internal/log"
)

// Rule is one business-hours entry. A rule with Date set matches that day
// only; a rule with DaysOfWeek matches those weekdays (0 or 7 = Sunday); a
// rule with neither is the catch-all default. Start and End are hours of the
// day and may be fractional (8.5 = 08:30).
type Rule struct {
	Date       string  `yaml:"date,omitempty" toml:"date,omitempty" json:"date,omitempty"`
	DaysOfWeek []int   `yaml:"days_of_week,omitempty" toml:"days_of_week,omitempty" json:"days_of_week,omitempty"`
	Start      float64 `yaml:"start" toml:"start" json:"start"`
	End        float64 `yaml:"end" toml:"end" json:"end"`
}

// Hours is the resolved open interval for one day.
type Hours struct {
	Start float64
	End   float64
}

// Rules is an ordered rule list. The zero value allows everything.
type Rules []Rule

func (r Rule) valid() bool {
	if r.Start < 0 || r.End > 24 || r.Start > r.End {
		return false
	}
	if r.Date != "" {
		if _, err := time.Parse(days.KeyLayout, r.Date); err != nil {
			return false
		}
	}
	return true
}

func (r Rule) matchesWeekday(wd time.Weekday) bool {
	for _, n := range r.DaysOfWeek {
		if w, ok := days.Weekday(n); ok && w == wd {
			return true
		}
	}
	return false
}

// ForDay returns the business hours that apply to day. Priority is specific
// date, then weekday, then the default rule. Malformed rules are skipped, so
// a list of only malformed rules behaves like no configuration at all.
func (rs Rules) ForDay(day time.Time) (Hours, bool) {
	if len(rs) == 0 {
		return Hours{}, false
	}
	key := days.Key(day)

	for _, r := range rs {
		if r.Date != "" && r.valid() && r.Date == key {
			return Hours{Start: r.Start, End: r.End}, true
		}
	}
	for _, r := range rs {
		if r.Date == "" && len(r.DaysOfWeek) > 0 && r.valid() && r.matchesWeekday(day.Weekday()) {
			return Hours{Start: r.Start, End: r.End}, true
		}
	}
	for _, r := range rs {
		if r.Date == "" && len(r.DaysOfWeek) == 0 && r.valid() {
			return Hours{Start: r.Start, End: r.End}, true
		}
	}
	return Hours{}, false
}

// Contains reports whether instant t falls inside business hours of its own
// day. End is exclusive. Days without a rule are always open.
func (rs Rules) Contains(t time.Time) bool {
	h, ok := rs.ForDay(t)
	if !ok {
		return true
	}
	hour := days.HourOf(t, t)
	return hour >= h.Start && hour < h.End
}

// Fits reports whether [start, end) lies entirely within the business hours
// of start's day. Placements that cross midnight are rejected outright when a
// rule applies; an end of exactly the next midnight counts as 24:00.
func (rs Rules) Fits(start, end time.Time) bool {
	h, ok := rs.ForDay(start)
	if !ok {
		return true
	}
	if end.Before(start) {
		return false
	}

	startHour := days.HourOf(start, start)
	endHour := days.HourOf(end, start)
	if endHour > 24 {
		appLog.Debug("business hours: placement spans midnight", "start", start, "end", end)
		return false
	}
	return startHour >= h.Start && endHour <= h.End
}

// Validate returns the indexes of malformed rules so callers can report them.
// Malformed rules never cause a failure; they are ignored by lookups.
func (rs Rules) Validate() []int {
	var bad []int
	for i, r := range rs {
		if !r.valid() {
			bad = append(bad, i)
		}
	}
	return bad
}
