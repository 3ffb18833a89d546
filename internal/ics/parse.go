package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"calgrid/internal/days"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// Source is one configured iCalendar feed. URL sources go through the
// Fetcher; Path sources are read from disk.
type Source struct {
	ID   string
	URL  string
	Path string
}

func (s Source) String() string {
	if s.URL != "" {
		return redactURL(s.URL)
	}
	return s.Path
}

// ParseICS converts the VEVENTs of one payload into flat events. Date-only
// values are read as calendar dates in loc; the exclusive DTEND of all-day
// events becomes 23:59:59.999 of the last covered day. Recurrence rules are
// not expanded, only the first occurrence is kept.
func ParseICS(src Source, body []byte, loc *time.Location) ([]model.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "source", src.String())
		return nil, fmt.Errorf("parse %s: %w", src.ID, err)
	}

	events := make([]model.Event, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp, loc)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "id", src.ID, "err", perr)
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "source", src.String(), "event_count", len(events))
	return events, nil
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

func isDateOnly(prop *ical.IANAProperty) bool {
	if prop == nil {
		return false
	}
	if vs, ok := prop.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(prop.Value, "T")
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (model.Event, error) {
	var out model.Event

	out.ID = propValue(ve, ical.ComponentPropertyUniqueId)
	if out.ID == "" {
		return out, errors.New("missing UID")
	}
	out.Title = propValue(ve, ical.ComponentPropertySummary)
	out.Description = propValue(ve, ical.ComponentPropertyDescription)
	out.Color = propValue(ve, ical.ComponentProperty("COLOR"))

	if rrule := propValue(ve, ical.ComponentPropertyRrule); rrule != "" {
		appLog.Debug("ics recurrence not expanded", "uid", out.ID, "rrule", rrule)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, fmt.Errorf("%s: missing DTSTART", out.ID)
	}

	if isDateOnly(dtStart) {
		start, err := parseDate(dtStart.Value, loc)
		if err != nil {
			return out, fmt.Errorf("%s: DTSTART: %w", out.ID, err)
		}
		last := start
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			end, err := parseDate(dtEnd.Value, loc)
			if err != nil {
				return out, fmt.Errorf("%s: DTEND: %w", out.ID, err)
			}
			// DTEND is exclusive for date values.
			if end.After(start) {
				last = end.AddDate(0, 0, -1)
			}
		}
		out.AllDay = true
		out.Start = start
		out.End = days.EndOfDay(last)
		return out, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("%s: DTSTART: %w", out.ID, err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		// Without DTEND or DURATION a timed event ends where it starts.
		end = start
	}
	out.Start = start.In(loc)
	out.End = end.In(loc)
	return out, nil
}

func parseDate(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if len(v) < 8 {
		return time.Time{}, fmt.Errorf("bad date %q", v)
	}
	return time.ParseInLocation("20060102", v[:8], loc)
}
