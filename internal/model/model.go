package model

import (
	"strings"
	"time"
)

// Event is a single calendar entry as the layout engine sees it. Events are
// supplied as a flat list and live in memory for the life of the widget.
type Event struct {
	ID string `json:"id" yaml:"id"`

	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Color       string `json:"color,omitempty" yaml:"color,omitempty"`

	// AllDay events occupy the separate all-day lane and never take part in
	// time-grid overlap geometry.
	AllDay bool `json:"all_day,omitempty" yaml:"all_day,omitempty"`

	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`

	// Hidden is set while the event is the source of an active drag so its
	// original position can be dimmed.
	Hidden bool `json:"hidden,omitempty" yaml:"-"`

	// DraggingToggle inverts the global drag permission for this event only.
	DraggingToggle bool `json:"dragging_toggle,omitempty" yaml:"dragging_toggle,omitempty"`
}

// Duration returns End-Start. Degenerate events report zero or negative values.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// HasDates reports whether both Start and End are set.
func (e Event) HasDates() bool {
	return !e.Start.IsZero() && !e.End.IsZero()
}

// ViewKind selects which calendar view is being laid out.
type ViewKind int

const (
	ViewDay ViewKind = iota
	ViewWeek
	ViewMonth
	ViewMultiDay
	ViewAgenda
)

var viewNames = map[ViewKind]string{
	ViewDay:      "day",
	ViewWeek:     "week",
	ViewMonth:    "month",
	ViewMultiDay: "multi_day",
	ViewAgenda:   "agenda",
}

func (v ViewKind) String() string {
	if s, ok := viewNames[v]; ok {
		return s
	}
	return "unknown"
}

// IsTimeGrid reports whether events are positioned on an hour grid in this view.
func (v ViewKind) IsTimeGrid() bool {
	return v == ViewDay || v == ViewWeek || v == ViewMultiDay
}

// ParseViewKind maps a config/CLI name to a ViewKind. Unknown names fall back
// to the week view.
func ParseViewKind(s string) ViewKind {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	for k, name := range viewNames {
		if name == s {
			return k
		}
	}
	return ViewWeek
}

// DisplayMode is the horizontal policy used for concurrent events.
type DisplayMode string

const (
	SideBySide  DisplayMode = "side-by-side"
	Overlapping DisplayMode = "overlapping"
)

// ParseDisplayMode accepts "side-by-side" and "overlapping" (case-insensitive,
// underscores allowed). Anything else yields SideBySide.
func ParseDisplayMode(s string) DisplayMode {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "-")
	if s == string(Overlapping) {
		return Overlapping
	}
	return SideBySide
}
