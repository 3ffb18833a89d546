package layout

import (
	"time"

	"calgrid/internal/bizhours"
	"calgrid/internal/days"
	"calgrid/internal/model"
)

// Options configure one run of the day pipeline.
type Options struct {
	Grid   Grid
	View   model.ViewKind
	Mode   model.DisplayMode
	Tuning Tuning

	// FullDuration disables the visible-window clip for timed boxes.
	FullDuration bool
}

// Placed pairs an event with its computed box.
type Placed struct {
	Event model.Event `json:"event"`
	Box   Box         `json:"box"`
}

// DayLayout is the geometry of every event drawn in one day cell.
type DayLayout struct {
	Day    string   `json:"day"`
	AllDay []Placed `json:"all_day"`
	Timed  []Placed `json:"timed"`
}

// Find returns the placement of the event with the given ID.
func (d DayLayout) Find(id string) (Placed, bool) {
	for _, p := range d.AllDay {
		if p.Event.ID == id {
			return p, true
		}
	}
	for _, p := range d.Timed {
		if p.Event.ID == id {
			return p, true
		}
	}
	return Placed{}, false
}

// Day runs grouping, vertical geometry and the horizontal policy for the
// events of one day. The same input always yields the same layout.
func Day(day time.Time, events []model.Event, opts Options) DayLayout {
	out := DayLayout{Day: days.Key(day)}
	groups := Group(events)

	for i, ev := range groups.AllDay {
		box := Vertical(ev, day, opts.Grid, Tag{AllDay: true, View: opts.View})
		box.Top = float64(i) * box.Height
		box.WidthPercent = 100
		box.ZIndex = 1
		out.AllDay = append(out.AllDay, Placed{Event: ev, Box: box})
	}

	if !opts.View.IsTimeGrid() {
		// Month and agenda cells list timed events below each other.
		n := 0
		for _, c := range groups.Clusters {
			for _, ev := range c.Events {
				box := Vertical(ev, day, opts.Grid, Tag{View: opts.View})
				box.Top = float64(len(out.AllDay)+n) * box.Height
				box.WidthPercent = 100
				box.ZIndex = 1
				out.Timed = append(out.Timed, Placed{Event: ev, Box: box})
				n++
			}
		}
		return out
	}

	for _, c := range groups.Clusters {
		horiz := Arrange(c.Events, opts.Mode, opts.Tuning)
		for _, ev := range c.Events {
			box := Vertical(ev, day, opts.Grid, Tag{View: opts.View, FullDuration: opts.FullDuration})
			h := horiz[ev.ID]
			box.LeftPercent = h.LeftPercent
			box.WidthPercent = h.WidthPercent
			box.LeftPixels = h.LeftPixels
			box.ZIndex = h.ZIndex
			out.Timed = append(out.Timed, Placed{Event: ev, Box: box})
		}
	}
	return out
}

// Band is a full-width overlay strip in the time grid.
type Band struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// NonBusinessBands returns the shaded strips before opening and after closing
// time within the visible window.
func NonBusinessBands(h bizhours.Hours, g Grid) []Band {
	if !g.Valid() {
		return nil
	}
	pos := func(hour float64) float64 {
		return g.HeaderMargin + (hour-g.Window.From)/g.Window.Span()*g.Available()
	}

	var out []Band
	if g.Window.From < h.Start {
		top := pos(g.Window.From)
		if top < g.HeaderMargin {
			top = g.HeaderMargin
		}
		bottom := pos(h.Start)
		if bottom > g.CellHeight {
			bottom = g.CellHeight
		}
		if bottom > top {
			out = append(out, Band{Top: top, Height: bottom - top})
		}
	}
	if g.Window.To > h.End {
		top := pos(h.End)
		if top < g.HeaderMargin {
			top = g.HeaderMargin
		}
		bottom := pos(g.Window.To)
		if bottom > g.CellHeight {
			bottom = g.CellHeight
		}
		if bottom > top {
			out = append(out, Band{Top: top, Height: bottom - top})
		}
	}
	return out
}

// NowMarker is the current-time line of today's column.
type NowMarker struct {
	Top     float64 `json:"top"`
	Visible bool    `json:"visible"`
}

// NowLine positions the current-time line. Times outside the window are
// pinned to its edges; a line pinned to the top edge is hidden.
func NowLine(now time.Time, g Grid) NowMarker {
	if !g.Valid() {
		return NowMarker{}
	}
	hour := float64(now.Hour()) + float64(now.Minute())/60
	if hour < g.Window.From {
		hour = g.Window.From
	}
	if hour > g.Window.To {
		hour = g.Window.To
	}
	top := g.HeaderMargin + (hour-g.Window.From)/g.Window.Span()*g.Available()
	return NowMarker{Top: top, Visible: top != g.HeaderMargin}
}
