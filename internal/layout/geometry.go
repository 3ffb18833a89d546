package layout

import (
	"math"
	"time"

	"calgrid/internal/days"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// Window is the visible hour range [From, To) of the time grid.
type Window struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

// Span returns To - From in hours.
func (w Window) Span() float64 { return w.To - w.From }

// Grid describes the pixel geometry of one day cell.
type Grid struct {
	Window Window

	// CellHeight is the full pixel height of the day cell, HeaderMargin the
	// part of it reserved for the all-day lane.
	CellHeight   float64
	HeaderMargin float64

	// Inset is subtracted from every timed box so adjacent events separate.
	Inset float64

	AllDayHeight     float64
	MonthEventHeight float64
}

const (
	DefaultInset            = 2
	DefaultAllDayHeight     = 40
	DefaultMonthEventHeight = 20
)

// Available is the pixel height of the timed area below the header.
func (g Grid) Available() float64 { return g.CellHeight - g.HeaderMargin }

// Valid reports whether the grid can map hours to pixels at all.
func (g Grid) Valid() bool {
	return g.Window.Span() > 0 && g.Available() > 0
}

// Tag selects the geometry branch for an event.
type Tag struct {
	AllDay bool
	View   model.ViewKind

	// FullDuration skips the visible-window clip. Drag previews use it so an
	// event can extend past the rendered hours. The day clip still applies.
	FullDuration bool
}

// TagFor builds the tag for ev in view.
func TagFor(ev model.Event, view model.ViewKind) Tag {
	return Tag{AllDay: ev.AllDay, View: view}
}

// Box is the geometry handed to renderers. Vertical fields are pixels,
// LeftPercent and WidthPercent are percentages of the day column.
type Box struct {
	Top          float64 `json:"top"`
	Height       float64 `json:"height"`
	LeftPercent  float64 `json:"left_percent"`
	WidthPercent float64 `json:"width_percent"`
	LeftPixels   float64 `json:"left_px"`
	ZIndex       int     `json:"z_index"`
}

// Empty reports whether the box is not rendered.
func (b Box) Empty() bool { return b.Height <= 0 }

// Vertical computes top and height of ev within day.
func Vertical(ev model.Event, day time.Time, g Grid, tag Tag) Box {
	if tag.AllDay {
		return Box{Height: g.AllDayHeight}
	}
	if !tag.View.IsTimeGrid() {
		return Box{Height: g.MonthEventHeight}
	}
	if !g.Valid() {
		appLog.Debug("layout: grid not measured", "id", ev.ID, "cell_height", g.CellHeight, "from", g.Window.From, "to", g.Window.To)
		return Box{}
	}

	dayStart := days.Start(day)
	dayEnd := days.Next(day)
	start, end := ev.Start, ev.End
	if start.Before(dayStart) {
		start = dayStart
	}
	if end.After(dayEnd) {
		end = dayEnd
	}
	if !start.Before(end) {
		return Box{}
	}

	startHour := days.HourOf(start, dayStart)
	endHour := days.HourOf(end, dayStart)
	if !tag.FullDuration {
		startHour = math.Max(startHour, g.Window.From)
		endHour = math.Min(endHour, g.Window.To)
		if startHour >= endHour {
			return Box{}
		}
	}

	span := g.Window.Span()
	avail := g.Available()
	top := g.HeaderMargin + (startHour-g.Window.From)/span*avail
	height := (endHour-startHour)/span*avail - g.Inset
	if height < 0 {
		height = 0
	}
	return Box{Top: top, Height: height}
}

// SnapTop snaps a pointer offset within the day cell to the top of the time
// slot it falls into. Offsets inside the all-day header snap to the first
// slot. The result never leaves the grid.
func (g Grid) SnapTop(offsetY float64, slots int) float64 {
	if slots <= 0 || !g.Valid() || offsetY <= g.HeaderMargin {
		return g.HeaderMargin
	}
	slotHeight := g.Available() / float64(slots)
	slot := int(math.Floor((offsetY - g.HeaderMargin) / slotHeight))
	if slot >= slots {
		slot = slots - 1
	}
	return float64(slot)*slotHeight + g.HeaderMargin
}

// TimeAt maps a pixel offset to the wall-clock time it represents on day,
// rounded to the minute. An unusable grid returns day unchanged.
func (g Grid) TimeAt(day time.Time, offsetY float64) time.Time {
	if !g.Valid() {
		return day
	}
	frac := (offsetY - g.HeaderMargin) / g.Available()
	minutes := int(math.Round(g.Window.From*60 + g.Window.Span()*60*frac))
	return days.At(day, 0, minutes)
}

// OffsetOf is the inverse of TimeAt: the pixel offset of t on its own day.
func (g Grid) OffsetOf(t time.Time) float64 {
	if !g.Valid() {
		return g.HeaderMargin
	}
	hour := days.HourOf(t, t)
	return g.HeaderMargin + (hour-g.Window.From)/g.Window.Span()*g.Available()
}
