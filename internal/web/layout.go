package web

import (
	"time"

	"calgrid/internal/config"
	"calgrid/internal/days"
	"calgrid/internal/i18n"
	"calgrid/internal/layout"
	"calgrid/internal/model"
	"calgrid/internal/store"
)

const (
	multiDaySpan   = 3
	agendaSpan     = 7
	monthCellLimit = 4
)

// LayoutRequest selects what BuildLayout renders. View and Mode override
// the configured values only when the matching *Set flag is true.
type LayoutRequest struct {
	Date    time.Time
	View    model.ViewKind
	ViewSet bool
	Mode    model.DisplayMode
	ModeSet bool
}

// DayView is one rendered day cell.
type DayView struct {
	layout.DayLayout
	Bands []layout.Band     `json:"non_business,omitempty"`
	Now   *layout.NowMarker `json:"now,omitempty"`
	More  string            `json:"more,omitempty"`
}

// LayoutResponse is the JSON shape of /api/layout and the layout command.
type LayoutResponse struct {
	View        string        `json:"view"`
	Mode        string        `json:"mode"`
	TimeZone    string        `json:"timezone"`
	Window      layout.Window `json:"window"`
	CellHeight  float64       `json:"cell_height"`
	AllDayLabel string        `json:"all_day_label"`
	Days        []DayView     `json:"days"`
}

// ViewDays returns the days the view containing date shows.
func ViewDays(cfg *config.Config, view model.ViewKind, date time.Time) []time.Time {
	date = days.Start(date)
	switch view {
	case model.ViewDay:
		return []time.Time{date}
	case model.ViewMultiDay:
		return days.Range(date, date.AddDate(0, 0, multiDaySpan-1), cfg.HiddenDays)
	case model.ViewMonth:
		return days.MonthGrid(date, cfg.WeekStartDay())
	case model.ViewAgenda:
		return days.Range(date, date.AddDate(0, 0, agendaSpan-1), nil)
	default:
		week := days.WeekOf(date, cfg.WeekStartDay())
		return days.Range(week[0], week[len(week)-1], cfg.HiddenDays)
	}
}

// BuildLayout lays out every day of the requested view from the store.
func BuildLayout(cfg *config.Config, st *store.Store, tr *i18n.Translator, req LayoutRequest, now time.Time) LayoutResponse {
	view := cfg.ViewKind()
	if req.ViewSet {
		view = req.View
	}
	mode := cfg.Mode()
	if req.ModeSet {
		mode = req.Mode
	}
	grid := cfg.Grid()
	opts := layout.Options{
		Grid:   grid,
		View:   view,
		Mode:   mode,
		Tuning: cfg.Tuning(),
	}
	loc := st.Location()
	now = now.In(loc)

	resp := LayoutResponse{
		View:        view.String(),
		Mode:        string(mode),
		TimeZone:    loc.String(),
		Window:      grid.Window,
		CellHeight:  grid.CellHeight,
		AllDayLabel: tr.AllDayLabel(),
		Days:        make([]DayView, 0),
	}

	for _, day := range ViewDays(cfg, view, req.Date.In(loc)) {
		var events []model.Event
		if view.IsTimeGrid() {
			events = st.VisibleOn(day, grid.Window.From, grid.Window.To)
		} else {
			events = st.EventsOn(day)
		}
		if view == model.ViewAgenda && len(events) == 0 {
			continue
		}

		dv := DayView{DayLayout: layout.Day(day, events, opts)}
		if view.IsTimeGrid() {
			if h, ok := cfg.BusinessHours.ForDay(day); ok {
				dv.Bands = layout.NonBusinessBands(h, grid)
			}
			if days.Same(day, now) {
				m := layout.NowLine(now, grid)
				dv.Now = &m
			}
		}
		if view == model.ViewMonth && len(events) > monthCellLimit {
			dv.More = tr.MoreEvents(len(events) - monthCellLimit)
		}
		resp.Days = append(resp.Days, dv)
	}
	return resp
}
