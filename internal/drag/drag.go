// Package drag implements the pointer state machine behind drag-to-move,
// drag-to-resize and click-to-create. While a gesture is active it computes
// live previews by re-running the layout pipeline with a hypothetical event
// and commits a single date change to the store on release.
//
// A Controller is owned by one caller and is not safe for concurrent use.
package drag

import (
	"errors"
	"fmt"
	"math"
	"time"

	"calgrid/internal/bizhours"
	"calgrid/internal/days"
	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
	"calgrid/internal/store"
)

var (
	ErrSessionActive    = errors.New("gesture already in progress")
	ErrNoSession        = errors.New("no gesture in progress")
	ErrNoTarget         = errors.New("pointer is not over a drop target")
	ErrDraggingDisabled = errors.New("dragging is disabled for this event")
	ErrResizeDisabled   = errors.New("resizing is disabled")
	ErrBlocked          = errors.New("placement is outside business hours")
	ErrMissingDates     = errors.New("event has no start or end date")
)

const (
	DefaultThrottle         = 16 * time.Millisecond
	DefaultMinEventDuration = 15 * time.Minute

	// deadZone is the pointer travel in pixels ignored between samples.
	deadZone = 2
)

// Translator supplies the localized strings the controller emits.
type Translator interface {
	NewEventTitle() string
	ResizeDelta(minutes int) string
}

type plainText struct{}

func (plainText) NewEventTitle() string { return "New Event" }

func (plainText) ResizeDelta(minutes int) string { return fmt.Sprintf("%+d min", minutes) }

// Config holds the widget options the controller depends on.
type Config struct {
	Grid   layout.Grid
	Slots  int
	View   model.ViewKind
	Mode   model.DisplayMode
	Tuning layout.Tuning

	AllowDragging bool
	AllowResize   bool

	BlockBusinessHours bool
	BusinessHours      bizhours.Rules

	MinEventDuration time.Duration
	ShowAllDayLane   bool
	CreateOnClick    bool

	// InsertCreated adds click-created events to the store in addition to
	// reporting them through OnCreated.
	InsertCreated bool

	Throttle   time.Duration
	Now        func() time.Time
	Translator Translator
}

// DateChange is the commit emitted when a drop or resize succeeds.
type DateChange struct {
	ID     string    `json:"id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"all_day"`
}

// Callbacks receive committed actions. Any of them may be nil.
type Callbacks struct {
	OnDateChange func(DateChange)
	OnCreated    func(model.Event)
	OnUpdated    func(model.Event)
	OnDayClick   func(time.Time)
}

type Phase int

const (
	Idle Phase = iota
	Dragging
	Resizing
)

func (p Phase) String() string {
	switch p {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Target is what the pointer is currently over during a drag.
type Target int

const (
	TargetNone Target = iota
	TargetGrid
	TargetAllDay
)

// Preview is the speculative placement shown while dragging.
type Preview struct {
	Day     string      `json:"day"`
	Target  Target      `json:"target"`
	Event   model.Event `json:"event"`
	Box     layout.Box  `json:"box"`
	Top     float64     `json:"top"`
	Blocked bool        `json:"blocked"`
}

type dragState struct {
	event      model.Event
	target     Target
	day        time.Time
	offsetY    float64
	hasOffset  bool
	top        float64
	blocked    bool
	lastSample time.Time
	preview    Preview
}

type Controller struct {
	store *store.Store
	cfg   Config
	cb    Callbacks

	phase  Phase
	drag   dragState
	resize resizeState
}

// New returns an idle controller operating on st.
func New(st *store.Store, cfg Config, cb Callbacks) *Controller {
	if cfg.Throttle < 0 {
		cfg.Throttle = 0
	}
	if cfg.MinEventDuration <= 0 {
		cfg.MinEventDuration = DefaultMinEventDuration
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Translator == nil {
		cfg.Translator = plainText{}
	}
	if cfg.Slots <= 0 {
		cfg.Slots = int(math.Max(1, math.Round(cfg.Grid.Window.Span())))
	}
	return &Controller{store: st, cfg: cfg, cb: cb}
}

func (c *Controller) Phase() Phase { return c.phase }

// Preview returns the current drag preview, if any.
func (c *Controller) Preview() (Preview, bool) {
	if c.phase != Dragging || c.drag.target == TargetNone {
		return Preview{}, false
	}
	return c.drag.preview, true
}

// CanDrag reports whether ev may be dragged. The per-event toggle inverts the
// global setting.
func (c *Controller) CanDrag(ev model.Event) bool {
	return c.cfg.AllowDragging != ev.DraggingToggle
}

// BeginDrag starts dragging the event with the given ID.
func (c *Controller) BeginDrag(id string) error {
	if c.phase != Idle {
		return ErrSessionActive
	}
	ev, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("begin drag %q: %w", id, store.ErrEventNotFound)
	}
	if !c.CanDrag(ev) {
		return fmt.Errorf("begin drag %q: %w", id, ErrDraggingDisabled)
	}
	if err := c.store.SetHidden(id, true); err != nil {
		return err
	}
	ev.Hidden = false
	c.store.SetDragged(ev)

	c.phase = Dragging
	c.drag = dragState{event: ev}
	appLog.Debug("drag: begin", "id", id)
	return nil
}

// DragOver samples the pointer over the time grid of day at offsetY pixels
// from the top of the day cell. Samples closer together than the throttle
// interval are dropped. changed is true only when the snapped slot, the day
// or the blocked flag moved.
func (c *Controller) DragOver(day time.Time, offsetY float64) (Preview, bool) {
	if c.phase != Dragging {
		return Preview{}, false
	}
	s := &c.drag
	now := c.cfg.Now()
	if !s.lastSample.IsZero() && now.Sub(s.lastSample) < c.cfg.Throttle {
		return s.preview, false
	}
	s.lastSample = now

	sameDay := s.hasOffset && days.Same(s.day, day)
	if sameDay && s.target == TargetGrid && math.Abs(offsetY-s.offsetY) < deadZone {
		return s.preview, false
	}

	top := c.cfg.Grid.SnapTop(offsetY, c.cfg.Slots)
	if !c.cfg.View.IsTimeGrid() {
		top = 0
	}
	hyp := c.hypothetical(day, top, TargetGrid)
	blocked := c.blocks(hyp)

	changed := s.target != TargetGrid || !sameDay || top != s.top || blocked != s.blocked
	s.target = TargetGrid
	s.day = day
	s.offsetY = offsetY
	s.hasOffset = true
	if !changed {
		return s.preview, false
	}
	s.top = top
	s.blocked = blocked
	s.preview = c.buildPreview(day, hyp, top, TargetGrid, blocked)
	return s.preview, true
}

// EnterAllDay moves the pointer onto the all-day lane of day. The timed
// preview is suppressed while the pointer stays there.
func (c *Controller) EnterAllDay(day time.Time) (Preview, bool) {
	if c.phase != Dragging || !c.cfg.ShowAllDayLane || !c.cfg.View.IsTimeGrid() {
		return Preview{}, false
	}
	s := &c.drag
	if s.target == TargetAllDay && days.Same(s.day, day) {
		return s.preview, false
	}
	s.target = TargetAllDay
	s.day = day
	s.blocked = false
	hyp := c.hypothetical(day, 0, TargetAllDay)
	s.preview = c.buildPreview(day, hyp, 0, TargetAllDay, false)
	return s.preview, true
}

// LeaveAllDay resumes timed tracking at the last known grid offset.
func (c *Controller) LeaveAllDay() (Preview, bool) {
	if c.phase != Dragging || c.drag.target != TargetAllDay {
		return Preview{}, false
	}
	s := &c.drag
	if !s.hasOffset {
		s.target = TargetNone
		s.preview = Preview{}
		return Preview{}, true
	}
	s.target = TargetGrid
	hyp := c.hypothetical(s.day, s.top, TargetGrid)
	s.blocked = c.blocks(hyp)
	s.preview = c.buildPreview(s.day, hyp, s.top, TargetGrid, s.blocked)
	return s.preview, true
}

// LeaveTarget clears the preview when the pointer leaves every drop target.
// The gesture itself stays active.
func (c *Controller) LeaveTarget() {
	if c.phase != Dragging {
		return
	}
	ev := c.drag.event
	c.drag = dragState{event: ev}
}

// Drop commits the drag at its last known target. A placement outside
// business hours aborts with ErrBlocked and leaves the event untouched.
func (c *Controller) Drop() (DateChange, error) {
	if c.phase != Dragging {
		return DateChange{}, ErrNoSession
	}
	s := c.drag
	if s.target == TargetNone {
		c.Cancel()
		return DateChange{}, ErrNoTarget
	}

	hyp := c.hypothetical(s.day, s.top, s.target)
	if c.blocks(hyp) {
		appLog.Debug("drag: drop blocked by business hours", "id", s.event.ID, "start", hyp.Start, "end", hyp.End)
		c.Cancel()
		return DateChange{}, fmt.Errorf("drop %q: %w", s.event.ID, ErrBlocked)
	}

	moved, err := c.store.ChangeDates(s.event.ID, hyp.Start, hyp.End, hyp.AllDay)
	if err != nil {
		c.Cancel()
		return DateChange{}, fmt.Errorf("drop %q: %w", s.event.ID, err)
	}
	c.reset()

	change := DateChange{ID: moved.ID, Start: moved.Start, End: moved.End, AllDay: moved.AllDay}
	appLog.Debug("drag: dropped", "id", change.ID, "start", change.Start, "end", change.End, "all_day", change.AllDay)
	if c.cb.OnDateChange != nil {
		c.cb.OnDateChange(change)
	}
	return change, nil
}

// Commit applies a placement computed outside the controller, for example by
// a remote drag surface. It enforces the same rules as Drop: per-event drag
// permission and, for timed placements, business hours.
func (c *Controller) Commit(change DateChange) (DateChange, error) {
	if c.phase != Idle {
		return DateChange{}, ErrSessionActive
	}
	ev, ok := c.store.Get(change.ID)
	if !ok {
		return DateChange{}, fmt.Errorf("commit %q: %w", change.ID, store.ErrEventNotFound)
	}
	if !c.CanDrag(ev) {
		return DateChange{}, fmt.Errorf("commit %q: %w", change.ID, ErrDraggingDisabled)
	}

	hyp := ev
	hyp.Start, hyp.End, hyp.AllDay = change.Start, change.End, change.AllDay
	if c.blocks(hyp) {
		appLog.Debug("drag: commit blocked by business hours", "id", ev.ID, "start", hyp.Start, "end", hyp.End)
		return DateChange{}, fmt.Errorf("commit %q: %w", ev.ID, ErrBlocked)
	}

	moved, err := c.store.ChangeDates(ev.ID, hyp.Start, hyp.End, hyp.AllDay)
	if err != nil {
		return DateChange{}, fmt.Errorf("commit %q: %w", ev.ID, err)
	}
	out := DateChange{ID: moved.ID, Start: moved.Start, End: moved.End, AllDay: moved.AllDay}
	if c.cb.OnDateChange != nil {
		c.cb.OnDateChange(out)
	}
	return out, nil
}

// Cancel abandons any gesture without changing event dates.
func (c *Controller) Cancel() {
	switch c.phase {
	case Dragging:
		id := c.drag.event.ID
		if err := c.store.SetHidden(id, false); err != nil && !errors.Is(err, store.ErrEventNotFound) {
			appLog.Warn("drag: unhide failed", "id", id, "err", err)
		}
		c.store.ClearDragged()
	case Resizing:
		// Resizing never touches the store before commit.
	default:
		return
	}
	c.reset()
}

func (c *Controller) reset() {
	c.phase = Idle
	c.drag = dragState{}
	c.resize = resizeState{}
}

// hypothetical returns the event as it would look if dropped on day at the
// snapped offset top over target.
func (c *Controller) hypothetical(day time.Time, top float64, target Target) model.Event {
	ev := c.drag.event
	ev.Hidden = false
	day = days.Start(day)

	switch {
	case c.cfg.View == model.ViewMonth:
		shift := days.Between(ev.Start.In(day.Location()), day)
		ev.Start = ev.Start.AddDate(0, 0, shift)
		ev.End = ev.End.AddDate(0, 0, shift)
	case target == TargetAllDay:
		ev.Start = day
		ev.End = days.EndOfDay(day)
		ev.AllDay = true
	case ev.AllDay:
		w := c.cfg.Grid.Window
		ev.Start = days.At(day, 0, int(math.Round(w.From*60)))
		ev.End = days.At(day, 0, int(math.Round(w.To*60)))
		ev.AllDay = false
	default:
		dur := ev.Duration()
		ev.Start = c.cfg.Grid.TimeAt(day, top)
		ev.End = ev.Start.Add(dur)
	}
	return ev
}

func (c *Controller) blocks(ev model.Event) bool {
	if !c.cfg.BlockBusinessHours || ev.AllDay {
		return false
	}
	return !c.cfg.BusinessHours.Fits(ev.Start, ev.End)
}

// buildPreview lays out day with hyp in place of the dragged event.
func (c *Controller) buildPreview(day time.Time, hyp model.Event, top float64, target Target, blocked bool) Preview {
	var evs []model.Event
	for _, ev := range c.store.EventsOn(day) {
		if ev.ID != hyp.ID {
			evs = append(evs, ev)
		}
	}
	evs = append(evs, hyp)

	out := layout.Day(day, evs, layout.Options{
		Grid:         c.cfg.Grid,
		View:         c.cfg.View,
		Mode:         c.cfg.Mode,
		Tuning:       c.cfg.Tuning,
		FullDuration: true,
	})
	p := Preview{Day: days.Key(day), Target: target, Event: hyp, Top: top, Blocked: blocked}
	if placed, ok := out.Find(hyp.ID); ok {
		p.Box = placed.Box
	}
	return p
}
