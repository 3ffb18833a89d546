package drag

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"calgrid/internal/bizhours"
	"calgrid/internal/layout"
	"calgrid/internal/model"
	"calgrid/internal/store"
)

var (
	monday  = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	tuesday = monday.AddDate(0, 0, 1)
)

func at(day time.Time, hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// offset returns the pixel offset of hour:minute on testGrid.
func offset(hour, minute int) float64 {
	return 40 + (float64(hour)+float64(minute)/60-9)*100
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func (c *clock) advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	store   *store.Store
	ctl     *Controller
	clock   *clock
	changes []DateChange
	created []model.Event
}

func newFixture(t *testing.T, mutate func(*Config), events ...model.Event) *fixture {
	t.Helper()
	f := &fixture{store: store.New(time.UTC), clock: &clock{now: monday}}
	f.store.Load(events)

	cfg := Config{
		Grid: layout.Grid{
			Window:       layout.Window{From: 9, To: 22},
			CellHeight:   1340,
			HeaderMargin: 40,
			Inset:        layout.DefaultInset,
			AllDayHeight: layout.DefaultAllDayHeight,
		},
		Slots:          26,
		View:           model.ViewWeek,
		Mode:           model.SideBySide,
		Tuning:         layout.DefaultTuning(),
		AllowDragging:  true,
		AllowResize:    true,
		ShowAllDayLane: true,
		CreateOnClick:  true,
		Throttle:       DefaultThrottle,
		Now:            f.clock.Now,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f.ctl = New(f.store, cfg, Callbacks{
		OnDateChange: func(c DateChange) { f.changes = append(f.changes, c) },
		OnCreated:    func(ev model.Event) { f.created = append(f.created, ev) },
	})
	return f
}

func sameChange(a, b DateChange) bool {
	return a.ID == b.ID && a.Start.Equal(b.Start) && a.End.Equal(b.End) && a.AllDay == b.AllDay
}

func meeting() model.Event {
	return model.Event{ID: "m", Title: "Meeting", Start: at(monday, 14, 0), End: at(monday, 15, 0)}
}

func TestTimedDropKeepsDuration(t *testing.T) {
	f := newFixture(t, nil, meeting())

	if err := f.ctl.BeginDrag("m"); err != nil {
		t.Fatal(err)
	}
	if ev, _ := f.store.Get("m"); !ev.Hidden {
		t.Fatalf("source event must be hidden while dragging")
	}
	p, changed := f.ctl.DragOver(tuesday, offset(16, 0)+10)
	if !changed || p.Top != offset(16, 0) || p.Blocked {
		t.Fatalf("unexpected preview %+v changed=%v", p, changed)
	}
	if p.Box.Height <= 0 {
		t.Fatalf("preview box must be laid out: %+v", p.Box)
	}

	change, err := f.ctl.Drop()
	if err != nil {
		t.Fatal(err)
	}
	want := DateChange{ID: "m", Start: at(tuesday, 16, 0), End: at(tuesday, 17, 0)}
	if !sameChange(change, want) {
		t.Fatalf("drop = %+v; want %+v", change, want)
	}
	if len(f.changes) != 1 || !sameChange(f.changes[0], want) {
		t.Fatalf("callback got %+v", f.changes)
	}
	ev, _ := f.store.Get("m")
	if ev.Hidden || !ev.Start.Equal(want.Start) {
		t.Fatalf("store not updated: %+v", ev)
	}
	if _, ok := f.store.Dragged(); ok || f.ctl.Phase() != Idle {
		t.Fatalf("session must be cleared after drop")
	}
}

func TestMonthDropKeepsTimeOfDay(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.View = model.ViewMonth }, meeting())

	if err := f.ctl.BeginDrag("m"); err != nil {
		t.Fatal(err)
	}
	f.ctl.DragOver(tuesday, offset(16, 0))
	change, err := f.ctl.Drop()
	if err != nil {
		t.Fatal(err)
	}
	if !change.Start.Equal(at(tuesday, 14, 0)) || !change.End.Equal(at(tuesday, 15, 0)) || change.AllDay {
		t.Fatalf("month drop = %+v; want Tue 14:00-15:00", change)
	}
}

func TestDropOnAllDayLane(t *testing.T) {
	f := newFixture(t, nil, meeting())
	_ = f.ctl.BeginDrag("m")
	f.ctl.DragOver(monday, offset(10, 0))
	p, changed := f.ctl.EnterAllDay(tuesday)
	if !changed || p.Target != TargetAllDay || !p.Event.AllDay {
		t.Fatalf("unexpected all-day preview %+v", p)
	}

	change, err := f.ctl.Drop()
	if err != nil {
		t.Fatal(err)
	}
	if !change.AllDay || !change.Start.Equal(tuesday) || change.End.Hour() != 23 || change.End.Nanosecond() != 999_000_000 {
		t.Fatalf("all-day drop = %+v", change)
	}
}

func TestLeaveAllDayResumesGrid(t *testing.T) {
	f := newFixture(t, nil, meeting())
	_ = f.ctl.BeginDrag("m")
	f.ctl.DragOver(tuesday, offset(11, 0))
	f.ctl.EnterAllDay(tuesday)
	p, changed := f.ctl.LeaveAllDay()
	if !changed || p.Target != TargetGrid || p.Event.AllDay {
		t.Fatalf("expected timed preview after leaving the lane; got %+v", p)
	}
	change, err := f.ctl.Drop()
	if err != nil || !change.Start.Equal(at(tuesday, 11, 0)) {
		t.Fatalf("drop = %+v, %v", change, err)
	}
}

func TestAllDayDroppedOnGridUsesWindow(t *testing.T) {
	allDay := model.Event{ID: "a", AllDay: true, Start: monday, End: at(monday, 23, 59)}
	f := newFixture(t, nil, allDay)
	_ = f.ctl.BeginDrag("a")
	f.ctl.DragOver(tuesday, offset(12, 0))
	change, err := f.ctl.Drop()
	if err != nil {
		t.Fatal(err)
	}
	if change.AllDay || !change.Start.Equal(at(tuesday, 9, 0)) || !change.End.Equal(at(tuesday, 22, 0)) {
		t.Fatalf("conversion = %+v; want Tue 09:00-22:00 timed", change)
	}
}

func TestBusinessHoursBlockDrop(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.BlockBusinessHours = true
		c.BusinessHours = bizhours.Rules{{Start: 9, End: 17}}
	}, meeting())
	before := f.store.KeysOf("m")

	_ = f.ctl.BeginDrag("m")
	p, _ := f.ctl.DragOver(monday, offset(16, 30))
	if !p.Blocked {
		t.Fatalf("preview must be marked blocked: %+v", p)
	}

	_, err := f.ctl.Drop()
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked; got %v", err)
	}
	ev, _ := f.store.Get("m")
	if !ev.Start.Equal(at(monday, 14, 0)) || ev.Hidden {
		t.Fatalf("blocked drop must leave the event unchanged: %+v", ev)
	}
	if _, ok := f.store.Dragged(); ok || f.ctl.Phase() != Idle {
		t.Fatalf("blocked drop must clear the drag state")
	}
	if !reflect.DeepEqual(before, f.store.KeysOf("m")) || len(f.changes) != 0 {
		t.Fatalf("blocked drop must not commit")
	}
}

func TestDragGatingIsExclusiveOr(t *testing.T) {
	cases := []struct {
		global, toggle, want bool
	}{
		{true, false, true},
		{true, true, false},
		{false, true, true},
		{false, false, false},
	}
	for _, tc := range cases {
		ev := meeting()
		ev.DraggingToggle = tc.toggle
		f := newFixture(t, func(c *Config) { c.AllowDragging = tc.global }, ev)
		err := f.ctl.BeginDrag("m")
		if got := err == nil; got != tc.want {
			t.Fatalf("global=%v toggle=%v: allowed=%v; want %v (err=%v)", tc.global, tc.toggle, got, tc.want, err)
		}
		if !tc.want && !errors.Is(err, ErrDraggingDisabled) {
			t.Fatalf("expected ErrDraggingDisabled; got %v", err)
		}
	}
}

func TestDragOverThrottleAndDeadZone(t *testing.T) {
	f := newFixture(t, nil, meeting())
	_ = f.ctl.BeginDrag("m")

	if _, changed := f.ctl.DragOver(monday, offset(10, 0)); !changed {
		t.Fatalf("first sample must change state")
	}
	f.clock.advance(5 * time.Millisecond)
	if _, changed := f.ctl.DragOver(monday, offset(12, 0)); changed {
		t.Fatalf("sample within throttle interval must be dropped")
	}
	f.clock.advance(20 * time.Millisecond)
	if _, changed := f.ctl.DragOver(monday, offset(10, 0)+1); changed {
		t.Fatalf("pointer jitter must be ignored")
	}
	f.clock.advance(20 * time.Millisecond)
	if _, changed := f.ctl.DragOver(monday, offset(10, 0)+20); changed {
		t.Fatalf("movement inside the same slot must not change state")
	}
	f.clock.advance(20 * time.Millisecond)
	p, changed := f.ctl.DragOver(monday, offset(12, 0))
	if !changed || p.Top != offset(12, 0) {
		t.Fatalf("new slot must change state; got %+v", p)
	}
}

func TestCancelRestoresState(t *testing.T) {
	f := newFixture(t, nil, meeting())
	before := f.store.KeysOf("m")
	_ = f.ctl.BeginDrag("m")
	f.ctl.DragOver(tuesday, offset(18, 0))
	f.ctl.Cancel()

	ev, _ := f.store.Get("m")
	if ev.Hidden || !ev.Start.Equal(at(monday, 14, 0)) {
		t.Fatalf("cancel must not move the event: %+v", ev)
	}
	if _, ok := f.store.Dragged(); ok || f.ctl.Phase() != Idle {
		t.Fatalf("cancel must reset the session")
	}
	if !reflect.DeepEqual(before, f.store.KeysOf("m")) {
		t.Fatalf("cancel changed buckets")
	}
	if _, err := f.ctl.Drop(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("drop without session: %v", err)
	}
}

func TestDropAfterLeavingTargetCancels(t *testing.T) {
	f := newFixture(t, nil, meeting())
	_ = f.ctl.BeginDrag("m")
	f.ctl.DragOver(tuesday, offset(18, 0))
	f.ctl.LeaveTarget()
	if _, ok := f.ctl.Preview(); ok {
		t.Fatalf("preview must clear when leaving the target")
	}
	if _, err := f.ctl.Drop(); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("expected ErrNoTarget; got %v", err)
	}
	if ev, _ := f.store.Get("m"); ev.Hidden || !ev.Start.Equal(at(monday, 14, 0)) {
		t.Fatalf("event must be untouched: %+v", ev)
	}
}

func TestSingleSession(t *testing.T) {
	f := newFixture(t, nil, meeting(), model.Event{ID: "n", Start: at(monday, 9, 0), End: at(monday, 10, 0)})
	_ = f.ctl.BeginDrag("m")
	if err := f.ctl.BeginDrag("n"); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive; got %v", err)
	}
	if err := f.ctl.BeginResize("n", 100, 98); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive; got %v", err)
	}
}

func TestMoveAndMoveBack(t *testing.T) {
	f := newFixture(t, nil, meeting())
	before := f.store.KeysOf("m")

	_ = f.ctl.BeginDrag("m")
	f.ctl.DragOver(tuesday, offset(16, 0))
	if _, err := f.ctl.Drop(); err != nil {
		t.Fatal(err)
	}
	f.clock.advance(time.Second)
	_ = f.ctl.BeginDrag("m")
	f.ctl.DragOver(monday, offset(14, 0))
	if _, err := f.ctl.Drop(); err != nil {
		t.Fatal(err)
	}
	if after := f.store.KeysOf("m"); !reflect.DeepEqual(before, after) {
		t.Fatalf("keys %v; want %v", after, before)
	}
	if ev, _ := f.store.Get("m"); !ev.Start.Equal(at(monday, 14, 0)) || !ev.End.Equal(at(monday, 15, 0)) {
		t.Fatalf("event not restored: %+v", ev)
	}
}

func TestResizeClampsToMinimumDuration(t *testing.T) {
	ev := model.Event{ID: "r", Start: at(monday, 10, 0), End: at(monday, 11, 0)}
	f := newFixture(t, func(c *Config) { c.MinEventDuration = 15 * time.Minute }, ev)

	if err := f.ctl.BeginResize("r", offset(11, 0), 98); err != nil {
		t.Fatal(err)
	}
	live, err := f.ctl.ResizeMove(offset(9, 0))
	if err != nil {
		t.Fatal(err)
	}
	if !live.End.Equal(at(monday, 10, 15)) {
		t.Fatalf("hypothetical end = %s; want 10:15", live.End.Format("15:04"))
	}
	if live.DeltaMinutes != -45 || live.Label != "-45 min" {
		t.Fatalf("unexpected delta %d %q", live.DeltaMinutes, live.Label)
	}

	change, ok, err := f.ctl.EndResize()
	if err != nil || !ok {
		t.Fatalf("expected commit; ok=%v err=%v", ok, err)
	}
	if !change.End.Equal(at(monday, 10, 15)) || !change.Start.Equal(at(monday, 10, 0)) {
		t.Fatalf("committed %+v", change)
	}
}

func TestResizeHandleGeometry(t *testing.T) {
	ev := model.Event{ID: "r", Start: at(monday, 10, 0), End: at(monday, 11, 0)}
	f := newFixture(t, nil, ev)
	_ = f.ctl.BeginResize("r", 240, 98)

	live, _ := f.ctl.ResizeMove(290)
	if live.HandleHeight != 148 || live.HandleTop != 94 {
		t.Fatalf("extending: %+v", live)
	}
	if !live.End.Equal(at(monday, 11, 30)) || live.Label != "+30 min" {
		t.Fatalf("extending end: %+v", live)
	}
	live, _ = f.ctl.ResizeMove(210)
	if live.HandleHeight != 30 || live.HandleTop != 68 {
		t.Fatalf("shrinking: %+v", live)
	}
	f.ctl.Cancel()
	if got, _ := f.store.Get("r"); !got.End.Equal(at(monday, 11, 0)) {
		t.Fatalf("cancelled resize must not commit")
	}
}

func TestResizeWithoutMoveDoesNotCommit(t *testing.T) {
	ev := model.Event{ID: "r", Start: at(monday, 10, 0), End: at(monday, 11, 0)}
	f := newFixture(t, nil, ev)
	_ = f.ctl.BeginResize("r", 240, 98)
	_, ok, err := f.ctl.EndResize()
	if err != nil || ok || len(f.changes) != 0 {
		t.Fatalf("expected no commit; ok=%v err=%v changes=%v", ok, err, f.changes)
	}
	if _, _, err := f.ctl.EndResize(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("second end must report ErrNoSession; got %v", err)
	}
}

func TestResizeDisabled(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.AllowResize = false }, meeting())
	if err := f.ctl.BeginResize("m", 0, 98); !errors.Is(err, ErrResizeDisabled) {
		t.Fatalf("expected ErrResizeDisabled; got %v", err)
	}
}

func TestClickCreatesEvent(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.InsertCreated = true })
	ev, ok := f.ctl.Click(tuesday, offset(16, 30))
	if !ok {
		t.Fatalf("expected event creation")
	}
	if !strings.HasPrefix(ev.ID, "event-") || ev.Title != "New Event" {
		t.Fatalf("unexpected created event %+v", ev)
	}
	if !ev.Start.Equal(at(tuesday, 16, 0)) || !ev.End.Equal(at(tuesday, 17, 0)) || ev.AllDay {
		t.Fatalf("expected one-hour block at 16:00; got %+v", ev)
	}
	if _, found := f.store.Get(ev.ID); !found || len(f.created) != 1 {
		t.Fatalf("created event must be inserted and reported")
	}

	month := newFixture(t, func(c *Config) { c.View = model.ViewMonth })
	ev, ok = month.ctl.Click(tuesday, 10)
	if !ok || !ev.AllDay || !ev.Start.Equal(tuesday) {
		t.Fatalf("month click must create an all-day event; got %+v", ev)
	}
	if _, found := month.store.Get(ev.ID); found {
		t.Fatalf("created event must not be inserted unless asked")
	}
}

func TestUpdateReplacesEvent(t *testing.T) {
	var updated []model.Event
	st := store.New(time.UTC)
	st.Load([]model.Event{meeting()})
	ctl := New(st, Config{}, Callbacks{OnUpdated: func(ev model.Event) { updated = append(updated, ev) }})

	ev := meeting()
	ev.Title = "Renamed"
	if err := ctl.Update(ev); err != nil {
		t.Fatal(err)
	}
	if got, _ := st.Get("m"); got.Title != "Renamed" || len(updated) != 1 {
		t.Fatalf("update not applied")
	}
	missing := model.Event{ID: "nope", Start: monday, End: tuesday}
	if err := ctl.Update(missing); !errors.Is(err, store.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound; got %v", err)
	}
}

func TestResizeIgnoresPointerAboveCell(t *testing.T) {
	ev := model.Event{ID: "r", Start: at(monday, 10, 0), End: at(monday, 11, 0)}
	f := newFixture(t, nil, ev)
	_ = f.ctl.BeginResize("r", 240, 98)

	if live, _ := f.ctl.ResizeMove(-5); live.Moved || !live.End.Equal(at(monday, 11, 0)) {
		t.Fatalf("pointer above the cell must not move the end: %+v", live)
	}
	before, _ := f.ctl.ResizeMove(290)
	after, _ := f.ctl.ResizeMove(-5)
	if !after.End.Equal(before.End) || after.DeltaMinutes != 30 || after.Label != "+30 min" {
		t.Fatalf("pointer above the cell changed the resize: %+v", after)
	}
	if after.HandleHeight != before.HandleHeight || after.HandleTop != before.HandleTop {
		t.Fatalf("handle moved: %+v", after)
	}

	change, ok, err := f.ctl.EndResize()
	if err != nil || !ok || !change.End.Equal(at(monday, 11, 30)) {
		t.Fatalf("expected commit at 11:30; change=%+v ok=%v err=%v", change, ok, err)
	}
}

func TestCommitAppliesGating(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.BlockBusinessHours = true
		c.BusinessHours = bizhours.Rules{{Start: 9, End: 17}}
	}, meeting())

	_, err := f.ctl.Commit(DateChange{ID: "m", Start: at(monday, 16, 30), End: at(monday, 17, 30)})
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked; got %v", err)
	}
	if ev, _ := f.store.Get("m"); !ev.Start.Equal(at(monday, 14, 0)) || len(f.changes) != 0 {
		t.Fatalf("blocked commit changed the store: %+v", ev)
	}

	want := DateChange{ID: "m", Start: at(tuesday, 9, 0), End: at(tuesday, 10, 0)}
	got, err := f.ctl.Commit(want)
	if err != nil || !sameChange(got, want) {
		t.Fatalf("commit = %+v, %v", got, err)
	}
	if len(f.changes) != 1 || !sameChange(f.changes[0], want) {
		t.Fatalf("OnDateChange not called once: %v", f.changes)
	}

	// all-day placements are never blocked
	allDay := DateChange{ID: "m", Start: tuesday, End: at(tuesday, 23, 59), AllDay: true}
	if _, err := f.ctl.Commit(allDay); err != nil {
		t.Fatalf("all-day commit: %v", err)
	}

	if _, err := f.ctl.Commit(DateChange{ID: "nope", Start: monday, End: tuesday}); !errors.Is(err, store.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound; got %v", err)
	}
}

func TestCommitRespectsDragToggle(t *testing.T) {
	ev := meeting()
	ev.DraggingToggle = true
	f := newFixture(t, nil, ev)

	_, err := f.ctl.Commit(DateChange{ID: "m", Start: at(monday, 10, 0), End: at(monday, 11, 0)})
	if !errors.Is(err, ErrDraggingDisabled) {
		t.Fatalf("expected ErrDraggingDisabled; got %v", err)
	}

	g := newFixture(t, nil, meeting())
	_ = g.ctl.BeginDrag("m")
	if _, err := g.ctl.Commit(DateChange{ID: "m", Start: at(monday, 10, 0), End: at(monday, 11, 0)}); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive; got %v", err)
	}
}
