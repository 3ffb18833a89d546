package drag

import (
	"fmt"
	"math"
	"time"

	"calgrid/internal/days"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
	"calgrid/internal/store"
)

// handleHeight is the resting height of the resize handle in pixels.
const handleHeight = 4

// Resize is the live state of a resize gesture.
type Resize struct {
	ID           string    `json:"id"`
	HandleTop    float64   `json:"handle_top"`
	HandleHeight float64   `json:"handle_height"`
	End          time.Time `json:"end"`
	DeltaMinutes int       `json:"delta_minutes"`
	Label        string    `json:"label"`
	Moved        bool      `json:"moved"`
}

type resizeState struct {
	event       model.Event
	startY      float64
	startHeight float64
	live        Resize
}

// BeginResize starts a resize of the event's end. pointerY is the pointer
// offset within the day cell and startHeight the rendered event height.
func (c *Controller) BeginResize(id string, pointerY, startHeight float64) error {
	if c.phase != Idle {
		return ErrSessionActive
	}
	if !c.cfg.AllowResize {
		return ErrResizeDisabled
	}
	ev, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("begin resize %q: %w", id, store.ErrEventNotFound)
	}
	if !ev.HasDates() {
		appLog.Warn("drag: cannot resize event without dates", "id", id)
		return fmt.Errorf("begin resize %q: %w", id, ErrMissingDates)
	}

	c.phase = Resizing
	c.resize = resizeState{
		event:       ev,
		startY:      pointerY,
		startHeight: startHeight,
		live: Resize{
			ID:           id,
			HandleHeight: handleHeight,
			End:          ev.End,
		},
	}
	return nil
}

// ResizeMove maps the pointer to a hypothetical end time. An end before the
// start is replaced by start plus the minimum event duration. Pointer
// positions above the day cell are ignored.
func (c *Controller) ResizeMove(pointerY float64) (Resize, error) {
	if c.phase != Resizing {
		return Resize{}, ErrNoSession
	}
	r := &c.resize
	ev := r.event

	// Above the day cell nothing changes, not even the hypothetical end.
	if pointerY < 0 {
		return r.live, nil
	}

	endDay := ev.End
	if ev.End.After(ev.Start) {
		endDay = ev.End.Add(-time.Nanosecond)
	}
	end := c.cfg.Grid.TimeAt(days.Start(endDay), pointerY)
	if end.Before(ev.Start) {
		end = ev.Start.Add(c.cfg.MinEventDuration)
	}
	r.live.End = end
	r.live.Moved = true
	r.live.DeltaMinutes = int(math.Round(end.Sub(ev.End).Minutes()))
	r.live.Label = c.cfg.Translator.ResizeDelta(r.live.DeltaMinutes)

	deltaY := pointerY - r.startY
	if deltaY < 0 {
		h := math.Max(math.Abs(deltaY), 1)
		r.live.HandleHeight = h
		r.live.HandleTop = r.startHeight - h
	} else {
		r.live.HandleHeight = math.Max(r.startHeight+deltaY, 1)
		r.live.HandleTop = r.startHeight - handleHeight
	}
	return r.live, nil
}

// EndResize commits the last computed end. A gesture that never moved ends
// without a commit and reports ok=false.
func (c *Controller) EndResize() (DateChange, bool, error) {
	if c.phase != Resizing {
		return DateChange{}, false, ErrNoSession
	}
	r := c.resize
	c.reset()
	if !r.live.Moved {
		return DateChange{}, false, nil
	}

	moved, err := c.store.ChangeDates(r.event.ID, r.event.Start, r.live.End, r.event.AllDay)
	if err != nil {
		return DateChange{}, false, fmt.Errorf("resize %q: %w", r.event.ID, err)
	}
	change := DateChange{ID: moved.ID, Start: moved.Start, End: moved.End, AllDay: moved.AllDay}
	appLog.Debug("drag: resized", "id", change.ID, "end", change.End, "delta_minutes", r.live.DeltaMinutes)
	if c.cb.OnDateChange != nil {
		c.cb.OnDateChange(change)
	}
	return change, true, nil
}
