package drag

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"calgrid/internal/days"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// NewEventID returns a fresh identifier for a click-created event.
func NewEventID() string {
	return "event-" + uuid.NewString()
}

// Click handles a click on the empty area of day at offsetY. When creation on
// click is enabled it builds a new event: a one-hour block starting at the
// clicked hour in time-grid views, an all-day event otherwise. OnDayClick
// always receives the exact clicked time.
func (c *Controller) Click(day time.Time, offsetY float64) (model.Event, bool) {
	if c.phase != Idle {
		return model.Event{}, false
	}
	exact := c.cfg.Grid.TimeAt(days.Start(day), offsetY)

	var created model.Event
	ok := false
	if c.cfg.CreateOnClick && c.cb.OnCreated != nil {
		created = model.Event{
			ID:    NewEventID(),
			Title: c.cfg.Translator.NewEventTitle(),
		}
		if c.cfg.View.IsTimeGrid() {
			created.Start = days.At(exact, exact.Hour(), 0)
			created.End = created.Start.Add(time.Hour)
		} else {
			created.Start = days.Start(day)
			created.End = days.EndOfDay(day)
			created.AllDay = true
		}

		if c.cfg.InsertCreated {
			if err := c.store.Add(created); err != nil {
				appLog.Warn("drag: insert created event", "id", created.ID, "err", err)
			}
		}
		c.cb.OnCreated(created)
		ok = true
	}

	if c.cb.OnDayClick != nil {
		c.cb.OnDayClick(exact)
	}
	return created, ok
}

// Update replaces an event in the store and reports it through OnUpdated.
func (c *Controller) Update(ev model.Event) error {
	if err := c.store.Update(ev); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if c.cb.OnUpdated != nil {
		c.cb.OnUpdated(ev)
	}
	return nil
}
