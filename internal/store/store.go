// Package store holds the in-memory event list indexed by every calendar day
// each event touches. All mutations go through the Store so readers never see
// an event under a stale day.
package store

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"calgrid/internal/days"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrInvalidEvent  = errors.New("invalid event")
)

// maxSpanDays caps how many day keys a single event may occupy.
const maxSpanDays = 3660

type ChangeKind string

const (
	ChangeLoaded  ChangeKind = "loaded"
	ChangeAdded   ChangeKind = "added"
	ChangeUpdated ChangeKind = "updated"
	ChangeRemoved ChangeKind = "removed"
	ChangeDates   ChangeKind = "dates"
	ChangeHidden  ChangeKind = "hidden"
	ChangeDragged ChangeKind = "dragged"
)

// Change describes one mutation delivered to observers.
type Change struct {
	Kind ChangeKind
	ID   string
}

// Observer receives changes after the store lock has been released.
type Observer func(Change)

// Store is safe for concurrent use.
type Store struct {
	mu  sync.RWMutex
	loc *time.Location

	events  map[string]model.Event
	buckets map[string]map[string]model.Event
	keysOf  map[string][]string

	dragged    model.Event
	hasDragged bool

	observers map[int]Observer
	nextObs   int
}

// New returns an empty store whose day keys are computed in loc.
func New(loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{
		loc:       loc,
		events:    make(map[string]model.Event),
		buckets:   make(map[string]map[string]model.Event),
		keysOf:    make(map[string][]string),
		observers: make(map[int]Observer),
	}
}

// Location returns the zone day keys are computed in.
func (s *Store) Location() *time.Location { return s.loc }

func validate(ev model.Event) error {
	if ev.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if !ev.HasDates() {
		return fmt.Errorf("%w: %s has no dates", ErrInvalidEvent, ev.ID)
	}
	return nil
}

// keysFor lists the day keys ev belongs under. Timed events are indexed on
// every day their half-open interval intersects, all-day events on every
// date from start through end. Zero-length events sit on their start day.
func (s *Store) keysFor(ev model.Event) []string {
	start := ev.Start.In(s.loc)
	end := ev.End.In(s.loc)

	var last time.Time
	switch {
	case ev.AllDay:
		last = days.Start(end)
	case end.After(start):
		last = days.Start(end.Add(-time.Nanosecond))
	default:
		last = days.Start(start)
	}
	if last.Before(days.Start(start)) {
		last = days.Start(start)
	}

	var keys []string
	for cur := days.Start(start); !cur.After(last); cur = cur.AddDate(0, 0, 1) {
		if len(keys) == maxSpanDays {
			appLog.Warn("store: event span truncated", "id", ev.ID, "days", maxSpanDays)
			break
		}
		keys = append(keys, days.Key(cur))
	}
	return keys
}

// insertLocked assumes any previous copy of ev was removed.
func (s *Store) insertLocked(ev model.Event) {
	keys := s.keysFor(ev)
	s.events[ev.ID] = ev
	s.keysOf[ev.ID] = keys
	for _, k := range keys {
		b, ok := s.buckets[k]
		if !ok {
			b = make(map[string]model.Event)
			s.buckets[k] = b
		}
		b[ev.ID] = ev
	}
}

func (s *Store) removeLocked(id string) (model.Event, bool) {
	ev, ok := s.events[id]
	if !ok {
		return model.Event{}, false
	}
	for _, k := range s.keysOf[id] {
		b := s.buckets[k]
		delete(b, id)
		if len(b) == 0 {
			delete(s.buckets, k)
		}
	}
	delete(s.keysOf, id)
	delete(s.events, id)
	return ev, true
}

func (s *Store) notify(changes ...Change) {
	s.mu.RLock()
	obs := make([]Observer, 0, len(s.observers))
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		obs = append(obs, s.observers[id])
	}
	s.mu.RUnlock()

	for _, c := range changes {
		for _, fn := range obs {
			fn(c)
		}
	}
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Observer) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Load replaces the whole event list. Invalid events are skipped and logged;
// the number of events stored is returned.
func (s *Store) Load(events []model.Event) int {
	s.mu.Lock()
	s.events = make(map[string]model.Event, len(events))
	s.buckets = make(map[string]map[string]model.Event)
	s.keysOf = make(map[string][]string, len(events))
	s.hasDragged = false
	s.dragged = model.Event{}
	for _, ev := range events {
		if err := validate(ev); err != nil {
			appLog.Warn("store: skipping event", "err", err)
			continue
		}
		s.removeLocked(ev.ID)
		s.insertLocked(ev)
	}
	n := len(s.events)
	s.mu.Unlock()

	appLog.Debug("store: loaded events", "count", n)
	s.notify(Change{Kind: ChangeLoaded})
	return n
}

// Add inserts ev, replacing any event with the same ID.
func (s *Store) Add(ev model.Event) error {
	if err := validate(ev); err != nil {
		return err
	}
	s.mu.Lock()
	_, existed := s.removeLocked(ev.ID)
	s.insertLocked(ev)
	s.mu.Unlock()

	kind := ChangeAdded
	if existed {
		kind = ChangeUpdated
	}
	s.notify(Change{Kind: kind, ID: ev.ID})
	return nil
}

// Update replaces an existing event.
func (s *Store) Update(ev model.Event) error {
	if err := validate(ev); err != nil {
		return err
	}
	s.mu.Lock()
	if _, ok := s.removeLocked(ev.ID); !ok {
		s.mu.Unlock()
		return fmt.Errorf("update %q: %w", ev.ID, ErrEventNotFound)
	}
	s.insertLocked(ev)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeUpdated, ID: ev.ID})
	return nil
}

// Remove deletes the event from every day it was indexed under.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	_, ok := s.removeLocked(id)
	if ok && s.hasDragged && s.dragged.ID == id {
		s.hasDragged = false
		s.dragged = model.Event{}
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("remove %q: %w", id, ErrEventNotFound)
	}
	s.notify(Change{Kind: ChangeRemoved, ID: id})
	return nil
}

// ChangeDates moves an event to new dates in one step: the event leaves all
// of its old days and is indexed under the new ones. The hidden flag and the
// dragged reference for this event are cleared.
func (s *Store) ChangeDates(id string, start, end time.Time, allDay bool) (model.Event, error) {
	s.mu.Lock()
	ev, ok := s.events[id]
	if !ok {
		s.mu.Unlock()
		return model.Event{}, fmt.Errorf("change dates of %q: %w", id, ErrEventNotFound)
	}
	ev.Start, ev.End, ev.AllDay, ev.Hidden = start, end, allDay, false
	if err := validate(ev); err != nil {
		s.mu.Unlock()
		return model.Event{}, err
	}
	s.removeLocked(id)
	s.insertLocked(ev)
	if s.hasDragged && s.dragged.ID == id {
		s.hasDragged = false
		s.dragged = model.Event{}
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeDates, ID: id})
	return ev, nil
}

// SetHidden toggles the transient dim flag of an event.
func (s *Store) SetHidden(id string, hidden bool) error {
	s.mu.Lock()
	ev, ok := s.events[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("hide %q: %w", id, ErrEventNotFound)
	}
	if ev.Hidden == hidden {
		s.mu.Unlock()
		return nil
	}
	ev.Hidden = hidden
	s.events[id] = ev
	for _, k := range s.keysOf[id] {
		s.buckets[k][id] = ev
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeHidden, ID: id})
	return nil
}

func (s *Store) Get(id string) (model.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	return ev, ok
}

// All returns every event ordered by start, then ID.
func (s *Store) All() []model.Event {
	s.mu.RLock()
	out := make([]model.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev)
	}
	s.mu.RUnlock()
	sortEvents(out)
	return out
}

// EventsOn returns the events indexed under day's key, ordered by start.
func (s *Store) EventsOn(day time.Time) []model.Event {
	return s.EventsOnKey(days.Key(day.In(s.loc)))
}

func (s *Store) EventsOnKey(key string) []model.Event {
	s.mu.RLock()
	b := s.buckets[key]
	out := make([]model.Event, 0, len(b))
	for _, ev := range b {
		out = append(out, ev)
	}
	s.mu.RUnlock()
	sortEvents(out)
	return out
}

// VisibleOn narrows EventsOn to what a time-grid column shows: all-day events
// plus timed events intersecting [from, to) hours of that day.
func (s *Store) VisibleOn(day time.Time, from, to float64) []model.Event {
	day = days.Start(day.In(s.loc))
	winStart := days.At(day, 0, int(math.Round(from*60)))
	winEnd := days.At(day, 0, int(math.Round(to*60)))

	all := s.EventsOn(day)
	out := all[:0]
	for _, ev := range all {
		if ev.AllDay || (ev.Start.Before(winEnd) && winStart.Before(ev.End)) {
			out = append(out, ev)
		}
	}
	return out
}

// Keys returns every non-empty day key in ascending order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.buckets))
	for k := range s.buckets {
		out = append(out, k)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// KeysOf returns the day keys the event is indexed under.
func (s *Store) KeysOf(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.keysOf[id]...)
}

// SetDragged records ev as the event being dragged.
func (s *Store) SetDragged(ev model.Event) {
	s.mu.Lock()
	s.dragged, s.hasDragged = ev, true
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeDragged, ID: ev.ID})
}

func (s *Store) Dragged() (model.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dragged, s.hasDragged
}

func (s *Store) ClearDragged() {
	s.mu.Lock()
	if !s.hasDragged {
		s.mu.Unlock()
		return
	}
	s.dragged, s.hasDragged = model.Event{}, false
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeDragged})
}

func sortEvents(evs []model.Event) {
	sort.Slice(evs, func(i, j int) bool {
		if !evs[i].Start.Equal(evs[j].Start) {
			return evs[i].Start.Before(evs[j].Start)
		}
		return evs[i].ID < evs[j].ID
	})
}
