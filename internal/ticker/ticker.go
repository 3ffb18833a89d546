// Package ticker runs periodic jobs on cron schedules. The serve command
// uses it to move the current-time line and to re-import ICS feeds.
package ticker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate reports whether spec is a five-field cron expression or a
// descriptor such as "@every 30s".
func Validate(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Scheduler wraps a cron runner whose jobs receive the firing time in loc.
type Scheduler struct {
	cron *cron.Cron
	loc  *time.Location
	now  func() time.Time

	mu   sync.Mutex
	jobs []func()
}

func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron: cron.New(cron.WithParser(parser), cron.WithLocation(loc)),
		loc:  loc,
		now:  time.Now,
	}
}

// Add registers fn under spec. Panics inside fn are recovered and logged.
func (s *Scheduler) Add(name, spec string, fn func(now time.Time)) error {
	if err := Validate(spec); err != nil {
		return err
	}
	run := func() {
		defer func() {
			if r := recover(); r != nil {
				appLog.Error("ticker job panicked", fmt.Errorf("%v", r), "job", name)
			}
		}()
		fn(s.now().In(s.loc))
	}
	if _, err := s.cron.AddFunc(spec, run); err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	s.mu.Lock()
	s.jobs = append(s.jobs, run)
	s.mu.Unlock()
	appLog.Debug("ticker job added", "job", name, "spec", spec)
	return nil
}

// RunNow fires every job once, synchronously.
func (s *Scheduler) RunNow() {
	s.mu.Lock()
	jobs := append([]func(){}, s.jobs...)
	s.mu.Unlock()
	for _, run := range jobs {
		run()
	}
}

// Start runs the scheduler until ctx is done, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	appLog.Info("ticker started", "tz", s.loc.String(), "jobs", len(s.cron.Entries()))
	<-ctx.Done()
	s.Stop()
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	appLog.Info("ticker stopped")
}

// NowLine holds the last computed current-time marker for one grid.
type NowLine struct {
	mu     sync.RWMutex
	grid   layout.Grid
	at     time.Time
	marker layout.NowMarker
}

func NewNowLine(g layout.Grid) *NowLine {
	return &NowLine{grid: g}
}

// Update recomputes the marker for now.
func (n *NowLine) Update(now time.Time) layout.NowMarker {
	m := layout.NowLine(now, n.grid)
	n.mu.Lock()
	n.at, n.marker = now, m
	n.mu.Unlock()
	return m
}

// Current returns the last marker and the time it was computed for.
func (n *NowLine) Current() (layout.NowMarker, time.Time) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.marker, n.at
}
