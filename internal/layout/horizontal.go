package layout

import (
	"math"
	"sort"
	"time"

	"calgrid/internal/model"
)

// Tuning holds the visual constants of the horizontal policies.
type Tuning struct {
	// ColumnMargin is the gap between side-by-side columns, in percent.
	ColumnMargin float64

	// StartTolerance groups cascade members whose starts are this close.
	StartTolerance time.Duration

	StepPercent     float64
	WidthDecay      float64
	PixelStep       float64
	MinWidthPercent float64
}

// DefaultTuning returns the stock widget look.
func DefaultTuning() Tuning {
	return Tuning{
		ColumnMargin:    1,
		StartTolerance:  60 * time.Second,
		StepPercent:     15,
		WidthDecay:      0.85,
		PixelStep:       8,
		MinWidthPercent: 20,
	}
}

// Horizontal is the horizontal part of a Box.
type Horizontal struct {
	LeftPercent  float64
	WidthPercent float64
	LeftPixels   float64
	ZIndex       int
}

var fullWidth = Horizontal{WidthPercent: 100, ZIndex: 1}

// Arrange applies the horizontal policy selected by mode to one cluster.
// Results are keyed by event ID.
func Arrange(cluster []model.Event, mode model.DisplayMode, t Tuning) map[string]Horizontal {
	if mode == model.Overlapping {
		return Cascade(cluster, t)
	}
	return SideBySide(cluster, t)
}

// MaxConcurrent returns the largest number of events active at one instant.
// At equal instants starts are counted before ends.
func MaxConcurrent(events []model.Event) int {
	type edge struct {
		at    time.Time
		delta int
	}
	edges := make([]edge, 0, 2*len(events))
	for _, ev := range events {
		edges = append(edges, edge{ev.Start, 1}, edge{ev.End, -1})
	}
	sort.Slice(edges, func(i, j int) bool {
		if !edges[i].at.Equal(edges[j].at) {
			return edges[i].at.Before(edges[j].at)
		}
		return edges[i].delta > edges[j].delta
	})

	cur, peak := 0, 0
	for _, e := range edges {
		cur += e.delta
		if cur > peak {
			peak = cur
		}
	}
	return peak
}

func byStartThenShorter(evs []model.Event) {
	sort.SliceStable(evs, func(i, j int) bool {
		a, b := evs[i], evs[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Duration() != b.Duration() {
			return a.Duration() < b.Duration()
		}
		return a.ID < b.ID
	})
}

// SideBySide places the cluster's events in equal columns. The column of an
// event is its index among the events overlapping it, ordered by start and
// then by duration.
//
// Each event is ranked among its own peers only, so two events that never
// overlap each other can land in the same column next to a long event: with
// A 9-12, B 9-10 and C 10-11, A and C both take column 1 and C is drawn over
// A from 10 to 11. Renderers rely on this placement, so it is kept.
func SideBySide(cluster []model.Event, t Tuning) map[string]Horizontal {
	out := make(map[string]Horizontal, len(cluster))
	if len(cluster) == 0 {
		return out
	}
	if len(cluster) == 1 {
		out[cluster[0].ID] = fullWidth
		return out
	}

	k := MaxConcurrent(cluster)
	if k < 1 {
		k = 1
	}
	width := (100 - t.ColumnMargin*float64(k-1)) / float64(k)

	for _, ev := range cluster {
		peers := make([]model.Event, 0, len(cluster))
		for _, other := range cluster {
			if other.ID == ev.ID || Overlaps(ev, other) {
				peers = append(peers, other)
			}
		}
		byStartThenShorter(peers)

		col := 0
		for i, p := range peers {
			if p.ID == ev.ID {
				col = i
				break
			}
		}
		if col > k-1 {
			col = k - 1
		}
		out[ev.ID] = Horizontal{
			LeftPercent:  float64(col)*width + float64(col)*t.ColumnMargin,
			WidthPercent: width,
			ZIndex:       col + 1,
		}
	}
	return out
}

// cascadeOrder returns the cluster in rank order together with the bounds of
// each simultaneous-start subgroup.
func cascadeOrder(cluster []model.Event, tol time.Duration) ([]model.Event, [][2]int) {
	evs := append([]model.Event(nil), cluster...)
	sort.SliceStable(evs, func(i, j int) bool {
		a, b := evs[i], evs[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Duration() != b.Duration() {
			return a.Duration() > b.Duration()
		}
		return a.ID < b.ID
	})

	var groups [][2]int
	for i := 0; i < len(evs); {
		anchor := evs[i].Start
		j := i + 1
		for j < len(evs) && evs[j].Start.Sub(anchor) <= tol {
			j++
		}
		sub := evs[i:j]
		sort.SliceStable(sub, func(a, b int) bool {
			if sub[a].Duration() != sub[b].Duration() {
				return sub[a].Duration() > sub[b].Duration()
			}
			return sub[a].ID < sub[b].ID
		})
		groups = append(groups, [2]int{i, j})
		i = j
	}
	return evs, groups
}

// Cascade staggers the cluster's events so later and shorter ones sit on top.
// ZIndex is rank+1 where rank follows the left-to-right order.
func Cascade(cluster []model.Event, t Tuning) map[string]Horizontal {
	out := make(map[string]Horizontal, len(cluster))
	if len(cluster) == 0 {
		return out
	}

	ordered, groups := cascadeOrder(cluster, t.StartTolerance)
	for _, g := range groups {
		lo, hi := g[0], g[1]
		pixels := float64(lo) * t.PixelStep
		if hi-lo == 1 {
			out[ordered[lo].ID] = Horizontal{
				WidthPercent: 100,
				LeftPixels:   pixels,
				ZIndex:       lo + 1,
			}
			continue
		}
		for i := lo; i < hi; i++ {
			step := i - lo
			left := float64(step) * t.StepPercent
			if left > 100-t.MinWidthPercent {
				left = 100 - t.MinWidthPercent
			}
			width := 100 * math.Pow(t.WidthDecay, float64(step))
			width = math.Max(width, t.MinWidthPercent)
			width = math.Min(width, 100-left)
			out[ordered[i].ID] = Horizontal{
				LeftPercent:  left,
				WidthPercent: width,
				LeftPixels:   pixels,
				ZIndex:       i + 1,
			}
		}
	}
	return out
}
