// Package layout positions a day's events inside the time grid: it detects
// overlaps, groups overlapping events into clusters and turns each cluster
// into boxes under the side-by-side or overlapping policy.
package layout

import (
	"sort"
	"time"

	"calgrid/internal/model"
)

// Overlaps reports whether the half-open intervals of a and b intersect.
// Touching endpoints do not overlap.
func Overlaps(a, b model.Event) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Cluster is a maximal set of timed events connected by pairwise overlap.
// Key is the earliest start among the members.
type Cluster struct {
	Key    time.Time
	Events []model.Event

	first int // input index of the earliest member, breaks Key ties
}

// Groups is the result of partitioning one day's events.
type Groups struct {
	AllDay   []model.Event
	Clusters []Cluster
}

// Group splits events into the all-day lane and clusters of timed events.
// All-day events keep their start order. Cluster members are sorted by start
// and clusters are ordered by their key.
func Group(events []model.Event) Groups {
	var out Groups
	timed := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if ev.AllDay {
			out.AllDay = append(out.AllDay, ev)
			continue
		}
		timed = append(timed, ev)
	}
	sort.SliceStable(out.AllDay, func(i, j int) bool {
		return out.AllDay[i].Start.Before(out.AllDay[j].Start)
	})

	uf := newUnionFind(len(timed))
	for i := range timed {
		for j := 0; j < i; j++ {
			if Overlaps(timed[i], timed[j]) {
				uf.union(j, i)
			}
		}
	}

	byRoot := make(map[int]*Cluster)
	var order []int
	for i, ev := range timed {
		root := uf.find(i)
		c, ok := byRoot[root]
		if !ok {
			c = &Cluster{Key: ev.Start, first: i}
			byRoot[root] = c
			order = append(order, root)
		}
		c.Events = append(c.Events, ev)
		if ev.Start.Before(c.Key) {
			c.Key = ev.Start
			c.first = i
		}
	}

	out.Clusters = make([]Cluster, 0, len(order))
	for _, root := range order {
		c := byRoot[root]
		sort.SliceStable(c.Events, func(i, j int) bool {
			return c.Events[i].Start.Before(c.Events[j].Start)
		})
		out.Clusters = append(out.Clusters, *c)
	}
	sort.SliceStable(out.Clusters, func(i, j int) bool {
		a, b := out.Clusters[i], out.Clusters[j]
		if !a.Key.Equal(b.Key) {
			return a.Key.Before(b.Key)
		}
		return a.first < b.first
	})
	return out
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	// Keep the lower index as root so roots follow input order.
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
