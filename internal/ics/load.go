package ics

import (
	"context"
	"time"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// LoadAll fetches and parses every source. A failing source is logged and
// reported in errs while the others still contribute events. When two
// sources share a UID the later source wins.
func (f *Fetcher) LoadAll(ctx context.Context, sources []Source, loc *time.Location) ([]model.Event, []error) {
	var errs []error
	seen := make(map[string]int)
	out := make([]model.Event, 0)

	for _, src := range sources {
		res, err := f.Fetch(ctx, src)
		if err != nil {
			appLog.Error("ics source failed", err, "id", src.ID, "source", src.String())
			errs = append(errs, err)
			continue
		}
		events, err := ParseICS(src, res.Body, loc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, ev := range events {
			if i, dup := seen[ev.ID]; dup {
				appLog.Warn("ics duplicate uid, keeping latest", "uid", ev.ID, "source", src.ID)
				out[i] = ev
				continue
			}
			seen[ev.ID] = len(out)
			out = append(out, ev)
		}
	}
	return out, errs
}
