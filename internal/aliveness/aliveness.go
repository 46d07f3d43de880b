// Package aliveness computes the relevance ranking signal blending recency
// decay and graph connectivity mass.
package aliveness

import (
	"math"
	"time"

	"github.com/starford/othala/internal/entity"
)

// HalfLifeDays is the temporal decay half-life: an untouched entity loses
// half its temporal aliveness every ten days.
const HalfLifeDays = 10.0

// Compute scores every entity in the graph and writes the results onto the
// entities. Both halves are normalized against the current graph's maxima,
// so aliveness is a relative, graph-dependent ranking in [0,1], not an
// absolute score. Callers re-run it whenever structure or timestamps change
// materially (load and create).
func Compute(all []*entity.Entity, now time.Time) {
	if len(all) == 0 {
		return
	}

	descendants := make(map[string]int, len(all))
	var maxTemporal, maxRelational float64

	for _, e := range all {
		e.TemporalAliveness = temporal(e, now)
		e.RelationalAliveness = float64(len(e.Backlinks) + len(e.Links) + countDescendants(e, descendants, nil) + len(e.Parents))

		if e.TemporalAliveness > maxTemporal {
			maxTemporal = e.TemporalAliveness
		}
		if e.RelationalAliveness > maxRelational {
			maxRelational = e.RelationalAliveness
		}
	}

	for _, e := range all {
		var t, r float64
		if maxTemporal > 0 {
			t = e.TemporalAliveness / maxTemporal
		}
		if maxRelational > 0 {
			r = e.RelationalAliveness / maxRelational
		}
		e.Aliveness = 0.5*r + 0.5*t
	}
}

// temporal is 0.5^(days_since_last_touch / half-life), implicitly clamped
// to (0,1]: a touch in the future counts as now.
func temporal(e *entity.Entity, now time.Time) float64 {
	days := now.Sub(e.LastTouch()).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Pow(0.5, days/HalfLifeDays)
}

// countDescendants walks active members depth-first, memoized per entity
// within one computation pass. The per-path visited set guards against
// double counting should containment ever be inconsistent; the graph is
// structurally acyclic, so it normally never trips.
func countDescendants(e *entity.Entity, memo map[string]int, path map[string]struct{}) int {
	if n, ok := memo[e.ID]; ok {
		return n
	}
	if path == nil {
		path = make(map[string]struct{})
	}
	if _, onPath := path[e.ID]; onPath {
		return 0
	}
	path[e.ID] = struct{}{}
	defer delete(path, e.ID)

	n := 0
	for _, m := range e.Members {
		n += 1 + countDescendants(m, memo, path)
	}
	memo[e.ID] = n
	return n
}
