package storage

import (
	"log/slog"

	"github.com/starford/othala/internal/events"
	"github.com/starford/othala/internal/graph"
)

// Persist subscribes to the store and writes the affected entities' records
// back to the provider after every mutation. Deletion is a flag transition,
// so deleted entities are rewritten (with the flag set), never removed from
// disk by the engine. Returns the subscription so the caller can detach.
//
// External-origin creates are skipped: those came from disk in the first
// place, and echoing them back would retrigger the file watcher.
func Persist(s *graph.Store, p Provider, logger *slog.Logger) *events.Subscription {
	write := func(ev events.Event) {
		if ev.Entity == nil {
			return
		}
		if ev.Op == events.OpCreate && ev.Origin == events.OriginExternal {
			return
		}
		if err := WriteRecord(p, ev.Entity.ToRecord()); err != nil {
			logger.Warn("persist: write failed",
				slog.String("id", ev.Entity.ID), slog.String("error", err.Error()))
			return
		}
		// Structural events also dirty the counterpart entity.
		if ev.Related != nil {
			if err := WriteRecord(p, ev.Related.ToRecord()); err != nil {
				logger.Warn("persist: write failed",
					slog.String("id", ev.Related.ID), slog.String("error", err.Error()))
			}
		}
	}
	return s.On(events.Filter{}, write)
}
