package index

import (
	"log/slog"

	"github.com/starford/othala/internal/entity"
	"github.com/starford/othala/internal/events"
	"github.com/starford/othala/internal/graph"
)

// Rebuild brings the index in line with the loaded graph:
//   - every live entity is upserted
//   - index entries for deleted or unknown entities are removed
//
// Deleted entities stay in the store but should not surface in search, so
// they are dropped from the index entirely.
func Rebuild(db *DB, s *graph.Store, logger *slog.Logger) error {
	indexed, err := db.AllIDs()
	if err != nil {
		return err
	}

	live := make(map[string]struct{})
	for _, e := range s.All() {
		if e.Deleted {
			continue
		}
		live[e.ID] = struct{}{}
		if err := indexEntity(db, e); err != nil {
			logger.Warn("index: upsert failed", slog.String("id", e.ID), slog.String("error", err.Error()))
		} else {
			logger.Debug("index: indexed", slog.String("id", e.ID))
		}
	}

	// Remove stale entries.
	for id := range indexed {
		if _, ok := live[id]; !ok {
			if err := db.DeleteEntity(id); err != nil {
				logger.Warn("index: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("index: removed stale", slog.String("id", id))
			}
		}
	}

	return nil
}

// Attach subscribes the index to the store so every mutation is reflected.
// Returns the subscription so the caller can detach on shutdown.
func Attach(db *DB, s *graph.Store, logger *slog.Logger) *events.Subscription {
	apply := func(ev events.Event) {
		if ev.Entity == nil {
			return
		}
		sync := func(e *entity.Entity) {
			var err error
			if e.Deleted {
				err = db.DeleteEntity(e.ID)
			} else {
				err = indexEntity(db, e)
			}
			if err != nil {
				logger.Warn("index: sync failed", slog.String("id", e.ID), slog.String("error", err.Error()))
			}
		}
		sync(ev.Entity)
		if ev.Related != nil {
			sync(ev.Related)
		}
	}
	return s.On(events.Filter{}, apply)
}

// indexEntity flattens an entity into its index row and outgoing link targets.
func indexEntity(db *DB, e *entity.Entity) error {
	links := make([]string, 0, len(e.Links))
	for _, l := range e.Links {
		links = append(links, l.Entity)
	}
	row := EntityRow{
		ID:        e.ID,
		Kind:      string(e.Kind),
		Name:      e.Name,
		Archived:  e.Archived,
		UpdatedAt: e.LastTouch(),
	}
	return db.UpsertEntity(row, e.Content(), links)
}
