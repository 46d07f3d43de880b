package graph

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/othala/internal/aliveness"
	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/entity"
	"github.com/starford/othala/internal/events"
	"github.com/starford/othala/internal/kind"
	"github.com/starford/othala/internal/links"
)

// Load bulk-constructs the graph from a flat batch of records and resolves
// it in a fixed order: member ids, then the parent adjacency, then actor
// and context refs, then the membership invariant, then links, backlinks,
// and aliveness. Links depend on resolved entities, backlinks on links,
// aliveness on all of it. Load is tolerant: unrecognized kinds and dangling
// references are skipped or nulled with a warning, and loading continues.
func (s *Store) Load(records []entity.Record) {
	raw := make(map[string]entity.Record, len(records))

	for _, rec := range records {
		if !kind.Known(rec.Kind) {
			s.logger.Warn("load: skipping record with unrecognized kind",
				slog.String("id", rec.ID), slog.String("kind", string(rec.Kind)))
			continue
		}
		if rec.Kind == kind.Self && s.GetRoot() != nil {
			s.logger.Warn("load: skipping duplicate self record", slog.String("id", rec.ID))
			continue
		}
		if _, dup := s.byID[rec.ID]; dup {
			s.logger.Warn("load: skipping duplicate id", slog.String("id", rec.ID))
			continue
		}
		e, err := entity.New(rec.Kind, rec)
		if err != nil {
			s.logger.Warn("load: skipping record", slog.String("id", rec.ID), slog.String("error", err.Error()))
			continue
		}
		s.index(e)
		raw[e.ID] = rec
	}

	// Member id lists become live references; dangling ids are dropped.
	for id, rec := range raw {
		e := s.byID[id]
		for _, mid := range rec.Entities {
			m := s.byID[mid]
			if m == nil {
				s.logger.Warn("load: dropping dangling member",
					slog.String("entity", id), slog.String("member", mid))
				continue
			}
			e.Members = append(e.Members, m)
		}
	}

	// Parent adjacency, resolving relation targets. A dangling relation is
	// tolerated: the relation stays, its target stays nil.
	for _, e := range s.byID {
		s.resolveParents(e)
	}

	// Actor and context references.
	for id, rec := range raw {
		e := s.byID[id]
		e.CreatedBy = s.resolveRef(id, "created_by", rec.CreatedBy)
		e.UpdatedBy = s.resolveRef(id, "updated_by", rec.UpdatedBy)
		e.DeletedBy = s.resolveRef(id, "deleted_by", rec.DeletedBy)
		e.Context = s.resolveRef(id, "context", rec.Context)
	}

	// Membership invariant: no archived or deleted active member.
	for _, e := range s.byID {
		stripInactiveMembers(e)
	}

	// Links, then their inversion.
	for _, e := range s.byID {
		e.Links = links.Extract(e)
	}
	s.rebuildBacklinks()

	aliveness.Compute(s.All(), time.Now())
}

// Create builds a new entity from a record, admits it to the graph, and
// emits a create event tagged with its origin. At most one self entity may
// exist; a duplicate is fatal to the operation.
func (s *Store) Create(rec entity.Record, origin events.Origin) (*entity.Entity, error) {
	if rec.Kind == kind.Self && s.GetRoot() != nil {
		return nil, apperr.ErrDuplicateSelf
	}
	if rec.ID != "" {
		if _, exists := s.byID[rec.ID]; exists {
			return nil, fmt.Errorf("create %s: %w", rec.ID, apperr.ErrConflict)
		}
	}

	e, err := entity.New(rec.Kind, rec)
	if err != nil {
		return nil, err
	}

	for _, mid := range rec.Entities {
		m := s.byID[mid]
		if m == nil {
			s.logger.Warn("create: dropping dangling member",
				slog.String("entity", e.ID), slog.String("member", mid))
			continue
		}
		e.Members = append(e.Members, m)
	}
	s.resolveParents(e)
	e.CreatedBy = s.resolveRef(e.ID, "created_by", rec.CreatedBy)
	e.UpdatedBy = s.resolveRef(e.ID, "updated_by", rec.UpdatedBy)
	e.DeletedBy = s.resolveRef(e.ID, "deleted_by", rec.DeletedBy)
	e.Context = s.resolveRef(e.ID, "context", rec.Context)
	stripInactiveMembers(e)

	e.Links = links.Extract(e)
	for _, l := range e.Links {
		if target := s.byID[l.Entity]; target != nil {
			target.Backlinks = append(target.Backlinks, l)
		}
	}

	s.index(e)

	// Cheap full recompute; graphs are small.
	aliveness.Compute(s.All(), time.Now())

	s.bus.Emit(events.Event{Op: events.OpCreate, Entity: e, Origin: origin})
	return e, nil
}

// resolveParents fills relation targets from the id index and records the
// adjacency in childMap. Dangling relations are logged and kept with a nil
// target.
func (s *Store) resolveParents(e *entity.Entity) {
	for _, rel := range e.Parents {
		target := s.byID[rel.ID]
		if target == nil {
			s.logger.Warn("dangling parent relation",
				slog.String("entity", e.ID), slog.String("parent", rel.ID))
			continue
		}
		rel.Target = target
		s.childMapAdd(rel.ID, e)
	}
}

// resolveRef looks up an id-valued reference field, warning when it
// dangles. Empty ids resolve to nil silently.
func (s *Store) resolveRef(owner, field, id string) *entity.Entity {
	if id == "" {
		return nil
	}
	e := s.byID[id]
	if e == nil {
		s.logger.Warn("dangling reference",
			slog.String("entity", owner), slog.String("field", field), slog.String("ref", id))
	}
	return e
}

// rebuildBacklinks recomputes the whole backlink index from every entity's
// links.
func (s *Store) rebuildBacklinks() {
	for _, e := range s.byID {
		e.Backlinks = nil
	}
	for _, e := range s.byID {
		for _, l := range e.Links {
			if target := s.byID[l.Entity]; target != nil {
				target.Backlinks = append(target.Backlinks, l)
			}
		}
	}
}

func stripInactiveMembers(e *entity.Entity) {
	if len(e.Members) == 0 {
		return
	}
	kept := e.Members[:0]
	for _, m := range e.Members {
		if m.Active() {
			kept = append(kept, m)
		}
	}
	e.Members = kept
}
