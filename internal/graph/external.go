package graph

import (
	"fmt"
	"reflect"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/entity"
	"github.com/starford/othala/internal/events"
	"github.com/starford/othala/internal/kind"
)

// ApplyExternal reconciles one on-disk record into the live graph. An
// unknown id is created with external origin; for a loaded entity the
// scalar fields (flags, name, properties) are applied through the normal
// mutation protocol, so observers see the same events an in-process edit
// would produce.
//
// Structural fields (member order, parent relations) are not merged here;
// they are reconciled on the next full load. External tools edit record
// content far more often than graph structure, and a partial structural
// merge can violate the membership invariant mid-flight.
func (s *Store) ApplyExternal(rec entity.Record) (*entity.Entity, error) {
	if !kind.Known(rec.Kind) {
		return nil, fmt.Errorf("apply %s: %w", rec.ID, apperr.ErrUnsupportedKind)
	}
	e := s.byID[rec.ID]
	if e == nil {
		return s.Create(rec, events.OriginExternal)
	}

	if rec.Deleted && !e.Deleted {
		s.Delete(e, nil)
		return e, nil
	}
	if !rec.Deleted && e.Deleted {
		s.Restore(e, nil)
	}
	if rec.Archived != e.Archived {
		if rec.Archived {
			s.Archive(e, nil)
		} else {
			s.Unarchive(e, nil)
		}
	}
	if rec.Name != "" && rec.Name != e.Name {
		s.Rename(e, rec.Name, nil)
	}
	if rec.Kind != e.Kind {
		if err := s.Convert(e, rec.Kind, nil); err != nil {
			return nil, fmt.Errorf("apply %s: %w", rec.ID, err)
		}
	}
	if rec.Draft != e.Draft {
		if rec.Draft {
			s.MarkDraft(e)
		} else {
			s.CompleteDraft(e)
		}
	}

	props := kind.DefaultProperties(e.Kind)
	for k, v := range rec.Properties {
		props[k] = v
	}
	if !reflect.DeepEqual(props, e.Properties) {
		e.Properties = props
		s.refreshLinks(e)
		s.notifyUpdate(e)
	}
	return e, nil
}
