package graph

import (
	"github.com/starford/othala/internal/entity"
	"github.com/starford/othala/internal/events"
	"github.com/starford/othala/internal/kind"
	"github.com/starford/othala/internal/links"
)

// The mutation protocol. Every mutation goes through the store, which runs
// the entity-level effect first and then does the bookkeeping the entity
// cannot: childMap synchronization, backlink resynchronization, and event
// emission. Entities never know they are observed.

// Insert places children into parent's active member list at index,
// emitting one insert event per actually-inserted child. A child that would
// close a containment cycle fails the whole call and leaves both graphs
// unchanged.
func (s *Store) Insert(parent *entity.Entity, index int, children ...*entity.Entity) error {
	inserted, err := parent.Insert(index, children...)
	if err != nil {
		return err
	}
	for _, c := range inserted {
		s.childMapAdd(parent.ID, c)
		s.bus.Emit(events.Event{Op: events.OpInsert, Entity: parent, Related: c})
	}
	return nil
}

// Remove drops id from parent's active member list. The parent relation is
// untouched.
func (s *Store) Remove(parent *entity.Entity, id string) error {
	child := s.byID[id]
	if err := parent.Remove(id); err != nil {
		return err
	}
	s.bus.Emit(events.Event{Op: events.OpRemove, Entity: parent, Related: child})
	return nil
}

// AddParent registers a relation from child toward parent, keeping the
// adjacency index in step. Idempotent.
func (s *Store) AddParent(child, parent *entity.Entity, props map[string]any) {
	if !child.AddParent(parent, props) {
		return
	}
	s.childMapAdd(parent.ID, child)
	s.notifyUpdate(child)
}

// RemoveParent severs the relation from child toward parent.
func (s *Store) RemoveParent(child, parent *entity.Entity) {
	if !child.RemoveParent(parent) {
		return
	}
	s.childMapRemove(parent.ID, child.ID)
	s.notifyUpdate(child)
}

// SetOrder replaces parent's member ordering; the supplied permutation must
// cover exactly the current member set.
func (s *Store) SetOrder(parent *entity.Entity, order []*entity.Entity) error {
	if err := parent.SetOrder(order); err != nil {
		return err
	}
	s.bus.Emit(events.Event{Op: events.OpNewOrder, Entity: parent})
	return nil
}

// Archive flags the entity archived and detaches it from its parents'
// member lists.
func (s *Store) Archive(e, actor *entity.Entity) {
	if e.Archived {
		return
	}
	e.Archive(actor)
	s.bus.Emit(events.Event{Op: events.OpArchive, Entity: e})
}

// Unarchive clears the archived flag and reattaches the entity.
func (s *Store) Unarchive(e, actor *entity.Entity) {
	if !e.Archived {
		return
	}
	e.Unarchive(actor)
	s.bus.Emit(events.Event{Op: events.OpUnarchive, Entity: e})
}

// Delete flags the entity deleted. Any pending coalesced update for it is
// flushed first, so consumers never observe an update after the delete.
func (s *Store) Delete(e, actor *entity.Entity) {
	if e.Deleted {
		return
	}
	s.coalescer.Flush(e.ID)
	e.Delete(actor)
	s.bus.Emit(events.Event{Op: events.OpDelete, Entity: e})
}

// Restore clears the deleted flag and reattaches the entity.
func (s *Store) Restore(e, actor *entity.Entity) {
	if !e.Deleted {
		return
	}
	e.Restore(actor)
	s.bus.Emit(events.Event{Op: events.OpRestore, Entity: e})
}

// Rename sets the entity's display name.
func (s *Store) Rename(e *entity.Entity, name string, actor *entity.Entity) {
	e.Rename(name, actor)
	s.bus.Emit(events.Event{Op: events.OpRename, Entity: e})
}

// Convert reassigns the entity's kind, moving it between kind indexes.
// Convertibility is enforced by the registry for both endpoints.
func (s *Store) Convert(e *entity.Entity, to kind.Kind, actor *entity.Entity) error {
	from := e.Kind
	if err := e.Convert(to, actor); err != nil {
		return err
	}
	if from != e.Kind {
		s.reindexKind(e, from)
		// Content may have been dropped by the conversion; links follow it.
		s.refreshLinks(e)
	}
	s.bus.Emit(events.Event{Op: events.OpConvert, Entity: e})
	return nil
}

// SetContent replaces the entity's body, re-derives its outgoing links, and
// resynchronizes the backlink index for every target involved. The update
// notification is coalesced.
func (s *Store) SetContent(e *entity.Entity, content string, actor *entity.Entity) error {
	if err := e.SetContent(content, actor); err != nil {
		return err
	}
	s.refreshLinks(e)
	s.notifyUpdate(e)
	return nil
}

// AppendContent appends a streaming delta to the entity's body and
// re-derives links. The update notification is coalesced, which is what
// makes high-frequency streaming appends cheap to observe.
func (s *Store) AppendContent(e *entity.Entity, delta string) error {
	if err := e.AppendContent(delta); err != nil {
		return err
	}
	s.refreshLinks(e)
	s.notifyUpdate(e)
	return nil
}

// MarkComplete completes a completable entity. Update semantics: coalesced.
func (s *Store) MarkComplete(e, actor *entity.Entity) error {
	if err := e.MarkComplete(actor); err != nil {
		return err
	}
	s.notifyUpdate(e)
	return nil
}

// MarkDraft flags the entity as a draft.
func (s *Store) MarkDraft(e *entity.Entity) {
	if e.Draft {
		return
	}
	e.MarkDraft()
	s.bus.Emit(events.Event{Op: events.OpMarkDraft, Entity: e})
}

// CompleteDraft settles a draft entity.
func (s *Store) CompleteDraft(e *entity.Entity) {
	if !e.Draft {
		return
	}
	e.CompleteDraft()
	s.bus.Emit(events.Event{Op: events.OpCompleteDraft, Entity: e})
}

// Touch emits a plain coalesced update for the entity, for callers that
// mutated properties directly through no dedicated verb.
func (s *Store) Touch(e *entity.Entity) {
	s.notifyUpdate(e)
}

// refreshLinks re-extracts e's outgoing links and patches the backlink
// index: every target of a prior or current link gets exactly e's current
// backlinks from e, with other sources' backlinks preserved.
func (s *Store) refreshLinks(e *entity.Entity) {
	old := e.Links
	e.Links = links.Extract(e)

	touched := make(map[string]struct{}, len(old)+len(e.Links))
	for _, l := range old {
		touched[l.Entity] = struct{}{}
	}
	for _, l := range e.Links {
		touched[l.Entity] = struct{}{}
	}

	for id := range touched {
		target := s.byID[id]
		if target == nil {
			continue
		}
		kept := target.Backlinks[:0]
		for _, bl := range target.Backlinks {
			if bl.Source != e {
				kept = append(kept, bl)
			}
		}
		target.Backlinks = kept
	}
	for _, l := range e.Links {
		if target := s.byID[l.Entity]; target != nil {
			target.Backlinks = append(target.Backlinks, l)
		}
	}
}

func (s *Store) notifyUpdate(e *entity.Entity) {
	s.coalescer.Notify(events.Event{Op: events.OpUpdate, Entity: e})
}
