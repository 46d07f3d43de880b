package entity

import (
	"fmt"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/kind"
)

// Archive flags the entity archived and detaches it from every parent's
// active member list, keeping the no-archived-member invariant without a
// graph rebuild.
func (e *Entity) Archive(actor *Entity) {
	if e.Archived {
		return
	}
	now := time.Now()
	e.Archived = true
	e.ArchivedAt = &now
	e.UpdatedBy = actor
	e.detachFromParents()
	e.touch()
}

// Unarchive clears the archived flag and reattaches the entity to every
// parent's active member list.
func (e *Entity) Unarchive(actor *Entity) {
	if !e.Archived {
		return
	}
	e.Archived = false
	e.ArchivedAt = nil
	e.UpdatedBy = actor
	e.reattachToParents()
	e.touch()
}

// Delete flags the entity deleted and detaches it from every parent's
// active member list. The entity stays in the id index; deletion is a flag
// transition, not destruction.
func (e *Entity) Delete(actor *Entity) {
	if e.Deleted {
		return
	}
	now := time.Now()
	e.Deleted = true
	e.DeletedAt = &now
	e.DeletedBy = actor
	e.detachFromParents()
	e.touch()
}

// Restore clears the deleted flag and reattaches the entity to its parents.
func (e *Entity) Restore(actor *Entity) {
	if !e.Deleted {
		return
	}
	e.Deleted = false
	e.DeletedAt = nil
	e.DeletedBy = nil
	e.UpdatedBy = actor
	e.reattachToParents()
	e.touch()
}

// Rename sets the display name.
func (e *Entity) Rename(name string, actor *Entity) {
	e.Name = name
	e.UpdatedBy = actor
	e.touch()
}

// SetContent replaces the body of a content-editable entity. Link
// re-derivation is the store's job (it owns the backlink index).
func (e *Entity) SetContent(content string, actor *Entity) error {
	if !e.Can(kind.CapContent) {
		return fmt.Errorf("set content on %s (%s): kind has no content", e.ID, e.Kind)
	}
	e.Properties["content"] = content
	e.UpdatedBy = actor
	e.touch()
	return nil
}

// AppendContent appends delta to the body, for incremental streaming.
func (e *Entity) AppendContent(delta string) error {
	if !e.Can(kind.CapContent) {
		return fmt.Errorf("append content on %s (%s): kind has no content", e.ID, e.Kind)
	}
	e.Properties["content"] = e.Content() + delta
	e.touch()
	return nil
}

// MarkComplete sets completed/completed_at on a completable entity.
func (e *Entity) MarkComplete(actor *Entity) error {
	if !e.Can(kind.CapComplete) {
		return fmt.Errorf("mark complete on %s (%s): kind is not completable", e.ID, e.Kind)
	}
	now := time.Now()
	e.Properties["completed"] = true
	e.Properties["completed_at"] = now.Format(time.RFC3339)
	e.UpdatedBy = actor
	e.touch()
	return nil
}

// MarkDraft flags the entity as a draft.
func (e *Entity) MarkDraft() {
	if e.Draft {
		return
	}
	e.Draft = true
	e.touch()
}

// CompleteDraft settles a draft entity.
func (e *Entity) CompleteDraft() {
	if !e.Draft {
		return
	}
	e.Draft = false
	e.touch()
}

// Convert reassigns the entity's kind. Both the current and the target kind
// must be flagged convertible by the registry; the check is total here, not
// left to call sites. Property keys exclusive to the old kind's defaults
// are removed, keys exclusive to the new kind's defaults are added at their
// defaults, and shared keys keep their current values. Converting A→B→A
// therefore restores A's default key set (not its values).
func (e *Entity) Convert(to kind.Kind, actor *Entity) error {
	fromSpec, err := kind.Lookup(e.Kind)
	if err != nil {
		return err
	}
	toSpec, err := kind.Lookup(to)
	if err != nil {
		return err
	}
	if !fromSpec.Convertible() {
		return fmt.Errorf("convert %s from %s: %w", e.ID, e.Kind, apperr.ErrNotConvertible)
	}
	if !toSpec.Convertible() {
		return fmt.Errorf("convert %s to %s: %w", e.ID, to, apperr.ErrNotConvertible)
	}
	if e.Kind == to {
		return nil
	}

	oldDefaults := kind.DefaultProperties(e.Kind)
	newDefaults := kind.DefaultProperties(to)

	for key := range oldDefaults {
		if _, shared := newDefaults[key]; !shared {
			delete(e.Properties, key)
		}
	}
	for key, def := range newDefaults {
		if _, present := e.Properties[key]; !present {
			e.Properties[key] = def
		}
	}

	e.Kind = to
	e.UpdatedBy = actor
	e.touch()
	return nil
}

// detachFromParents removes the entity from every resolved parent's active
// member list.
func (e *Entity) detachFromParents() {
	for _, rel := range e.Parents {
		if rel.Target != nil {
			rel.Target.detachMember(e.ID)
		}
	}
}

// reattachToParents re-adds the entity to every resolved parent's active
// member list (appended at the end).
func (e *Entity) reattachToParents() {
	for _, rel := range e.Parents {
		if rel.Target != nil {
			rel.Target.attachMember(e)
		}
	}
}
