package entity

import (
	"fmt"
	"time"

	"github.com/starford/othala/internal/apperr"
)

// AddParent appends a relation toward parent. It is idempotent: an existing
// relation with the same id is left untouched and false is returned.
func (e *Entity) AddParent(parent *Entity, props map[string]any) bool {
	for _, rel := range e.Parents {
		if rel.ID == parent.ID {
			return false
		}
	}
	now := time.Now()
	e.Parents = append(e.Parents, &ParentRelation{
		ID:         parent.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
		Properties: props,
		Target:     parent,
	})
	e.touch()
	return true
}

// RemoveParent severs the relation toward parent. If the parent still lists
// this entity as an active member it is removed there too, keeping both
// sides consistent. Returns false when no such relation exists.
func (e *Entity) RemoveParent(parent *Entity) bool {
	idx := -1
	for i, rel := range e.Parents {
		if rel.ID == parent.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	e.Parents = append(e.Parents[:idx], e.Parents[idx+1:]...)
	parent.detachMember(e.ID)
	e.touch()
	return true
}

// Insert adds children to the active member list at index. Children already
// contained are skipped. Every new child is validated against the receiver's
// own ancestor chain first; a child found there (or equal to the receiver)
// fails the whole call with RecursiveContainmentError, leaving both sides
// unchanged. Multiple children are spliced in reverse input order so the
// final ordering matches the caller's intent.
//
// The inserted children (in input order) are returned so the caller can
// emit one insert notification per child.
func (e *Entity) Insert(index int, children ...*Entity) ([]*Entity, error) {
	var fresh []*Entity
	for _, c := range children {
		if e.Has(c.ID, false) {
			continue
		}
		if c.ID == e.ID || e.hasAncestor(c.ID) {
			return nil, &apperr.RecursiveContainmentError{Source: e.ID, Target: c.ID}
		}
		fresh = append(fresh, c)
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	if index < 0 {
		index = 0
	}
	if index > len(e.Members) {
		index = len(e.Members)
	}
	for i := len(fresh) - 1; i >= 0; i-- {
		c := fresh[i]
		e.Members = append(e.Members[:index], append([]*Entity{c}, e.Members[index:]...)...)
		c.AddParent(e, nil)
	}
	e.touch()
	return fresh, nil
}

// Remove drops id from the active member list. The member's parent relation
// is deliberately untouched: removing content membership is distinct from
// severing parenthood. A non-member id fails with ErrInvalidMembership.
func (e *Entity) Remove(id string) error {
	if !e.detachMember(id) {
		return fmt.Errorf("remove %s from %s: %w", id, e.ID, apperr.ErrInvalidMembership)
	}
	e.touch()
	return nil
}

// Has reports direct membership of id. With deep=true every contained
// entity is searched depth-first; containment is acyclic by construction so
// no visited set is needed.
func (e *Entity) Has(id string, deep bool) bool {
	for _, m := range e.Members {
		if m.ID == id {
			return true
		}
		if deep && m.Has(id, true) {
			return true
		}
	}
	return false
}

// SetOrder replaces the active member ordering. The supplied entities must
// be exactly the current member set (set equality, order free); anything
// else fails with ErrInvalidMembership without mutating state.
func (e *Entity) SetOrder(order []*Entity) error {
	if len(order) != len(e.Members) {
		return fmt.Errorf("reorder %s: %w", e.ID, apperr.ErrInvalidMembership)
	}
	current := make(map[string]struct{}, len(e.Members))
	for _, m := range e.Members {
		current[m.ID] = struct{}{}
	}
	for _, m := range order {
		if _, ok := current[m.ID]; !ok {
			return fmt.Errorf("reorder %s: %s is not a member: %w", e.ID, m.ID, apperr.ErrInvalidMembership)
		}
		delete(current, m.ID)
	}
	if len(current) != 0 {
		return fmt.Errorf("reorder %s: %w", e.ID, apperr.ErrInvalidMembership)
	}
	e.Members = append([]*Entity(nil), order...)
	e.touch()
	return nil
}

// hasAncestor walks the parent chain and reports whether id appears in it.
func (e *Entity) hasAncestor(id string) bool {
	for _, rel := range e.Parents {
		if rel.Target == nil {
			continue
		}
		if rel.Target.ID == id || rel.Target.hasAncestor(id) {
			return true
		}
	}
	return false
}

// detachMember removes id from Members, reporting whether it was present.
func (e *Entity) detachMember(id string) bool {
	for i, m := range e.Members {
		if m.ID == id {
			e.Members = append(e.Members[:i], e.Members[i+1:]...)
			return true
		}
	}
	return false
}

// attachMember appends m to Members unless already present.
func (e *Entity) attachMember(m *Entity) bool {
	if e.Has(m.ID, false) {
		return false
	}
	e.Members = append(e.Members, m)
	return true
}
