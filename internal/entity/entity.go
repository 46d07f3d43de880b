// Package entity defines the domain model of the graph engine: entities,
// parent relations, content-derived links, and the structural mutations on
// them. Mutations here are pure graph edits; observation and index upkeep
// belong to the store.
package entity

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/starford/othala/internal/kind"
)

// Entity is a uniquely identified domain object of one fixed kind.
//
// Pointer fields (relation targets, actor refs, members, link sources) are
// non-owning back-references; the store owns the canonical instances keyed
// by id. Deletion is a flag transition, never removal from the id index.
type Entity struct {
	ID   string
	Kind kind.Kind
	Name string

	CreatedAt time.Time
	UpdatedAt time.Time

	Deleted    bool
	DeletedAt  *time.Time
	Archived   bool
	ArchivedAt *time.Time
	Draft      bool

	// Actor references, resolved against the loaded graph. Nil when the
	// actor is unknown or the relation dangled at load.
	CreatedBy *Entity
	UpdatedBy *Entity
	DeletedBy *Entity

	// Context is an optional resolved reference to the entity this one
	// was created in the context of (e.g. the collection a chat was
	// started from).
	Context *Entity

	Properties map[string]any

	// Parents is the relation list toward containing entities. Relation
	// ids are unique within the list.
	Parents []*ParentRelation

	// Members is the ordered active member list ("entities" on the
	// wire). It never contains an archived or deleted entity.
	Members []*Entity

	// Links are outgoing references derived from content; Backlinks are
	// incoming references derived from other entities' content.
	Links     []Link
	Backlinks []Link

	TemporalAliveness   float64
	RelationalAliveness float64
	Aliveness           float64
}

// ParentRelation is one edge toward a containing entity. ID duplicates the
// parent's identity so the relation is addressable before graph resolution;
// Target is filled in during resolution and stays nil for dangling parents.
type ParentRelation struct {
	ID         string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Properties map[string]any
	Target     *Entity
}

// Link is a directed content-derived reference. Entity is the target id,
// Path the raw reference URI, Context the enclosing block of the source
// content the reference appeared in.
type Link struct {
	Name    string
	Path    string
	Source  *Entity
	Entity  string
	Context string
}

// NewID returns a fresh opaque entity id.
func NewID() (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("entity: generate id: %w", err)
	}
	return id, nil
}

// New builds an entity of the given kind: registry defaults first, then the
// caller-supplied record values layered on top, then relation normalization.
// Unknown kinds fail with ErrUnsupportedKind.
func New(k kind.Kind, rec Record) (*Entity, error) {
	spec, err := kind.Lookup(k)
	if err != nil {
		return nil, err
	}

	id := rec.ID
	if id == "" {
		if id, err = NewID(); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	name := rec.Name
	if name == "" {
		name = spec.DisplayName
	}

	props := kind.DefaultProperties(k)
	for key, v := range rec.Properties {
		props[key] = v
	}

	e := &Entity{
		ID:         id,
		Kind:       k,
		Name:       name,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
		Deleted:    rec.Deleted,
		DeletedAt:  rec.DeletedAt,
		Archived:   rec.Archived,
		ArchivedAt: rec.ArchivedAt,
		Draft:      rec.Draft || (spec.DraftStart && rec.CreatedAt.IsZero()),
		Properties: props,
	}
	e.Parents = relationsFromRecord(rec.Parents)
	return e, nil
}

// Can reports whether the entity's kind composes in the capability.
func (e *Entity) Can(c kind.Capability) bool {
	spec, err := kind.Lookup(e.Kind)
	if err != nil {
		return false
	}
	return spec.Has(c)
}

// Active reports whether the entity may appear in a member list.
func (e *Entity) Active() bool {
	return !e.Archived && !e.Deleted
}

// Content returns the entity's body, or empty for kinds without one.
func (e *Entity) Content() string {
	if s, ok := e.Properties["content"].(string); ok {
		return s
	}
	return ""
}

// LastTouch is the later of created_at and updated_at.
func (e *Entity) LastTouch() time.Time {
	if e.UpdatedAt.After(e.CreatedAt) {
		return e.UpdatedAt
	}
	return e.CreatedAt
}

func (e *Entity) touch() {
	e.UpdatedAt = time.Now()
}
