package entity

import (
	"sort"
	"time"

	"github.com/starford/othala/internal/kind"
)

// Record is the flat wire/storage shape of an entity. Relation-valued
// fields are flattened to ids; null-valued fields are omitted entirely.
type Record struct {
	ID        string    `json:"id"`
	Kind      kind.Kind `json:"kind"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Deleted    bool       `json:"deleted,omitempty"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
	Archived   bool       `json:"archived,omitempty"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	Draft      bool       `json:"draft,omitempty"`

	CreatedBy string `json:"created_by,omitempty"`
	UpdatedBy string `json:"updated_by,omitempty"`
	DeletedBy string `json:"deleted_by,omitempty"`
	Context   string `json:"context,omitempty"`

	Properties map[string]any `json:"properties,omitempty"`

	// Entities is the ordered active member id list.
	Entities []string `json:"entities,omitempty"`

	// Parents maps parent id to the relation's own fields.
	Parents map[string]RelationRecord `json:"parents,omitempty"`
}

// RelationRecord is the wire shape of one parent relation.
type RelationRecord struct {
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Properties map[string]any `json:"props,omitempty"`
}

// ToRecord flattens the entity to its canonical record shape: resolved
// references become ids, members become an ordered id list, and nil-valued
// properties are dropped.
func (e *Entity) ToRecord() Record {
	rec := Record{
		ID:         e.ID,
		Kind:       e.Kind,
		Name:       e.Name,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
		Deleted:    e.Deleted,
		DeletedAt:  e.DeletedAt,
		Archived:   e.Archived,
		ArchivedAt: e.ArchivedAt,
		Draft:      e.Draft,
	}
	if e.CreatedBy != nil {
		rec.CreatedBy = e.CreatedBy.ID
	}
	if e.UpdatedBy != nil {
		rec.UpdatedBy = e.UpdatedBy.ID
	}
	if e.DeletedBy != nil {
		rec.DeletedBy = e.DeletedBy.ID
	}
	if e.Context != nil {
		rec.Context = e.Context.ID
	}

	if len(e.Properties) > 0 {
		props := make(map[string]any, len(e.Properties))
		for k, v := range e.Properties {
			if v == nil {
				continue
			}
			props[k] = v
		}
		if len(props) > 0 {
			rec.Properties = props
		}
	}

	if len(e.Members) > 0 {
		ids := make([]string, len(e.Members))
		for i, m := range e.Members {
			ids[i] = m.ID
		}
		rec.Entities = ids
	}

	if len(e.Parents) > 0 {
		parents := make(map[string]RelationRecord, len(e.Parents))
		for _, rel := range e.Parents {
			parents[rel.ID] = RelationRecord{
				CreatedAt:  rel.CreatedAt,
				UpdatedAt:  rel.UpdatedAt,
				Properties: rel.Properties,
			}
		}
		rec.Parents = parents
	}
	return rec
}

// relationsFromRecord normalizes the wire parent map into a relation list.
// The map carries no order, so relations are sorted by creation time (id as
// tiebreaker) for determinism. Relation ids are unique by construction.
func relationsFromRecord(parents map[string]RelationRecord) []*ParentRelation {
	if len(parents) == 0 {
		return nil
	}
	out := make([]*ParentRelation, 0, len(parents))
	for id, rr := range parents {
		out = append(out, &ParentRelation{
			ID:         id,
			CreatedAt:  rr.CreatedAt,
			UpdatedAt:  rr.UpdatedAt,
			Properties: rr.Properties,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
