package api

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/entity"
	"github.com/starford/othala/internal/events"
	"github.com/starford/othala/internal/graph"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/kind"
)

// Service coordinates graph and index operations for the API layer. Each
// HTTP request runs on its own goroutine, so every method touching the
// store holds the store's owner lock for the whole operation, response
// snapshot included. Search and Graph hit only the SQL index, which does
// its own locking.
type Service struct {
	store *graph.Store
	db    index.EntityIndex
}

// NewService creates a new API service.
func NewService(store *graph.Store, db index.EntityIndex) *Service {
	return &Service{store: store, db: db}
}

// EntityDetail is the response payload for a single entity.
type EntityDetail struct {
	entity.Record

	Checksum  string         `json:"checksum"`
	Backlinks []BacklinkItem `json:"backlinks"`
	Aliveness float64        `json:"aliveness"`
}

// BacklinkItem describes one incoming reference.
type BacklinkItem struct {
	Source  string `json:"source"`
	Name    string `json:"name,omitempty"`
	Context string `json:"context,omitempty"`
}

// EntityListItem is a lightweight item in a list response.
type EntityListItem struct {
	ID        string    `json:"id"`
	Kind      kind.Kind `json:"kind"`
	Name      string    `json:"name"`
	Archived  bool      `json:"archived,omitempty"`
	Draft     bool      `json:"draft,omitempty"`
	Aliveness float64   `json:"aliveness"`
	UpdatedAt time.Time `json:"updated_at"`
}

func listItem(e *entity.Entity) EntityListItem {
	return EntityListItem{
		ID:        e.ID,
		Kind:      e.Kind,
		Name:      e.Name,
		Archived:  e.Archived,
		Draft:     e.Draft,
		Aliveness: e.Aliveness,
		UpdatedAt: e.LastTouch(),
	}
}

func (s *Service) detail(e *entity.Entity) *EntityDetail {
	rec := e.ToRecord()
	bl := make([]BacklinkItem, 0, len(e.Backlinks))
	for _, l := range e.Backlinks {
		item := BacklinkItem{Name: l.Name, Context: l.Context}
		if l.Source != nil {
			item.Source = l.Source.ID
		}
		bl = append(bl, item)
	}
	return &EntityDetail{
		Record:    rec,
		Checksum:  recordChecksum(rec),
		Backlinks: bl,
		Aliveness: e.Aliveness,
	}
}

// recordChecksum is the optimistic concurrency token for one entity: the
// digest of its canonical record serialization.
func recordChecksum(rec entity.Record) string {
	return checksum.SumJSON(rec)
}

// ListEntities returns entities matching the filter, most recently touched
// first.
func (s *Service) ListEntities(_ context.Context, f graph.Filter) []EntityListItem {
	s.store.Lock()
	defer s.store.Unlock()
	matches := s.store.Query(f, nil)
	out := make([]EntityListItem, len(matches))
	for i, e := range matches {
		out[i] = listItem(e)
	}
	return out
}

// GetEntity returns one entity with backlinks and its concurrency token.
func (s *Service) GetEntity(_ context.Context, id string) (*EntityDetail, error) {
	s.store.Lock()
	defer s.store.Unlock()
	e := s.store.Get(id)
	if e == nil {
		return nil, fmt.Errorf("entity %s: %w", id, apperr.ErrNotFound)
	}
	return s.detail(e), nil
}

// CreateEntity admits a new entity to the graph.
func (s *Service) CreateEntity(_ context.Context, rec entity.Record, origin events.Origin) (*EntityDetail, error) {
	s.store.Lock()
	defer s.store.Unlock()
	e, err := s.store.Create(rec, origin)
	if err != nil {
		return nil, err
	}
	return s.detail(e), nil
}

// UpdateEntity applies name and content changes with optimistic concurrency:
// a non-empty ifMatch must equal the entity's current checksum.
func (s *Service) UpdateEntity(_ context.Context, id string, name, content *string, ifMatch string) (*EntityDetail, error) {
	s.store.Lock()
	defer s.store.Unlock()
	e := s.store.Get(id)
	if e == nil {
		return nil, fmt.Errorf("entity %s: %w", id, apperr.ErrNotFound)
	}
	if ifMatch != "" && ifMatch != recordChecksum(e.ToRecord()) {
		return nil, fmt.Errorf("entity %s: %w", id, apperr.ErrConflict)
	}
	if name != nil {
		s.store.Rename(e, *name, nil)
	}
	if content != nil {
		if err := s.store.SetContent(e, *content, nil); err != nil {
			return nil, err
		}
	}
	return s.detail(e), nil
}

// DeleteEntity flags the entity deleted.
func (s *Service) DeleteEntity(_ context.Context, id string) error {
	s.store.Lock()
	defer s.store.Unlock()
	e := s.store.Get(id)
	if e == nil {
		return fmt.Errorf("entity %s: %w", id, apperr.ErrNotFound)
	}
	s.store.Delete(e, nil)
	return nil
}

// lifecycle applies one named flag transition.
func (s *Service) lifecycle(id string, apply func(*entity.Entity) error) (*EntityDetail, error) {
	s.store.Lock()
	defer s.store.Unlock()
	e := s.store.Get(id)
	if e == nil {
		return nil, fmt.Errorf("entity %s: %w", id, apperr.ErrNotFound)
	}
	if err := apply(e); err != nil {
		return nil, err
	}
	return s.detail(e), nil
}

// ArchiveEntity flags the entity archived.
func (s *Service) ArchiveEntity(_ context.Context, id string) (*EntityDetail, error) {
	return s.lifecycle(id, func(e *entity.Entity) error {
		s.store.Archive(e, nil)
		return nil
	})
}

// UnarchiveEntity clears the archived flag.
func (s *Service) UnarchiveEntity(_ context.Context, id string) (*EntityDetail, error) {
	return s.lifecycle(id, func(e *entity.Entity) error {
		s.store.Unarchive(e, nil)
		return nil
	})
}

// RestoreEntity clears the deleted flag.
func (s *Service) RestoreEntity(_ context.Context, id string) (*EntityDetail, error) {
	return s.lifecycle(id, func(e *entity.Entity) error {
		s.store.Restore(e, nil)
		return nil
	})
}

// CompleteEntity marks a completable entity done.
func (s *Service) CompleteEntity(_ context.Context, id string) (*EntityDetail, error) {
	return s.lifecycle(id, func(e *entity.Entity) error {
		return s.store.MarkComplete(e, nil)
	})
}

// ConvertEntity reassigns the entity's kind.
func (s *Service) ConvertEntity(_ context.Context, id string, to kind.Kind) (*EntityDetail, error) {
	return s.lifecycle(id, func(e *entity.Entity) error {
		return s.store.Convert(e, to, nil)
	})
}

// Children returns the entity's children, active members first.
func (s *Service) Children(_ context.Context, id string) ([]EntityListItem, error) {
	s.store.Lock()
	defer s.store.Unlock()
	e := s.store.Get(id)
	if e == nil {
		return nil, fmt.Errorf("entity %s: %w", id, apperr.ErrNotFound)
	}
	children := s.store.GetChildren(e)
	out := make([]EntityListItem, len(children))
	for i, c := range children {
		out[i] = listItem(c)
	}
	return out, nil
}

// InsertChildren splices the given entities into the parent's member list.
func (s *Service) InsertChildren(_ context.Context, id string, idx int, childIDs []string) (*EntityDetail, error) {
	s.store.Lock()
	defer s.store.Unlock()
	e := s.store.Get(id)
	if e == nil {
		return nil, fmt.Errorf("entity %s: %w", id, apperr.ErrNotFound)
	}
	children := make([]*entity.Entity, 0, len(childIDs))
	for _, cid := range childIDs {
		c := s.store.Get(cid)
		if c == nil {
			return nil, fmt.Errorf("entity %s: %w", cid, apperr.ErrNotFound)
		}
		children = append(children, c)
	}
	if err := s.store.Insert(e, idx, children...); err != nil {
		return nil, err
	}
	return s.detail(e), nil
}

// RemoveChild detaches one member from the parent's member list.
func (s *Service) RemoveChild(_ context.Context, id, childID string) (*EntityDetail, error) {
	s.store.Lock()
	defer s.store.Unlock()
	e := s.store.Get(id)
	if e == nil {
		return nil, fmt.Errorf("entity %s: %w", id, apperr.ErrNotFound)
	}
	if err := s.store.Remove(e, childID); err != nil {
		return nil, err
	}
	return s.detail(e), nil
}

// SetOrder rearranges the parent's member list; the new order must be a
// permutation of the current one.
func (s *Service) SetOrder(_ context.Context, id string, order []string) (*EntityDetail, error) {
	s.store.Lock()
	defer s.store.Unlock()
	e := s.store.Get(id)
	if e == nil {
		return nil, fmt.Errorf("entity %s: %w", id, apperr.ErrNotFound)
	}
	entities := make([]*entity.Entity, 0, len(order))
	for _, oid := range order {
		o := s.store.Get(oid)
		if o == nil {
			return nil, fmt.Errorf("entity %s: %w", oid, apperr.ErrNotFound)
		}
		entities = append(entities, o)
	}
	if err := s.store.SetOrder(e, entities); err != nil {
		return nil, err
	}
	return s.detail(e), nil
}

// AddParent adds a categorization relation from child to parent.
func (s *Service) AddParent(_ context.Context, id, parentID string, props map[string]any) (*EntityDetail, error) {
	s.store.Lock()
	defer s.store.Unlock()
	e := s.store.Get(id)
	if e == nil {
		return nil, fmt.Errorf("entity %s: %w", id, apperr.ErrNotFound)
	}
	p := s.store.Get(parentID)
	if p == nil {
		return nil, fmt.Errorf("entity %s: %w", parentID, apperr.ErrNotFound)
	}
	s.store.AddParent(e, p, props)
	return s.detail(e), nil
}

// RemoveParent drops the categorization relation from child to parent.
func (s *Service) RemoveParent(_ context.Context, id, parentID string) (*EntityDetail, error) {
	s.store.Lock()
	defer s.store.Unlock()
	e := s.store.Get(id)
	if e == nil {
		return nil, fmt.Errorf("entity %s: %w", id, apperr.ErrNotFound)
	}
	p := s.store.Get(parentID)
	if p == nil {
		return nil, fmt.Errorf("entity %s: %w", parentID, apperr.ErrNotFound)
	}
	s.store.RemoveParent(e, p)
	return s.detail(e), nil
}

// Uncategorized returns entities with no parent relations.
func (s *Service) Uncategorized(_ context.Context) []EntityListItem {
	s.store.Lock()
	defer s.store.Unlock()
	matches := s.store.GetUncategorized()
	out := make([]EntityListItem, len(matches))
	for i, e := range matches {
		out[i] = listItem(e)
	}
	return out
}

// Root returns the self entity.
func (s *Service) Root(_ context.Context) (*EntityDetail, error) {
	s.store.Lock()
	defer s.store.Unlock()
	e := s.store.GetRoot()
	if e == nil {
		return nil, fmt.Errorf("root: %w", apperr.ErrNotFound)
	}
	return s.detail(e), nil
}

// Search delegates to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Graph delegates to the index.
func (s *Service) Graph(_ context.Context) ([]index.GraphNode, []index.GraphLink, error) {
	return s.db.Graph()
}
