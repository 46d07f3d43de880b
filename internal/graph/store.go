// Package graph implements the entity store: the id index, the containment
// adjacency, the backlink index, and the typed mutation/observation
// protocol over them.
package graph

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/starford/othala/internal/entity"
	"github.com/starford/othala/internal/events"
	"github.com/starford/othala/internal/kind"
)

// Store owns the canonical entity instances. It is constructed explicitly
// and passed to whoever needs it; there is no package-level singleton.
//
// The store assumes one logical owner at a time and does no locking of its
// own. When callers span goroutines (HTTP handlers, the file watcher),
// each must hold Lock/Unlock around an operation and any entity reads it
// does afterward; window-end coalesced deliveries take the same lock.
type Store struct {
	logger *slog.Logger
	mu     sync.Mutex

	byID     map[string]*entity.Entity
	byKind   map[kind.Kind][]*entity.Entity
	childMap map[string][]*entity.Entity

	bus       *events.Bus
	coalescer *events.Coalescer
}

// Option configures a Store.
type Option func(*options)

type options struct {
	coalesceWindow time.Duration
}

// WithCoalesceWindow overrides the update coalescing window.
func WithCoalesceWindow(d time.Duration) Option {
	return func(o *options) { o.coalesceWindow = d }
}

// New creates an empty store.
func New(logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{
		logger:   logger,
		byID:     make(map[string]*entity.Entity),
		byKind:   make(map[kind.Kind][]*entity.Entity),
		childMap: make(map[string][]*entity.Entity),
		bus:      events.NewBus(),
	}
	// Window-end deliveries fire on a timer goroutine; they become the
	// owner for the duration of the emit. An entity deleted while the
	// delivery was in flight is dropped, so no consumer ever observes an
	// update after a delete.
	s.coalescer = events.NewCoalescer(o.coalesceWindow, s.bus.Emit, func(ev events.Event) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ev.Entity != nil && ev.Entity.Deleted {
			return
		}
		s.bus.Emit(ev)
	})
	return s
}

// Lock acquires the owner lock. Every goroutine that mutates or reads the
// graph concurrently with others must hold it for the whole operation,
// including any entity state it reads after a mutation returns.
func (s *Store) Lock() { s.mu.Lock() }

// Unlock releases the owner lock.
func (s *Store) Unlock() { s.mu.Unlock() }

// Close releases the coalescer's timers. Pending suppressed updates are
// dropped.
func (s *Store) Close() {
	s.coalescer.Close()
}

// On registers a listener for events matching filter.
func (s *Store) On(filter events.Filter, fn events.Listener) *events.Subscription {
	return s.bus.On(filter, fn)
}

// Off removes a subscription.
func (s *Store) Off(sub *events.Subscription) {
	s.bus.Off(sub)
}

// Get returns the entity with the given id, or nil when absent. It never
// fails: absence is an answer, not an error.
func (s *Store) Get(id string) *entity.Entity {
	return s.byID[id]
}

// Len returns the number of loaded entities (deleted ones included; they
// stay in the id index).
func (s *Store) Len() int {
	return len(s.byID)
}

// All returns every loaded entity in stable (created_at, id) order.
func (s *Store) All() []*entity.Entity {
	out := make([]*entity.Entity, 0, len(s.byID))
	for _, e := range s.byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Records serializes the whole graph to its flat record form.
func (s *Store) Records() []entity.Record {
	all := s.All()
	out := make([]entity.Record, len(all))
	for i, e := range all {
		out[i] = e.ToRecord()
	}
	return out
}

// Filter narrows a query. Nil tri-state fields match everything; set
// fields compose by logical AND.
type Filter struct {
	Kinds      []kind.Kind
	Archived   *bool
	Deleted    *bool
	HasParents *bool
}

func (f Filter) matches(e *entity.Entity) bool {
	if len(f.Kinds) > 0 {
		ok := false
		for _, k := range f.Kinds {
			if e.Kind == k {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.Archived != nil && e.Archived != *f.Archived {
		return false
	}
	if f.Deleted != nil && e.Deleted != *f.Deleted {
		return false
	}
	if f.HasParents != nil && (len(e.Parents) > 0) != *f.HasParents {
		return false
	}
	return true
}

// Query returns entities matching the filter and the optional predicate.
func (s *Store) Query(f Filter, pred func(*entity.Entity) bool) []*entity.Entity {
	var out []*entity.Entity
	for _, e := range s.All() {
		if !f.matches(e) {
			continue
		}
		if pred != nil && !pred(e) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// GetEntities returns all entities of one kind, optionally filtered by a
// predicate.
func (s *Store) GetEntities(k kind.Kind, pred func(*entity.Entity) bool) []*entity.Entity {
	var out []*entity.Entity
	for _, e := range s.byKind[k] {
		if pred != nil && !pred(e) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// GetRoot returns the self entity, the signed-in user's root, or nil when
// none is loaded.
func (s *Store) GetRoot() *entity.Entity {
	for _, e := range s.byKind[kind.Self] {
		return e
	}
	return nil
}

// GetUncategorized returns entities with zero parent relations. The self
// root and deleted entities are excluded; they are structurally parentless
// but not "uncategorized" in any view.
func (s *Store) GetUncategorized() []*entity.Entity {
	var out []*entity.Entity
	for _, e := range s.All() {
		if len(e.Parents) == 0 && !e.Deleted && e.Kind != kind.Self {
			out = append(out, e)
		}
	}
	return out
}

// GetChildren returns the union of the entity's own active member list and
// any childMap-resolved children not already active members. This covers
// children whose parent relation exists but which are not, or no longer,
// active members (archived children stay enumerable this way).
func (s *Store) GetChildren(e *entity.Entity) []*entity.Entity {
	out := append([]*entity.Entity(nil), e.Members...)
	seen := make(map[string]struct{}, len(out))
	for _, m := range out {
		seen[m.ID] = struct{}{}
	}
	for _, c := range s.childMap[e.ID] {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// index admits an entity to the id and kind indexes.
func (s *Store) index(e *entity.Entity) {
	s.byID[e.ID] = e
	s.byKind[e.Kind] = append(s.byKind[e.Kind], e)
}

// reindexKind moves an entity between kind lists after a conversion.
func (s *Store) reindexKind(e *entity.Entity, from kind.Kind) {
	list := s.byKind[from]
	for i, x := range list {
		if x == e {
			s.byKind[from] = append(list[:i], list[i+1:]...)
			break
		}
	}
	s.byKind[e.Kind] = append(s.byKind[e.Kind], e)
}

// childMapAdd records child as having a parent relation toward parentID.
func (s *Store) childMapAdd(parentID string, child *entity.Entity) {
	for _, c := range s.childMap[parentID] {
		if c.ID == child.ID {
			return
		}
	}
	s.childMap[parentID] = append(s.childMap[parentID], child)
}

// childMapRemove drops child from parentID's adjacency.
func (s *Store) childMapRemove(parentID string, childID string) {
	list := s.childMap[parentID]
	for i, c := range list {
		if c.ID == childID {
			s.childMap[parentID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}
