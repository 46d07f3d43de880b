// Package events implements the typed observation layer over entity
// mutations: a synchronous pub/sub bus plus per-entity update coalescing.
package events

import (
	"github.com/starford/othala/internal/entity"
	"github.com/starford/othala/internal/kind"
)

// Op is a mutation operation observable on the bus.
type Op string

const (
	OpCreate        Op = "create"
	OpUpdate        Op = "update"
	OpDelete        Op = "delete"
	OpArchive       Op = "archive"
	OpUnarchive     Op = "unarchive"
	OpRestore       Op = "restore"
	OpRename        Op = "rename"
	OpConvert       Op = "convert"
	OpInsert        Op = "insert"
	OpRemove        Op = "remove"
	OpNewOrder      Op = "new-order"
	OpMarkDraft     Op = "mark-draft"
	OpCompleteDraft Op = "complete-draft"
)

// Origin tags where a create came from.
type Origin string

const (
	OriginUser     Origin = "user"
	OriginExternal Origin = "external"
	OriginDrop     Origin = "drop"
)

// Event describes one observed mutation. Entity is the subject; Related is
// the secondary party where one exists (the inserted or removed child on
// insert/remove events).
type Event struct {
	Op      Op
	Entity  *entity.Entity
	Related *entity.Entity
	Origin  Origin
}

// Listener receives events synchronously. A panicking listener is not
// recovered by the bus; that propagates to the emitting caller.
type Listener func(Event)

// Filter selects which events a listener receives. Empty fields match
// everything.
type Filter struct {
	Ops   []Op
	Kinds []kind.Kind
}

func (f Filter) matches(ev Event) bool {
	if len(f.Ops) > 0 {
		ok := false
		for _, op := range f.Ops {
			if op == ev.Op {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.Kinds) > 0 {
		if ev.Entity == nil {
			return false
		}
		ok := false
		for _, k := range f.Kinds {
			if k == ev.Entity.Kind {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Subscription is the handle returned by On, used to unsubscribe.
type Subscription struct {
	filter Filter
	fn     Listener
}

// Bus dispatches events to listeners synchronously, in registration order.
// It carries no locking: the engine is single-writer by contract.
type Bus struct {
	subs []*Subscription
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// On registers a listener for events matching filter.
func (b *Bus) On(filter Filter, fn Listener) *Subscription {
	sub := &Subscription{filter: filter, fn: fn}
	b.subs = append(b.subs, sub)
	return sub
}

// Off removes a previously registered subscription.
func (b *Bus) Off(sub *Subscription) {
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers ev to every matching listener, in registration order.
func (b *Bus) Emit(ev Event) {
	for _, s := range b.subs {
		if s.filter.matches(ev) {
			s.fn(ev)
		}
	}
}
