package sse

import (
	"github.com/starford/othala/internal/events"
	"github.com/starford/othala/internal/graph"
)

// Bridge forwards every store mutation to the broker as an entity event.
// The event type is "entity." plus the operation name, so a create becomes
// entity.create and a new-order becomes entity.new-order. Returns the
// subscription so the caller can detach on shutdown.
func Bridge(b *Broker, s *graph.Store) *events.Subscription {
	return s.On(events.Filter{}, func(ev events.Event) {
		if ev.Entity == nil {
			return
		}
		b.PublishEntityEvent(string(ev.Op), ev.Entity.ID, string(ev.Entity.Kind))
	})
}
