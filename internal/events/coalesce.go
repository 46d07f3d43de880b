package events

import (
	"sync"
	"time"
)

// DefaultWindow is the update coalescing window.
const DefaultWindow = 5 * time.Millisecond

// Coalescer throttles update notifications per entity: the first update
// fires immediately and opens a window; further updates on the same entity
// inside the window are suppressed except the most recent one, which fires
// exactly once at window end. Flush runs a pending suppressed update
// synchronously (the store forces this before delete notifications, so no
// consumer ever observes an update after a delete).
//
// Notify and Flush deliver through emit on the caller's goroutine.
// Window-end deliveries happen on a timer goroutine and go through
// deferred instead, so the owner can reacquire its own serialization
// before the event reaches subscribers. The mutex protects only the
// window map.
type Coalescer struct {
	window   time.Duration
	emit     func(Event)
	deferred func(Event)

	mu      sync.Mutex
	windows map[string]*updateWindow
}

type updateWindow struct {
	timer   *time.Timer
	pending *Event
}

// NewCoalescer builds a coalescer delivering synchronous notifications
// through emit and window-end notifications through deferred. A nil
// deferred falls back to emit; a non-positive window falls back to
// DefaultWindow.
func NewCoalescer(window time.Duration, emit, deferred func(Event)) *Coalescer {
	if window <= 0 {
		window = DefaultWindow
	}
	if deferred == nil {
		deferred = emit
	}
	return &Coalescer{
		window:   window,
		emit:     emit,
		deferred: deferred,
		windows:  make(map[string]*updateWindow),
	}
}

// Notify reports an update on ev.Entity, firing or suppressing it per the
// coalescing contract.
func (c *Coalescer) Notify(ev Event) {
	if ev.Entity == nil {
		c.emit(ev)
		return
	}
	id := ev.Entity.ID

	c.mu.Lock()
	if w, open := c.windows[id]; open {
		w.pending = &ev
		c.mu.Unlock()
		return
	}
	w := &updateWindow{}
	w.timer = time.AfterFunc(c.window, func() { c.expire(id) })
	c.windows[id] = w
	c.mu.Unlock()

	c.emit(ev)
}

// expire runs at window end on the timer goroutine: a suppressed update
// fires through the deferred path and opens a fresh window; otherwise the
// window just closes.
func (c *Coalescer) expire(id string) {
	c.mu.Lock()
	w, open := c.windows[id]
	if !open {
		c.mu.Unlock()
		return
	}
	if w.pending == nil {
		delete(c.windows, id)
		c.mu.Unlock()
		return
	}
	ev := *w.pending
	w.pending = nil
	w.timer = time.AfterFunc(c.window, func() { c.expire(id) })
	c.mu.Unlock()

	c.deferred(ev)
}

// Flush synchronously delivers any pending suppressed update for id and
// closes its window.
func (c *Coalescer) Flush(id string) {
	c.mu.Lock()
	w, open := c.windows[id]
	if !open {
		c.mu.Unlock()
		return
	}
	w.timer.Stop()
	delete(c.windows, id)
	pending := w.pending
	c.mu.Unlock()

	if pending != nil {
		c.emit(*pending)
	}
}

// Close stops every open window without delivering pending updates.
func (c *Coalescer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, w := range c.windows {
		w.timer.Stop()
		delete(c.windows, id)
	}
}
