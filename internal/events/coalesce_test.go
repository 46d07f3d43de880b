package events

import (
	"sync"
	"testing"
	"time"

	"github.com/starford/othala/internal/kind"
)

type recorder struct {
	mu  sync.Mutex
	evs []Event
}

func (r *recorder) emit(ev Event) {
	r.mu.Lock()
	r.evs = append(r.evs, ev)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.evs)
}

func TestCoalescer_FirstUpdateFiresImmediately(t *testing.T) {
	rec := &recorder{}
	c := NewCoalescer(50*time.Millisecond, rec.emit, nil)
	defer c.Close()

	e := testEntity(t, kind.Note)
	c.Notify(Event{Op: OpUpdate, Entity: e})

	if rec.count() != 1 {
		t.Fatalf("count = %d, want 1", rec.count())
	}
}

func TestCoalescer_SuppressesWithinWindow(t *testing.T) {
	rec := &recorder{}
	c := NewCoalescer(60*time.Millisecond, rec.emit, nil)
	defer c.Close()

	e := testEntity(t, kind.Note)
	c.Notify(Event{Op: OpUpdate, Entity: e})
	c.Notify(Event{Op: OpUpdate, Entity: e})
	c.Notify(Event{Op: OpUpdate, Entity: e})

	if rec.count() != 1 {
		t.Fatalf("count = %d during window, want 1", rec.count())
	}

	// The latest suppressed update fires once at window end.
	time.Sleep(100 * time.Millisecond)
	if rec.count() != 2 {
		t.Fatalf("count = %d after window, want 2", rec.count())
	}
}

func TestCoalescer_IndependentEntities(t *testing.T) {
	rec := &recorder{}
	c := NewCoalescer(60*time.Millisecond, rec.emit, nil)
	defer c.Close()

	c.Notify(Event{Op: OpUpdate, Entity: testEntity(t, kind.Note)})
	c.Notify(Event{Op: OpUpdate, Entity: testEntity(t, kind.Note)})

	if rec.count() != 2 {
		t.Fatalf("count = %d, want 2 (one per entity)", rec.count())
	}
}

func TestCoalescer_WindowEndUsesDeferredDelivery(t *testing.T) {
	direct := &recorder{}
	deferred := &recorder{}
	c := NewCoalescer(40*time.Millisecond, direct.emit, deferred.emit)
	defer c.Close()

	e := testEntity(t, kind.Note)
	c.Notify(Event{Op: OpUpdate, Entity: e})
	c.Notify(Event{Op: OpUpdate, Entity: e})

	// The immediate delivery stays on the caller's goroutine.
	if direct.count() != 1 || deferred.count() != 0 {
		t.Fatalf("direct = %d deferred = %d before window end, want 1/0", direct.count(), deferred.count())
	}

	// The suppressed update fires at window end through the deferred path.
	time.Sleep(80 * time.Millisecond)
	if direct.count() != 1 || deferred.count() != 1 {
		t.Fatalf("direct = %d deferred = %d after window end, want 1/1", direct.count(), deferred.count())
	}
}

func TestCoalescer_FlushStaysSynchronous(t *testing.T) {
	direct := &recorder{}
	deferred := &recorder{}
	c := NewCoalescer(time.Hour, direct.emit, deferred.emit)
	defer c.Close()

	e := testEntity(t, kind.Note)
	c.Notify(Event{Op: OpUpdate, Entity: e})
	c.Notify(Event{Op: OpUpdate, Entity: e})
	c.Flush(e.ID)

	if direct.count() != 2 || deferred.count() != 0 {
		t.Fatalf("direct = %d deferred = %d after flush, want 2/0", direct.count(), deferred.count())
	}
}

func TestCoalescer_FlushDeliversPendingSynchronously(t *testing.T) {
	rec := &recorder{}
	c := NewCoalescer(time.Hour, rec.emit, nil)
	defer c.Close()

	e := testEntity(t, kind.Note)
	c.Notify(Event{Op: OpUpdate, Entity: e})
	c.Notify(Event{Op: OpUpdate, Entity: e})
	if rec.count() != 1 {
		t.Fatalf("count = %d, want 1", rec.count())
	}

	c.Flush(e.ID)
	if rec.count() != 2 {
		t.Fatalf("count = %d after flush, want 2", rec.count())
	}

	// Nothing pending now; flush is a no-op.
	c.Flush(e.ID)
	if rec.count() != 2 {
		t.Fatalf("count = %d after second flush, want 2", rec.count())
	}
}
