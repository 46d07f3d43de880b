// Package stream runs cooperative content generation into chat entities:
// a producer yields deltas, the loop appends them through the store and
// reports each one, and the chat's status property tracks the outcome.
package stream

import (
	"context"
	"fmt"

	"github.com/starford/othala/internal/entity"
	"github.com/starford/othala/internal/graph"
	"github.com/starford/othala/internal/kind"
)

// Chat status property values.
const (
	StatusIdle      = "idle"
	StatusStreaming = "streaming"
	StatusDone      = "done"
	StatusFailed    = "failed"
)

// CancelNotice is appended to content when generation is cancelled.
const CancelNotice = "\n\n[generation cancelled]"

// Delta is one incremental piece of generated content. A non-nil Err ends
// the stream.
type Delta struct {
	Content string
	Err     error
}

// Producer generates chat content incrementally. The returned channel
// closes when the producer finishes or has stopped.
type Producer interface {
	Stream(ctx context.Context) (<-chan Delta, error)
	// Stop asks the producer to halt early. It must be safe to call
	// after the stream channel has closed.
	Stop()
}

// Run consumes the producer into chat until completion, producer error, or
// ctx cancellation. Each appended delta is reported through onDelta (may
// be nil). No timeout is imposed here; cancellation is the caller's.
// Run holds the store's owner lock for each append, not across waits, so
// the store stays shareable with the serving shell while a stream runs.
//
// Outcomes:
//   - completion: status done, a draft chat is settled.
//   - producer error: the error text is captured into content, status
//     failed, the error returned.
//   - cancellation: status failed, a cancellation notice appended, the
//     producer asked to stop, ctx.Err() returned.
func Run(ctx context.Context, store *graph.Store, chat *entity.Entity, p Producer, onDelta func(string)) error {
	store.Lock()
	streamable := chat.Can(kind.CapStream)
	store.Unlock()
	if !streamable {
		return fmt.Errorf("stream: %s (%s) is not streamable", chat.ID, chat.Kind)
	}

	setStatus(store, chat, StatusStreaming)

	ch, err := p.Stream(ctx)
	if err != nil {
		return fail(store, chat, err)
	}

	for {
		select {
		case <-ctx.Done():
			p.Stop()
			store.Lock()
			_ = store.AppendContent(chat, CancelNotice)
			store.Unlock()
			setStatus(store, chat, StatusFailed)
			return ctx.Err()

		case d, ok := <-ch:
			if !ok {
				setStatus(store, chat, StatusDone)
				store.Lock()
				store.CompleteDraft(chat)
				store.Unlock()
				return nil
			}
			if d.Err != nil {
				return fail(store, chat, d.Err)
			}
			if d.Content == "" {
				continue
			}
			store.Lock()
			err := store.AppendContent(chat, d.Content)
			store.Unlock()
			if err != nil {
				return fail(store, chat, err)
			}
			if onDelta != nil {
				onDelta(d.Content)
			}
		}
	}
}

// fail captures err into the chat content and flags the stream failed.
func fail(store *graph.Store, chat *entity.Entity, err error) error {
	store.Lock()
	_ = store.AppendContent(chat, fmt.Sprintf("\n\n[generation failed: %v]", err))
	store.Unlock()
	setStatus(store, chat, StatusFailed)
	return err
}

func setStatus(store *graph.Store, chat *entity.Entity, status string) {
	store.Lock()
	defer store.Unlock()
	chat.Properties["status"] = status
	store.Touch(chat)
}
