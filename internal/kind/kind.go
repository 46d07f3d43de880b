// Package kind defines the closed set of entity kinds and the capability
// composition rules attached to each one.
package kind

import (
	"fmt"

	"github.com/starford/othala/internal/apperr"
)

// Kind is the closed type tag of an entity.
type Kind string

const (
	Note       Kind = "note"
	Task       Kind = "task"
	Collection Kind = "collection"
	Chat       Kind = "chat"
	Media      Kind = "media"
	Self       Kind = "self"
)

// Kinds is the ordered, closed set of all kinds.
var Kinds = []Kind{Note, Task, Collection, Chat, Media, Self}

// Capability is a behavior an entity kind composes in.
type Capability uint8

const (
	// CapContent marks kinds with an editable body that participates in
	// link parsing.
	CapContent Capability = 1 << iota
	// CapComplete marks kinds carrying completed/completed_at and a
	// mark-complete operation.
	CapComplete
	// CapConvert marks kinds whose instances may change kind.
	CapConvert
	// CapSource marks kinds backed by an external media source.
	CapSource
	// CapStream marks kinds whose content may be appended incrementally
	// by a streaming producer.
	CapStream
)

// Spec describes one kind in the registry.
type Spec struct {
	Kind        Kind
	DisplayName string
	Caps        Capability
	// DraftStart marks kinds whose instances begin life as drafts.
	DraftStart bool
	// UserCreatable is false for kinds only the engine may instantiate.
	UserCreatable bool
	// DefaultProperties is the property key set owned by this kind.
	// Conversion uses the key-set delta between specs.
	DefaultProperties map[string]any
}

// Has reports whether the kind composes in the given capability.
func (s Spec) Has(c Capability) bool {
	return s.Caps&c != 0
}

// Convertible reports whether instances of the kind may change kind.
func (s Spec) Convertible() bool {
	return s.Has(CapConvert)
}

var registry = map[Kind]Spec{
	Note: {
		Kind:        Note,
		DisplayName: "Note",
		Caps:        CapContent | CapComplete | CapConvert,
		DefaultProperties: map[string]any{
			"content":   "",
			"completed": false,
		},
	},
	Task: {
		Kind:        Task,
		DisplayName: "Task",
		Caps:        CapContent | CapComplete | CapConvert,
		DefaultProperties: map[string]any{
			"content":   "",
			"completed": false,
			"due_at":    nil,
		},
	},
	Collection: {
		Kind:              Collection,
		DisplayName:       "Collection",
		Caps:              CapConvert,
		DefaultProperties: map[string]any{},
	},
	Chat: {
		Kind:        Chat,
		DisplayName: "Chat",
		Caps:        CapContent | CapStream,
		DraftStart:  true,
		DefaultProperties: map[string]any{
			"content": "",
			"status":  "idle",
			"model":   "",
		},
	},
	Media: {
		Kind:        Media,
		DisplayName: "Media",
		Caps:        CapSource,
		DefaultProperties: map[string]any{
			"source":    "",
			"mime_type": "",
		},
	},
	Self: {
		Kind:              Self,
		DisplayName:       "Me",
		DefaultProperties: map[string]any{},
	},
}

func init() {
	for k, s := range registry {
		s.UserCreatable = k != Self
		registry[k] = s
	}
}

// Lookup returns the registry spec for k, or ErrUnsupportedKind when k is
// not part of the closed set.
func Lookup(k Kind) (Spec, error) {
	s, ok := registry[k]
	if !ok {
		return Spec{}, fmt.Errorf("kind %q: %w", k, apperr.ErrUnsupportedKind)
	}
	return s, nil
}

// Known reports whether k is a registered kind.
func Known(k Kind) bool {
	_, ok := registry[k]
	return ok
}

// DefaultProperties returns a fresh copy of the kind's default property map.
// Unknown kinds yield an empty map.
func DefaultProperties(k Kind) map[string]any {
	s, ok := registry[k]
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(s.DefaultProperties))
	for key, v := range s.DefaultProperties {
		out[key] = v
	}
	return out
}
