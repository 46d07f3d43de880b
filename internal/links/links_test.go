package links

import (
	"testing"

	"github.com/starford/othala/internal/entity"
	"github.com/starford/othala/internal/kind"
)

func newNote(t *testing.T, content string) *entity.Entity {
	t.Helper()
	e, err := entity.New(kind.Note, entity.Record{
		Name:       "n",
		Properties: map[string]any{"content": content},
	})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestExtract_InternalSchemeOnly(t *testing.T) {
	e := newNote(t, "See [Target](user://abc) and [web](https://example.com).")
	ls := Extract(e)
	if len(ls) != 1 {
		t.Fatalf("len(links) = %d, want 1", len(ls))
	}
	if ls[0].Entity != "abc" {
		t.Errorf("entity = %q, want %q", ls[0].Entity, "abc")
	}
	if ls[0].Path != "user://abc" {
		t.Errorf("path = %q", ls[0].Path)
	}
	if ls[0].Name != "Target" {
		t.Errorf("name = %q", ls[0].Name)
	}
	if ls[0].Source != e {
		t.Errorf("source not set to owning entity")
	}
}

func TestExtract_DedupesByTarget(t *testing.T) {
	e := newNote(t, "[a](user://x) and again [b](user://x)")
	ls := Extract(e)
	if len(ls) != 1 {
		t.Fatalf("len(links) = %d, want 1", len(ls))
	}
	// First occurrence wins.
	if ls[0].Name != "a" {
		t.Errorf("name = %q, want %q", ls[0].Name, "a")
	}
}

func TestExtract_NoContent(t *testing.T) {
	col, err := entity.New(kind.Collection, entity.Record{})
	if err != nil {
		t.Fatal(err)
	}
	if ls := Extract(col); ls != nil {
		t.Errorf("expected nil links for contentless kind, got %v", ls)
	}
}

func TestExtract_EmptyTargetIgnored(t *testing.T) {
	e := newNote(t, "[x](user://)")
	if ls := Extract(e); len(ls) != 0 {
		t.Errorf("expected no links, got %v", ls)
	}
}
