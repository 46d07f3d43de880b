package storage

import (
	"io"
	"log/slog"
	"testing"

	"github.com/starford/othala/internal/entity"
	"github.com/starford/othala/internal/events"
	"github.com/starford/othala/internal/graph"
	"github.com/starford/othala/internal/kind"
)

func testPersist(t *testing.T) (*graph.Store, *FS) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := graph.New(logger)
	t.Cleanup(s.Close)
	fs := testFS(t)
	sub := Persist(s, fs, logger)
	t.Cleanup(func() { s.Off(sub) })
	return s, fs
}

func TestPersist_WritesOnCreate(t *testing.T) {
	s, fs := testPersist(t)

	if _, err := s.Create(entity.Record{ID: "n1", Kind: kind.Note, Name: "Note"}, events.OriginUser); err != nil {
		t.Fatal(err)
	}

	data, err := fs.Read("n1")
	if err != nil {
		t.Fatal(err)
	}
	rec, err := DecodeRecord(data)
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != "n1" || rec.Kind != kind.Note || rec.Name != "Note" {
		t.Errorf("rec = %+v", rec)
	}
}

func TestPersist_SkipsExternalCreates(t *testing.T) {
	s, fs := testPersist(t)

	if _, err := s.Create(entity.Record{ID: "w1", Kind: kind.Note}, events.OriginExternal); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Read("w1"); err == nil {
		t.Error("external create should not be echoed back to disk")
	}

	// Later mutations of the same entity still persist.
	e := s.Get("w1")
	s.Rename(e, "renamed", nil)
	data, err := fs.Read("w1")
	if err != nil {
		t.Fatal(err)
	}
	rec, err := DecodeRecord(data)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Name != "renamed" {
		t.Errorf("name = %q", rec.Name)
	}
}

func TestPersist_StructuralEventsWriteBothSides(t *testing.T) {
	s, fs := testPersist(t)

	parent, err := s.Create(entity.Record{ID: "p", Kind: kind.Collection}, events.OriginUser)
	if err != nil {
		t.Fatal(err)
	}
	child, err := s.Create(entity.Record{ID: "c", Kind: kind.Note}, events.OriginUser)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(parent, 0, child); err != nil {
		t.Fatal(err)
	}

	data, err := fs.Read("p")
	if err != nil {
		t.Fatal(err)
	}
	rec, err := DecodeRecord(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Entities) != 1 || rec.Entities[0] != "c" {
		t.Errorf("parent members = %v", rec.Entities)
	}

	data, err = fs.Read("c")
	if err != nil {
		t.Fatal(err)
	}
	rec, err = DecodeRecord(data)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := rec.Parents["p"]; !ok {
		t.Errorf("child parents = %v", rec.Parents)
	}
}

func TestPersist_DeleteRewritesWithFlag(t *testing.T) {
	s, fs := testPersist(t)

	e, err := s.Create(entity.Record{ID: "d", Kind: kind.Note}, events.OriginUser)
	if err != nil {
		t.Fatal(err)
	}
	s.Delete(e, nil)

	data, err := fs.Read("d")
	if err != nil {
		t.Fatal(err)
	}
	rec, err := DecodeRecord(data)
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Deleted {
		t.Error("deleted flag should persist; records are never removed by the engine")
	}
}
