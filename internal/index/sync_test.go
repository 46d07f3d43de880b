package index

import (
	"io"
	"log/slog"
	"testing"

	"github.com/starford/othala/internal/entity"
	"github.com/starford/othala/internal/events"
	"github.com/starford/othala/internal/graph"
	"github.com/starford/othala/internal/kind"
)

func testStore(t *testing.T) *graph.Store {
	t.Helper()
	s := graph.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(s.Close)
	return s
}

func TestRebuild(t *testing.T) {
	db := testDB(t)
	s := testStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.Load([]entity.Record{
		{ID: "a", Kind: kind.Note, Name: "A", Properties: map[string]any{"content": "see [B](user://b)"}},
		{ID: "b", Kind: kind.Note, Name: "B"},
		{ID: "gone", Kind: kind.Note, Deleted: true},
	})
	// A stale row from a previous run.
	_ = db.UpsertEntity(EntityRow{ID: "stale"}, "", nil)

	if err := Rebuild(db, s, logger); err != nil {
		t.Fatal(err)
	}

	ids, err := db.AllIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v", ids)
	}
	if _, ok := ids["gone"]; ok {
		t.Error("deleted entity should not be indexed")
	}
	if _, ok := ids["stale"]; ok {
		t.Error("stale row should be removed")
	}

	bl, err := db.Backlinks("b")
	if err != nil {
		t.Fatal(err)
	}
	if len(bl) != 1 || bl[0] != "a" {
		t.Errorf("backlinks = %v", bl)
	}
}

func TestAttach_FollowsMutations(t *testing.T) {
	db := testDB(t)
	s := testStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sub := Attach(db, s, logger)
	defer s.Off(sub)

	e, err := s.Create(entity.Record{ID: "n", Kind: kind.Note, Name: "Note"}, events.OriginUser)
	if err != nil {
		t.Fatal(err)
	}
	row, err := db.GetEntity("n")
	if err != nil {
		t.Fatal(err)
	}
	if row == nil || row.Name != "Note" {
		t.Fatalf("row = %+v", row)
	}

	s.Rename(e, "Renamed", nil)
	row, _ = db.GetEntity("n")
	if row == nil || row.Name != "Renamed" {
		t.Errorf("row = %+v", row)
	}

	s.Delete(e, nil)
	row, _ = db.GetEntity("n")
	if row != nil {
		t.Error("deleted entity should leave the index")
	}
}

func TestAttach_IndexesArchivedFlag(t *testing.T) {
	db := testDB(t)
	s := testStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sub := Attach(db, s, logger)
	defer s.Off(sub)

	e, err := s.Create(entity.Record{ID: "n", Kind: kind.Note}, events.OriginUser)
	if err != nil {
		t.Fatal(err)
	}
	s.Archive(e, nil)

	row, err := db.GetEntity("n")
	if err != nil {
		t.Fatal(err)
	}
	if row == nil || !row.Archived {
		t.Errorf("row = %+v", row)
	}
}
