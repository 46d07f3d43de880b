package graph

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/entity"
	"github.com/starford/othala/internal/events"
	"github.com/starford/othala/internal/kind"
)

func testStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(logger, opts...)
	t.Cleanup(s.Close)
	return s
}

func mustCreate(t *testing.T, s *Store, rec entity.Record) *entity.Entity {
	t.Helper()
	e, err := s.Create(rec, events.OriginUser)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestLoad_BacklinkScenario(t *testing.T) {
	s := testStore(t)
	s.Load([]entity.Record{
		{ID: "c1", Kind: kind.Collection, Name: "Projects"},
		{ID: "n1", Kind: kind.Note, Name: "Note", Properties: map[string]any{
			"content": "relates to [Projects](user://c1)",
		}},
	})

	c := s.Get("c1")
	n := s.Get("n1")
	if c == nil || n == nil {
		t.Fatal("entities not loaded")
	}
	if len(c.Backlinks) != 1 {
		t.Fatalf("len(c.Backlinks) = %d, want 1", len(c.Backlinks))
	}
	if c.Backlinks[0].Source != n || c.Backlinks[0].Entity != "c1" {
		t.Errorf("backlink = %+v", c.Backlinks[0])
	}
	// Relational mass includes the backlink.
	if c.RelationalAliveness < 1 {
		t.Errorf("c.RelationalAliveness = %f, want >= 1", c.RelationalAliveness)
	}
}

func TestLoad_SkipsUnknownKindAndContinues(t *testing.T) {
	s := testStore(t)
	s.Load([]entity.Record{
		{ID: "x1", Kind: kind.Kind("hologram")},
		{ID: "n1", Kind: kind.Note},
	})
	if s.Get("x1") != nil {
		t.Error("unknown kind should be skipped")
	}
	if s.Get("n1") == nil {
		t.Error("load should continue past unknown kinds")
	}
}

func TestLoad_StripsInactiveMembers(t *testing.T) {
	s := testStore(t)
	s.Load([]entity.Record{
		{ID: "col", Kind: kind.Collection, Entities: []string{"a", "b", "gone"}},
		{ID: "a", Kind: kind.Note},
		{ID: "b", Kind: kind.Note, Archived: true},
	})

	col := s.Get("col")
	if len(col.Members) != 1 || col.Members[0].ID != "a" {
		ids := make([]string, len(col.Members))
		for i, m := range col.Members {
			ids[i] = m.ID
		}
		t.Errorf("members = %v, want [a]", ids)
	}
}

func TestLoad_DanglingParentTolerated(t *testing.T) {
	s := testStore(t)
	s.Load([]entity.Record{
		{ID: "n1", Kind: kind.Note, Parents: map[string]entity.RelationRecord{
			"ghost": {CreatedAt: time.Now()},
		}},
	})

	n := s.Get("n1")
	if len(n.Parents) != 1 {
		t.Fatalf("dangling relation should be kept, got %d relations", len(n.Parents))
	}
	if n.Parents[0].Target != nil {
		t.Error("dangling relation target should stay nil")
	}
}

func TestInsert_CycleRejectedAndGraphUnchanged(t *testing.T) {
	s := testStore(t)
	a := mustCreate(t, s, entity.Record{ID: "a", Kind: kind.Collection})
	b := mustCreate(t, s, entity.Record{ID: "b", Kind: kind.Collection})

	if err := s.Insert(a, 0, b); err != nil {
		t.Fatal(err)
	}

	// A contains B; B.insert(A) must close no cycle.
	err := s.Insert(b, 0, a)
	if !apperr.IsRecursiveContainment(err) {
		t.Fatalf("err = %v, want RecursiveContainmentError", err)
	}
	if len(b.Members) != 0 {
		t.Error("b.Members mutated by failed insert")
	}
	if len(a.Members) != 1 || a.Members[0] != b {
		t.Error("a.Members mutated by failed insert")
	}
	if got := s.childMap["b"]; len(got) != 0 {
		t.Error("childMap mutated by failed insert")
	}
}

func TestInsert_SelfRejected(t *testing.T) {
	s := testStore(t)
	a := mustCreate(t, s, entity.Record{ID: "a", Kind: kind.Collection})
	if err := s.Insert(a, 0, a); !apperr.IsRecursiveContainment(err) {
		t.Fatalf("err = %v, want RecursiveContainmentError", err)
	}
}

func TestInsert_EmitsPerChildAndKeepsOrder(t *testing.T) {
	s := testStore(t)
	col := mustCreate(t, s, entity.Record{ID: "col", Kind: kind.Collection})
	x := mustCreate(t, s, entity.Record{ID: "x", Kind: kind.Note})
	y := mustCreate(t, s, entity.Record{ID: "y", Kind: kind.Note})

	var inserted []string
	s.On(events.Filter{Ops: []events.Op{events.OpInsert}}, func(ev events.Event) {
		inserted = append(inserted, ev.Related.ID)
	})

	if err := s.Insert(col, 0, x, y); err != nil {
		t.Fatal(err)
	}
	if len(col.Members) != 2 || col.Members[0] != x || col.Members[1] != y {
		t.Error("final member order should match caller intent")
	}
	if len(inserted) != 2 {
		t.Errorf("insert events = %d, want one per child", len(inserted))
	}
	// Child gained the parent relation.
	if len(x.Parents) != 1 || x.Parents[0].ID != "col" {
		t.Error("inserted child missing parent relation")
	}
}

func TestArchiveRestore_MembershipInvariantIncremental(t *testing.T) {
	s := testStore(t)
	col := mustCreate(t, s, entity.Record{ID: "col", Kind: kind.Collection})
	n := mustCreate(t, s, entity.Record{ID: "n", Kind: kind.Note})
	if err := s.Insert(col, 0, n); err != nil {
		t.Fatal(err)
	}

	s.Archive(n, nil)
	if col.Has("n", false) {
		t.Error("archived entity must leave active member lists")
	}
	// Still enumerable through the adjacency union.
	children := s.GetChildren(col)
	if len(children) != 1 || children[0] != n {
		t.Error("archived child should remain reachable via GetChildren")
	}

	s.Unarchive(n, nil)
	if !col.Has("n", false) {
		t.Error("unarchive must reattach to parents' member lists")
	}

	s.Delete(n, nil)
	if col.Has("n", false) {
		t.Error("deleted entity must leave active member lists")
	}
	if s.Get("n") == nil {
		t.Error("deletion is a flag transition, not index removal")
	}

	s.Restore(n, nil)
	if !col.Has("n", false) {
		t.Error("restore must reattach to parents' member lists")
	}
}

func TestSetOrder_RoundTripAndRejection(t *testing.T) {
	s := testStore(t)
	col := mustCreate(t, s, entity.Record{ID: "col", Kind: kind.Collection})
	a := mustCreate(t, s, entity.Record{ID: "a", Kind: kind.Note})
	b := mustCreate(t, s, entity.Record{ID: "b", Kind: kind.Note})
	c := mustCreate(t, s, entity.Record{ID: "c", Kind: kind.Note})
	if err := s.Insert(col, 0, a, b, c); err != nil {
		t.Fatal(err)
	}

	if err := s.SetOrder(col, []*entity.Entity{c, a, b}); err != nil {
		t.Fatal(err)
	}
	if col.Members[0] != c || col.Members[1] != a || col.Members[2] != b {
		t.Error("order not applied")
	}

	// A set differing by one id fails without mutating state.
	d := mustCreate(t, s, entity.Record{ID: "d", Kind: kind.Note})
	err := s.SetOrder(col, []*entity.Entity{d, a, b})
	if err == nil {
		t.Fatal("expected invalid membership error")
	}
	if col.Members[0] != c {
		t.Error("failed reorder must not mutate state")
	}
}

func TestSetContent_BacklinkSymmetry(t *testing.T) {
	s := testStore(t)
	target := mustCreate(t, s, entity.Record{ID: "t", Kind: kind.Collection})
	other := mustCreate(t, s, entity.Record{ID: "o", Kind: kind.Note, Properties: map[string]any{
		"content": "[t](user://t)",
	}})
	src := mustCreate(t, s, entity.Record{ID: "s", Kind: kind.Note})

	if err := s.SetContent(src, "now links [t](user://t)", nil); err != nil {
		t.Fatal(err)
	}
	if len(target.Backlinks) != 2 {
		t.Fatalf("len(backlinks) = %d, want 2", len(target.Backlinks))
	}

	// Dropping the link removes only this source's backlink.
	if err := s.SetContent(src, "no more links", nil); err != nil {
		t.Fatal(err)
	}
	if len(target.Backlinks) != 1 || target.Backlinks[0].Source != other {
		t.Errorf("other sources' backlinks must be preserved, got %d", len(target.Backlinks))
	}
}

func TestConvert_RoundTripRestoresKeySet(t *testing.T) {
	s := testStore(t)
	task := mustCreate(t, s, entity.Record{ID: "t", Kind: kind.Task})
	task.Properties["due_at"] = "2026-09-01"

	if err := s.Convert(task, kind.Collection, nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := task.Properties["due_at"]; ok {
		t.Error("task-only property should be removed on conversion away")
	}
	if err := s.Convert(task, kind.Task, nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := task.Properties["due_at"]; !ok {
		t.Error("converting back should restore the task key set")
	}
	if task.Properties["due_at"] != nil {
		t.Error("restored keys come back at kind defaults, not prior values")
	}
}

func TestConvert_NonConvertibleRejected(t *testing.T) {
	s := testStore(t)
	chat := mustCreate(t, s, entity.Record{ID: "ch", Kind: kind.Chat})
	if err := s.Convert(chat, kind.Note, nil); err == nil {
		t.Fatal("chat conversion should be rejected")
	}
	note := mustCreate(t, s, entity.Record{ID: "n", Kind: kind.Note})
	if err := s.Convert(note, kind.Media, nil); err == nil {
		t.Fatal("conversion into a non-convertible kind should be rejected")
	}
}

func TestConvert_ReindexesKind(t *testing.T) {
	s := testStore(t)
	n := mustCreate(t, s, entity.Record{ID: "n", Kind: kind.Note})
	if err := s.Convert(n, kind.Task, nil); err != nil {
		t.Fatal(err)
	}
	if len(s.GetEntities(kind.Note, nil)) != 0 {
		t.Error("entity still listed under old kind")
	}
	if got := s.GetEntities(kind.Task, nil); len(got) != 1 || got[0] != n {
		t.Error("entity not listed under new kind")
	}
}

func TestDelete_FlushesPendingUpdateFirst(t *testing.T) {
	s := testStore(t, WithCoalesceWindow(time.Hour))
	n := mustCreate(t, s, entity.Record{ID: "n", Kind: kind.Note})

	var ops []events.Op
	s.On(events.Filter{Ops: []events.Op{events.OpUpdate, events.OpDelete}}, func(ev events.Event) {
		ops = append(ops, ev.Op)
	})

	// Two fast updates: second is suppressed into the window.
	if err := s.SetContent(n, "a", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SetContent(n, "b", nil); err != nil {
		t.Fatal(err)
	}
	s.Delete(n, nil)

	want := []events.Op{events.OpUpdate, events.OpUpdate, events.OpDelete}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("ops = %v, want %v (no update may follow delete)", ops, want)
		}
	}
}

func TestCreate_SelfSingleton(t *testing.T) {
	s := testStore(t)
	if _, err := s.Create(entity.Record{ID: "me", Kind: kind.Self}, events.OriginUser); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(entity.Record{ID: "me2", Kind: kind.Self}, events.OriginUser); err != apperr.ErrDuplicateSelf {
		t.Fatalf("err = %v, want ErrDuplicateSelf", err)
	}
	if got := s.GetRoot(); got == nil || got.ID != "me" {
		t.Error("GetRoot should return the self singleton")
	}
}

func TestCreate_OriginTagged(t *testing.T) {
	s := testStore(t)
	var got events.Origin
	s.On(events.Filter{Ops: []events.Op{events.OpCreate}}, func(ev events.Event) {
		got = ev.Origin
	})
	mustNote := entity.Record{ID: "n", Kind: kind.Note}
	if _, err := s.Create(mustNote, events.OriginExternal); err != nil {
		t.Fatal(err)
	}
	if got != events.OriginExternal {
		t.Errorf("origin = %q, want external", got)
	}
}

func TestQuery_FiltersCompose(t *testing.T) {
	s := testStore(t)
	mustCreate(t, s, entity.Record{ID: "n1", Kind: kind.Note})
	n2 := mustCreate(t, s, entity.Record{ID: "n2", Kind: kind.Note})
	mustCreate(t, s, entity.Record{ID: "t1", Kind: kind.Task})
	s.Archive(n2, nil)

	archived := true
	got := s.Query(Filter{Kinds: []kind.Kind{kind.Note}, Archived: &archived}, nil)
	if len(got) != 1 || got[0] != n2 {
		t.Errorf("query returned %d entities, want just the archived note", len(got))
	}

	notArchived := false
	got = s.Query(Filter{Archived: &notArchived}, func(e *entity.Entity) bool {
		return e.Kind == kind.Task
	})
	if len(got) != 1 || got[0].ID != "t1" {
		t.Errorf("predicate should compose by AND, got %d", len(got))
	}
}

func TestGetUncategorized(t *testing.T) {
	s := testStore(t)
	mustCreate(t, s, entity.Record{ID: "me", Kind: kind.Self})
	col := mustCreate(t, s, entity.Record{ID: "col", Kind: kind.Collection})
	n := mustCreate(t, s, entity.Record{ID: "n", Kind: kind.Note})
	loose := mustCreate(t, s, entity.Record{ID: "loose", Kind: kind.Note})
	if err := s.Insert(col, 0, n); err != nil {
		t.Fatal(err)
	}

	got := s.GetUncategorized()
	ids := make(map[string]bool, len(got))
	for _, e := range got {
		ids[e.ID] = true
	}
	if !ids["col"] || !ids["loose"] || ids["n"] || ids["me"] {
		t.Errorf("uncategorized = %v", ids)
	}
	_ = loose
}

func TestRemove_MembershipOnly(t *testing.T) {
	s := testStore(t)
	col := mustCreate(t, s, entity.Record{ID: "col", Kind: kind.Collection})
	n := mustCreate(t, s, entity.Record{ID: "n", Kind: kind.Note})
	if err := s.Insert(col, 0, n); err != nil {
		t.Fatal(err)
	}

	if err := s.Remove(col, "n"); err != nil {
		t.Fatal(err)
	}
	if col.Has("n", false) {
		t.Error("member not removed")
	}
	// Parenthood survives removal from content membership.
	if len(n.Parents) != 1 {
		t.Error("remove must not sever the parent relation")
	}

	if err := s.Remove(col, "n"); err == nil {
		t.Error("removing a non-member must fail")
	}
}

func TestHas_Deep(t *testing.T) {
	s := testStore(t)
	a := mustCreate(t, s, entity.Record{ID: "a", Kind: kind.Collection})
	b := mustCreate(t, s, entity.Record{ID: "b", Kind: kind.Collection})
	c := mustCreate(t, s, entity.Record{ID: "c", Kind: kind.Note})
	if err := s.Insert(a, 0, b); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(b, 0, c); err != nil {
		t.Fatal(err)
	}

	if a.Has("c", false) {
		t.Error("c is not a direct member of a")
	}
	if !a.Has("c", true) {
		t.Error("deep search should find c via b")
	}
}

func TestRemoveParent_BothSidesConsistent(t *testing.T) {
	s := testStore(t)
	col := mustCreate(t, s, entity.Record{ID: "col", Kind: kind.Collection})
	n := mustCreate(t, s, entity.Record{ID: "n", Kind: kind.Note})
	if err := s.Insert(col, 0, n); err != nil {
		t.Fatal(err)
	}

	s.RemoveParent(n, col)
	if len(n.Parents) != 0 {
		t.Error("relation not removed")
	}
	if col.Has("n", false) {
		t.Error("parent's member list must drop the child too")
	}
	if len(s.childMap["col"]) != 0 {
		t.Error("childMap not synchronized")
	}
}

func TestSerializationRoundTrip(t *testing.T) {
	s := testStore(t)
	s.Load([]entity.Record{
		{ID: "col", Kind: kind.Collection, Name: "Stuff", Entities: []string{"n"},
			CreatedAt: time.Now().Add(-time.Hour), UpdatedAt: time.Now()},
		{ID: "n", Kind: kind.Note, Name: "Note",
			Properties: map[string]any{"content": "see [x](user://col)"},
			Parents:    map[string]entity.RelationRecord{"col": {CreatedAt: time.Now()}},
			CreatedAt:  time.Now()},
	})

	recs := s.Records()
	if len(recs) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(recs))
	}

	s2 := testStore(t)
	s2.Load(recs)
	col := s2.Get("col")
	if col == nil || len(col.Members) != 1 || col.Members[0].ID != "n" {
		t.Error("member list lost in round trip")
	}
	n := s2.Get("n")
	if len(n.Parents) != 1 || n.Parents[0].ID != "col" {
		t.Error("parent relations lost in round trip")
	}
	if len(col.Backlinks) != 1 {
		t.Error("links not re-derived after round trip")
	}
}
