package aliveness

import (
	"math"
	"testing"
	"time"

	"github.com/starford/othala/internal/entity"
	"github.com/starford/othala/internal/kind"
)

func mk(t *testing.T, k kind.Kind, touched time.Time) *entity.Entity {
	t.Helper()
	e, err := entity.New(k, entity.Record{CreatedAt: touched, UpdatedAt: touched})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestCompute_BoundsAndRanking(t *testing.T) {
	now := time.Now()
	fresh := mk(t, kind.Note, now)
	stale := mk(t, kind.Note, now.Add(-40*24*time.Hour))
	hub := mk(t, kind.Collection, now)

	// hub contains both notes and carries a backlink.
	if _, err := hub.Insert(0, fresh, stale); err != nil {
		t.Fatal(err)
	}
	hub.Backlinks = []entity.Link{{Entity: hub.ID, Source: fresh}}

	all := []*entity.Entity{fresh, stale, hub}
	Compute(all, now)

	for _, e := range all {
		if e.Aliveness < 0 || e.Aliveness > 1 {
			t.Errorf("aliveness %f out of [0,1]", e.Aliveness)
		}
	}
	if hub.Aliveness <= fresh.Aliveness {
		t.Errorf("hub (%f) should outrank leaf (%f): most recent touch and highest mass", hub.Aliveness, fresh.Aliveness)
	}
	if fresh.Aliveness <= stale.Aliveness-1e-9 {
		t.Errorf("fresh (%f) should not rank below stale (%f)", fresh.Aliveness, stale.Aliveness)
	}
}

func TestTemporal_HalfLife(t *testing.T) {
	now := time.Now()
	e := mk(t, kind.Note, now.Add(-10*24*time.Hour))
	Compute([]*entity.Entity{e}, now)

	if math.Abs(e.TemporalAliveness-0.5) > 1e-6 {
		t.Errorf("temporal aliveness after one half-life = %f, want 0.5", e.TemporalAliveness)
	}
}

func TestTemporal_FutureTouchClamped(t *testing.T) {
	now := time.Now()
	e := mk(t, kind.Note, now.Add(time.Hour))
	Compute([]*entity.Entity{e}, now)

	if e.TemporalAliveness != 1 {
		t.Errorf("temporal aliveness for future touch = %f, want 1", e.TemporalAliveness)
	}
}

func TestRelational_CountsAllMassSources(t *testing.T) {
	now := time.Now()
	parent := mk(t, kind.Collection, now)
	child := mk(t, kind.Note, now)
	grandchild := mk(t, kind.Note, now)

	if _, err := parent.Insert(0, child); err != nil {
		t.Fatal(err)
	}
	if _, err := child.Insert(0, grandchild); err != nil {
		t.Fatal(err)
	}
	child.Links = []entity.Link{{Entity: grandchild.ID, Source: child}}
	child.Backlinks = []entity.Link{{Entity: child.ID, Source: parent}}

	Compute([]*entity.Entity{parent, child, grandchild}, now)

	// 1 backlink + 1 link + 1 descendant + 1 parent.
	if child.RelationalAliveness != 4 {
		t.Errorf("relational = %f, want 4", child.RelationalAliveness)
	}
	// parent: 2 descendants (child + grandchild).
	if parent.RelationalAliveness != 2 {
		t.Errorf("parent relational = %f, want 2", parent.RelationalAliveness)
	}
}

func TestCompute_EmptyGraph(t *testing.T) {
	Compute(nil, time.Now()) // must not panic
}
