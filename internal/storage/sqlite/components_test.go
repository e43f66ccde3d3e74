package sqlite

import (
	"context"
	"testing"

	"github.com/codegraphhq/codegraph/internal/types"
)

func TestComponentCRUDWithJournal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := mustCreateComponent(t, s, types.KindFile, "a.js")
	if c.ID == "" {
		t.Fatal("create did not assign an id")
	}

	desc := "root"
	updated, err := s.UpdateComponent(ctx, c.ID, types.ComponentPatch{Description: &desc}, testActor)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Description != "root" {
		t.Fatalf("description = %q", updated.Description)
	}
	if updated.Name != "a.js" {
		t.Fatal("patch must not touch unset fields")
	}
	if !updated.UpdatedAt.After(c.UpdatedAt) {
		t.Fatal("updated_at did not advance")
	}

	if err := s.DeleteComponent(ctx, c.ID, testActor); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetComponent(ctx, c.ID); !types.IsKind(err, types.ErrNotFound) {
		t.Fatalf("get after delete: %v, want NOT_FOUND", err)
	}

	// Three journal entries, newest first, with before/after states.
	history, err := s.GetEntityHistory(ctx, c.ID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history has %d entries, want 3", len(history))
	}
	wantOps := []types.Operation{types.OpDeleteComponent, types.OpUpdateComponent, types.OpCreateComponent}
	for i, want := range wantOps {
		if history[i].Operation != want {
			t.Fatalf("history[%d] = %s, want %s", i, history[i].Operation, want)
		}
	}
	if history[2].BeforeState != nil || history[2].AfterState == nil {
		t.Fatal("CREATE entry should carry only after state")
	}
	if history[0].BeforeState == nil || history[0].AfterState != nil {
		t.Fatal("DELETE entry should carry only before state")
	}
	if history[1].BeforeState == nil || history[1].AfterState == nil {
		t.Fatal("UPDATE entry should carry both states")
	}
	if history[1].AfterState["description"] != "root" {
		t.Fatalf("after state description = %v", history[1].AfterState["description"])
	}
}

func TestCreateComponentValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.CreateComponent(ctx, &types.Component{Kind: "WIDGET", Name: "x"}, testActor)
	if !types.IsKind(err, types.ErrValidation) {
		t.Fatalf("bad kind: %v, want VALIDATION", err)
	}
	err = s.CreateComponent(ctx, &types.Component{Kind: types.KindFile}, testActor)
	if !types.IsKind(err, types.ErrValidation) {
		t.Fatalf("empty name: %v, want VALIDATION", err)
	}

	// No mutation occurred: the journal stays empty.
	stats, err := s.GetJournalStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 0 {
		t.Fatalf("journal has %d entries after rejected creates", stats.Total)
	}
}

func TestCreateComponentDuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := mustCreateComponent(t, s, types.KindFile, "dup.go")
	err := s.CreateComponent(ctx, &types.Component{ID: c.ID, Kind: types.KindFile, Name: "other"}, testActor)
	if !types.IsKind(err, types.ErrConflict) {
		t.Fatalf("duplicate id: %v, want CONFLICT", err)
	}
}

func TestDeleteComponentCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	f := mustCreateComponent(t, s, types.KindFile, "f")
	k := mustCreateComponent(t, s, types.KindClass, "K")

	rel := &types.Relationship{Type: types.RelContains, SourceID: f.ID, TargetID: k.ID}
	if err := s.CreateRelationship(ctx, rel, testActor); err != nil {
		t.Fatalf("create relationship: %v", err)
	}
	cm := &types.Comment{ParentID: f.ID, Content: "hi", Author: "u"}
	if err := s.CreateComment(ctx, cm, testActor); err != nil {
		t.Fatalf("create comment: %v", err)
	}

	if err := s.DeleteComponent(ctx, f.ID, testActor); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.GetComponent(ctx, k.ID); err != nil {
		t.Fatalf("unrelated component gone: %v", err)
	}
	if _, err := s.GetComment(ctx, cm.ID); !types.IsKind(err, types.ErrNotFound) {
		t.Fatalf("attached comment survived: %v", err)
	}
	links, err := s.GetComponentRelationships(ctx, k.ID, types.DirBoth)
	if err != nil {
		t.Fatalf("relationships: %v", err)
	}
	if len(links) != 0 {
		t.Fatalf("cascade left %d edges on the neighbor", len(links))
	}
}

func TestSearchComponents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &types.Component{Kind: types.KindFile, Name: "auth.go", Codebase: "api"}
	b := &types.Component{Kind: types.KindFunction, Name: "Authenticate", Codebase: "api"}
	c := &types.Component{Kind: types.KindFile, Name: "main.go", Codebase: "cli"}
	for _, comp := range []*types.Component{a, b, c} {
		if err := s.CreateComponent(ctx, comp, testActor); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := s.SearchComponents(ctx, types.ComponentFilter{Kind: types.KindFile})
	if err != nil {
		t.Fatalf("search kind: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("kind filter returned %d, want 2", len(got))
	}

	got, err = s.SearchComponents(ctx, types.ComponentFilter{Name: "auth"})
	if err != nil {
		t.Fatalf("search name: %v", err)
	}
	// Case-sensitive substring: "Authenticate" does not contain "auth".
	if len(got) != 1 || got[0].Name != "auth.go" {
		t.Fatalf("name filter = %+v, want only auth.go", got)
	}

	got, err = s.SearchComponents(ctx, types.ComponentFilter{Codebase: "api", Kind: types.KindFunction})
	if err != nil {
		t.Fatalf("search combined: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Authenticate" {
		t.Fatalf("combined filter = %+v", got)
	}

	if _, err := s.SearchComponents(ctx, types.ComponentFilter{Kind: "BOGUS"}); !types.IsKind(err, types.ErrValidation) {
		t.Fatalf("bogus kind: %v, want VALIDATION", err)
	}
}

func TestCodebaseOverview(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"a.go", "b.go", "c.go"} {
		comp := &types.Component{Kind: types.KindFile, Name: name, Codebase: "api"}
		if err := s.CreateComponent(ctx, comp, testActor); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	fn := &types.Component{Kind: types.KindFunction, Name: "F", Codebase: "api"}
	if err := s.CreateComponent(ctx, fn, testActor); err != nil {
		t.Fatalf("create: %v", err)
	}

	counts, err := s.GetCodebaseOverview(ctx, "api")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("overview rows = %d, want 2", len(counts))
	}
	if counts[0].Kind != types.KindFile || counts[0].Count != 3 {
		t.Fatalf("top row = %+v, want FILE x3", counts[0])
	}
}
