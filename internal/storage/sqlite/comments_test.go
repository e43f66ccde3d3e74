package sqlite

import (
	"context"
	"testing"

	"github.com/codegraphhq/codegraph/internal/types"
)

func TestCommentOnComponentAndTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	comp := mustCreateComponent(t, s, types.KindFile, "a.go")
	task := &types.Task{Name: "review"}
	if err := s.CreateTask(ctx, task, testActor); err != nil {
		t.Fatalf("create task: %v", err)
	}

	onComp := &types.Comment{ParentID: comp.ID, Content: "on the file", Author: "u"}
	if err := s.CreateComment(ctx, onComp, testActor); err != nil {
		t.Fatalf("comment on component: %v", err)
	}
	onTask := &types.Comment{ParentID: task.ID, Content: "on the task", Author: "u"}
	if err := s.CreateComment(ctx, onTask, testActor); err != nil {
		t.Fatalf("comment on task: %v", err)
	}

	got, err := s.GetComment(ctx, onTask.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ParentID != task.ID || got.Content != "on the task" {
		t.Fatalf("comment = %+v", got)
	}
	if got.UpdatedAt != nil {
		t.Fatal("fresh comment should not carry updated_at")
	}

	ghost := &types.Comment{ParentID: "node-nope", Content: "x", Author: "u"}
	if err := s.CreateComment(ctx, ghost, testActor); !types.IsKind(err, types.ErrNotFound) {
		t.Fatalf("ghost parent: %v, want NOT_FOUND", err)
	}
}

func TestGetNodeComments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	comp := mustCreateComponent(t, s, types.KindFile, "a.go")
	for _, content := range []string{"first", "second", "third"} {
		cm := &types.Comment{ParentID: comp.ID, Content: content, Author: "u"}
		if err := s.CreateComment(ctx, cm, testActor); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	all, err := s.GetNodeComments(ctx, comp.ID, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].Content != "third" || all[2].Content != "first" {
		t.Fatalf("ordering wrong: %+v", all)
	}

	limited, err := s.GetNodeComments(ctx, comp.ID, 2)
	if err != nil {
		t.Fatalf("limited list: %v", err)
	}
	if len(limited) != 2 || limited[0].Content != "third" {
		t.Fatalf("limit = %+v", limited)
	}

	if _, err := s.GetNodeComments(ctx, "node-nope", 0); !types.IsKind(err, types.ErrNotFound) {
		t.Fatalf("missing node: %v, want NOT_FOUND", err)
	}
}

func TestUpdateCommentJournals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	comp := mustCreateComponent(t, s, types.KindFile, "a.go")
	cm := &types.Comment{ParentID: comp.ID, Content: "draft", Author: "u"}
	if err := s.CreateComment(ctx, cm, testActor); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := s.UpdateComment(ctx, cm.ID, "final", testActor)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Content != "final" || updated.UpdatedAt == nil {
		t.Fatalf("updated = %+v", updated)
	}

	if _, err := s.UpdateComment(ctx, cm.ID, "", testActor); !types.IsKind(err, types.ErrValidation) {
		t.Fatalf("empty content: %v, want VALIDATION", err)
	}
	if _, err := s.UpdateComment(ctx, "cmt-nope", "x", testActor); !types.IsKind(err, types.ErrNotFound) {
		t.Fatalf("missing comment: %v, want NOT_FOUND", err)
	}

	history, err := s.GetEntityHistory(ctx, cm.ID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].Operation != types.OpUpdateComment {
		t.Fatalf("history = %+v", history)
	}
	if history[0].BeforeState["content"] != "draft" || history[0].AfterState["content"] != "final" {
		t.Fatalf("update states = %v -> %v", history[0].BeforeState, history[0].AfterState)
	}
}

func TestDeleteComment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	comp := mustCreateComponent(t, s, types.KindFile, "a.go")
	cm := &types.Comment{ParentID: comp.ID, Content: "gone soon", Author: "u"}
	if err := s.CreateComment(ctx, cm, testActor); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.DeleteComment(ctx, cm.ID, testActor); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteComment(ctx, cm.ID, testActor); !types.IsKind(err, types.ErrNotFound) {
		t.Fatalf("second delete: %v, want NOT_FOUND", err)
	}

	history, err := s.GetEntityHistory(ctx, cm.ID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].Operation != types.OpDeleteComment {
		t.Fatalf("history = %+v", history)
	}
	if history[0].BeforeState == nil || history[0].AfterState != nil {
		t.Fatal("DELETE_COMMENT entry should carry only before state")
	}
}
