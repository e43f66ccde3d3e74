package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/codegraphhq/codegraph/internal/types"
)

var testActor = types.Actor{SessionID: "sess-1", UserID: "tester", Source: "test"}

// newTestStore opens a fresh store on a temp-dir database file.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := New(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustCreateComponent(t *testing.T, s *Store, kind types.ComponentKind, name string) *types.Component {
	t.Helper()
	c := &types.Component{Kind: kind, Name: name}
	if err := s.CreateComponent(context.Background(), c, testActor); err != nil {
		t.Fatalf("create component %s: %v", name, err)
	}
	return c
}

func TestPingAndClose(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Idempotent.
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestInMemoryStoresAreIsolated(t *testing.T) {
	ctx := context.Background()
	first, err := New(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open first store: %v", err)
	}
	defer first.Close()
	second, err := New(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open second store: %v", err)
	}
	defer second.Close()

	c := &types.Component{Kind: types.KindFile, Name: "only-in-first.go"}
	if err := first.CreateComponent(ctx, c, testActor); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := second.GetComponent(ctx, c.ID); !types.IsKind(err, types.ErrNotFound) {
		t.Fatalf("second store sees the first store's data: %v", err)
	}
	export, err := second.ExportGraph(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(export.Components) != 0 {
		t.Fatalf("second store holds %d components, want 0", len(export.Components))
	}
}

func TestInMemoryStore(t *testing.T) {
	s, err := New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	defer s.Close()

	c := &types.Component{Kind: types.KindFile, Name: "mem.go"}
	if err := s.CreateComponent(context.Background(), c, testActor); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.GetComponent(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "mem.go" {
		t.Fatalf("name = %q", got.Name)
	}
}
