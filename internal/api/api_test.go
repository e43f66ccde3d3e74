package api

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/broker"
	"github.com/codegraphhq/codegraph/internal/snapshot"
	"github.com/codegraphhq/codegraph/internal/storage/sqlite"
	"github.com/codegraphhq/codegraph/internal/types"
)

var testActor = types.Actor{SessionID: "sess-1", UserID: "tester", Source: "test"}

func newTestAPI(t *testing.T) *API {
	t.Helper()
	store, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, snapshot.NewEngine(store), broker.New())
}

func TestFacadeErrorsCarryStableKinds(t *testing.T) {
	a := newTestAPI(t)
	ctx := context.Background()

	_, err := a.GetComponent(ctx, "cmp-nope")
	require.True(t, types.IsKind(err, types.ErrNotFound))
	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, types.ErrNotFound, typed.Kind)

	_, err = a.CreateComponent(ctx, &types.Component{Kind: "WIDGET", Name: "x"}, testActor)
	require.True(t, types.IsKind(err, types.ErrValidation))

	_, err = a.WaitForCommand(ctx, WaitRequest{})
	require.True(t, types.IsKind(err, types.ErrValidation))

	_, err = a.ReplayToTimestamp(ctx, time.Time{}, false)
	require.True(t, types.IsKind(err, types.ErrValidation))
}

func TestFacadeGraphFlow(t *testing.T) {
	a := newTestAPI(t)
	ctx := context.Background()

	c, err := a.CreateComponent(ctx, &types.Component{Kind: types.KindFile, Name: "a.go", Codebase: "api"}, testActor)
	require.NoError(t, err)
	require.NotEmpty(t, c.ID)

	d, err := a.CreateComponent(ctx, &types.Component{Kind: types.KindFile, Name: "b.go", Codebase: "api"}, testActor)
	require.NoError(t, err)

	_, err = a.CreateRelationship(ctx, &types.Relationship{
		Type: types.RelDependsOn, SourceID: c.ID, TargetID: d.ID,
	}, testActor)
	require.NoError(t, err)

	tree, err := a.GetDependencyTree(ctx, c.ID, 0)
	require.NoError(t, err)
	require.Len(t, tree, 1)

	overview, err := a.GetCodebaseOverview(ctx, "api")
	require.NoError(t, err)
	require.Len(t, overview, 1)
	require.Equal(t, 2, overview[0].Count)

	found, err := a.SearchComponents(ctx, types.ComponentFilter{Codebase: "api"})
	require.NoError(t, err)
	require.Len(t, found, 2)
}

func TestFacadeChangeHistoryDispatch(t *testing.T) {
	a := newTestAPI(t)
	ctx := context.Background()

	c, err := a.CreateComponent(ctx, &types.Component{Kind: types.KindFile, Name: "a.go"}, testActor)
	require.NoError(t, err)
	tk, err := a.CreateTask(ctx, &types.Task{Name: "t"}, testActor)
	require.NoError(t, err)

	// Entity history returns only that entity's entries.
	entries, err := a.GetChangeHistory(ctx, ChangeHistoryRequest{EntityID: c.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, c.ID, entries[0].EntityID)

	// The global feed covers both, newest first.
	feed, err := a.GetChangeHistory(ctx, ChangeHistoryRequest{})
	require.NoError(t, err)
	require.Len(t, feed, 2)
	require.Equal(t, tk.ID, feed[0].EntityID)

	// Operation filter narrows the feed.
	feed, err = a.GetChangeHistory(ctx, ChangeHistoryRequest{Operation: types.OpCreateTask})
	require.NoError(t, err)
	require.Len(t, feed, 1)

	stats, err := a.GetHistoryStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Total)
}

func TestFacadeSnapshotAndReplay(t *testing.T) {
	a := newTestAPI(t)
	ctx := context.Background()

	c, err := a.CreateComponent(ctx, &types.Component{Kind: types.KindFile, Name: "a.go"}, testActor)
	require.NoError(t, err)

	snap, err := a.CreateSnapshot(ctx, "baseline", "")
	require.NoError(t, err)

	require.NoError(t, a.DeleteComponent(ctx, c.ID, testActor))

	counts, err := a.RestoreSnapshot(ctx, snap.ID, false)
	require.NoError(t, err)
	require.Equal(t, 1, counts.Components)

	got, err := a.GetComponent(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "a.go", got.Name)

	list, err := a.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	report, err := a.ReplayToTimestamp(ctx, types.Now(), true)
	require.NoError(t, err)
	require.True(t, report.DryRun)
	require.NotEmpty(t, report.Entries)
}

func TestFacadeBrokerFlow(t *testing.T) {
	a := newTestAPI(t)
	ctx := context.Background()

	sent, err := a.SendCommand(ctx, &types.PendingCommand{Type: "EXECUTE_TASK"})
	require.NoError(t, err)
	require.False(t, sent.Delivered)
	require.Len(t, a.GetPendingCommands(ctx), 1)

	cmd, err := a.WaitForCommand(ctx, WaitRequest{AgentID: "agent-1", TimeoutMs: 60000})
	require.NoError(t, err)
	require.Equal(t, sent.Command.ID, cmd.ID)
	require.Empty(t, a.GetPendingCommands(ctx))

	require.False(t, a.CancelCommand(ctx, cmd.ID))
	require.False(t, a.CancelWait(ctx, "agent-1"))

	history := a.GetCommandHistory(ctx, 0)
	require.NotEmpty(t, history)
}
