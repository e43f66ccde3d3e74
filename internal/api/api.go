// Package api is the facade external transports call into.
//
// It validates inputs, dispatches to the store, snapshot engine, and broker,
// and guarantees every returned error is a *types.Error carrying one of the
// stable kinds. It holds no transport concerns: no ACLs, no wire formats.
package api

import (
	"context"
	"time"

	"github.com/codegraphhq/codegraph/internal/broker"
	"github.com/codegraphhq/codegraph/internal/snapshot"
	"github.com/codegraphhq/codegraph/internal/storage"
	"github.com/codegraphhq/codegraph/internal/types"
)

// API dispatches facade operations to the core components.
type API struct {
	store  storage.Store
	snaps  *snapshot.Engine
	broker *broker.Broker
}

// New builds the facade over an opened store, its snapshot engine, and a
// broker.
func New(store storage.Store, snaps *snapshot.Engine, br *broker.Broker) *API {
	return &API{store: store, snaps: snaps, broker: br}
}

// normalize guarantees the stable error shape at the facade boundary.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*types.Error); ok {
		return err
	}
	if types.KindOf(err) != types.ErrInternal {
		return err
	}
	return types.WrapError(types.ErrInternal, err, "%v", err)
}

// ── Components ──────────────────────────────────────────────────────────────

func (a *API) CreateComponent(ctx context.Context, c *types.Component, actor types.Actor) (*types.Component, error) {
	if err := a.store.CreateComponent(ctx, c, actor); err != nil {
		return nil, normalize(err)
	}
	return c, nil
}

func (a *API) GetComponent(ctx context.Context, id string) (*types.Component, error) {
	c, err := a.store.GetComponent(ctx, id)
	return c, normalize(err)
}

func (a *API) SearchComponents(ctx context.Context, filter types.ComponentFilter) ([]*types.Component, error) {
	out, err := a.store.SearchComponents(ctx, filter)
	return out, normalize(err)
}

func (a *API) UpdateComponent(ctx context.Context, id string, patch types.ComponentPatch, actor types.Actor) (*types.Component, error) {
	c, err := a.store.UpdateComponent(ctx, id, patch, actor)
	return c, normalize(err)
}

func (a *API) DeleteComponent(ctx context.Context, id string, actor types.Actor) error {
	return normalize(a.store.DeleteComponent(ctx, id, actor))
}

func (a *API) CreateComponentsBulk(ctx context.Context, cs []*types.Component, actor types.Actor) ([]*types.Component, error) {
	if err := a.store.CreateComponents(ctx, cs, actor); err != nil {
		return nil, normalize(err)
	}
	return cs, nil
}

// ── Relationships ───────────────────────────────────────────────────────────

func (a *API) CreateRelationship(ctx context.Context, r *types.Relationship, actor types.Actor) (*types.Relationship, error) {
	if err := a.store.CreateRelationship(ctx, r, actor); err != nil {
		return nil, normalize(err)
	}
	return r, nil
}

func (a *API) CreateRelationshipsBulk(ctx context.Context, rs []*types.Relationship, actor types.Actor) ([]*types.Relationship, error) {
	if err := a.store.CreateRelationships(ctx, rs, actor); err != nil {
		return nil, normalize(err)
	}
	return rs, nil
}

func (a *API) DeleteRelationship(ctx context.Context, id string, actor types.Actor) error {
	return normalize(a.store.DeleteRelationship(ctx, id, actor))
}

func (a *API) GetComponentRelationships(ctx context.Context, componentID string, dir types.Direction) ([]*types.RelationshipLink, error) {
	out, err := a.store.GetComponentRelationships(ctx, componentID, dir)
	return out, normalize(err)
}

func (a *API) GetDependencyTree(ctx context.Context, rootID string, maxDepth int) ([]*types.DependencyPath, error) {
	out, err := a.store.GetDependencyTree(ctx, rootID, maxDepth)
	return out, normalize(err)
}

// ── Tasks ───────────────────────────────────────────────────────────────────

func (a *API) CreateTask(ctx context.Context, t *types.Task, actor types.Actor) (*types.Task, error) {
	if err := a.store.CreateTask(ctx, t, actor); err != nil {
		return nil, normalize(err)
	}
	return t, nil
}

func (a *API) CreateTasksBulk(ctx context.Context, ts []*types.Task, actor types.Actor) ([]*types.Task, error) {
	if err := a.store.CreateTasks(ctx, ts, actor); err != nil {
		return nil, normalize(err)
	}
	return ts, nil
}

func (a *API) GetTask(ctx context.Context, id string) (*types.Task, error) {
	t, err := a.store.GetTask(ctx, id)
	return t, normalize(err)
}

func (a *API) GetTasks(ctx context.Context, statuses ...types.TaskStatus) ([]*types.Task, error) {
	out, err := a.store.GetTasks(ctx, statuses...)
	return out, normalize(err)
}

func (a *API) SearchTasks(ctx context.Context, search types.TaskSearch) ([]*types.Task, error) {
	out, err := a.store.SearchTasks(ctx, search)
	return out, normalize(err)
}

func (a *API) UpdateTaskStatus(ctx context.Context, id string, status types.TaskStatus, progress *float64, actor types.Actor) (*types.Task, error) {
	t, err := a.store.UpdateTaskStatus(ctx, id, status, progress, actor)
	return t, normalize(err)
}

// ── Comments ────────────────────────────────────────────────────────────────

func (a *API) CreateComment(ctx context.Context, c *types.Comment, actor types.Actor) (*types.Comment, error) {
	if err := a.store.CreateComment(ctx, c, actor); err != nil {
		return nil, normalize(err)
	}
	return c, nil
}

func (a *API) GetComment(ctx context.Context, id string) (*types.Comment, error) {
	c, err := a.store.GetComment(ctx, id)
	return c, normalize(err)
}

func (a *API) GetNodeComments(ctx context.Context, nodeID string, limit int) ([]*types.Comment, error) {
	out, err := a.store.GetNodeComments(ctx, nodeID, limit)
	return out, normalize(err)
}

func (a *API) UpdateComment(ctx context.Context, id, content string, actor types.Actor) (*types.Comment, error) {
	c, err := a.store.UpdateComment(ctx, id, content, actor)
	return c, normalize(err)
}

func (a *API) DeleteComment(ctx context.Context, id string, actor types.Actor) error {
	return normalize(a.store.DeleteComment(ctx, id, actor))
}

// ── Analysis ────────────────────────────────────────────────────────────────

func (a *API) GetCodebaseOverview(ctx context.Context, codebase string) ([]types.KindCount, error) {
	out, err := a.store.GetCodebaseOverview(ctx, codebase)
	return out, normalize(err)
}

// ── Journal & snapshots ─────────────────────────────────────────────────────

// ChangeHistoryRequest selects journal entries. With EntityID the entity's
// history is returned; otherwise the global feed, optionally restricted to
// one operation. Both are newest first.
type ChangeHistoryRequest struct {
	EntityID  string
	Limit     int
	Operation types.Operation
}

func (a *API) GetChangeHistory(ctx context.Context, req ChangeHistoryRequest) ([]*types.ChangeEvent, error) {
	if req.EntityID != "" {
		out, err := a.store.GetEntityHistory(ctx, req.EntityID, req.Limit)
		return out, normalize(err)
	}
	var ops []types.Operation
	if req.Operation != "" {
		ops = append(ops, req.Operation)
	}
	out, err := a.store.GetRecentChanges(ctx, req.Limit, ops...)
	return out, normalize(err)
}

func (a *API) GetHistoryStats(ctx context.Context) (*types.JournalStats, error) {
	out, err := a.store.GetJournalStats(ctx)
	return out, normalize(err)
}

func (a *API) CreateSnapshot(ctx context.Context, name, description string) (*types.Snapshot, error) {
	out, err := a.snaps.CreateSnapshot(ctx, name, description)
	return out, normalize(err)
}

func (a *API) ListSnapshots(ctx context.Context) ([]*types.Snapshot, error) {
	out, err := a.snaps.ListSnapshots(ctx)
	return out, normalize(err)
}

func (a *API) RestoreSnapshot(ctx context.Context, id string, dryRun bool) (*types.RestoreCounts, error) {
	out, err := a.snaps.RestoreFromSnapshot(ctx, id, dryRun)
	return out, normalize(err)
}

func (a *API) ReplayToTimestamp(ctx context.Context, target time.Time, dryRun bool) (*snapshot.ReplayReport, error) {
	out, err := a.snaps.ReplayToTimestamp(ctx, target, dryRun)
	return out, normalize(err)
}

// ── Broker ──────────────────────────────────────────────────────────────────

// WaitRequest registers an agent wait. TimeoutMs <= 0 uses the broker default.
type WaitRequest struct {
	AgentID   string
	TimeoutMs int64
	Filters   types.CommandFilters
}

func (a *API) WaitForCommand(ctx context.Context, req WaitRequest) (*types.PendingCommand, error) {
	cmd, err := a.broker.WaitForCommand(ctx, req.AgentID,
		time.Duration(req.TimeoutMs)*time.Millisecond, req.Filters)
	return cmd, normalize(err)
}

func (a *API) SendCommand(ctx context.Context, cmd *types.PendingCommand) (*types.SendResult, error) {
	out, err := a.broker.SendCommand(ctx, cmd)
	return out, normalize(err)
}

func (a *API) GetWaitingAgents(ctx context.Context) []types.WaitingAgent {
	return a.broker.GetWaitingAgents()
}

func (a *API) GetPendingCommands(ctx context.Context) []*types.PendingCommand {
	return a.broker.GetPendingCommands()
}

// CancelCommand reports whether a pending command was cancelled. Unknown and
// terminal IDs are a no-op, never an error.
func (a *API) CancelCommand(ctx context.Context, id string) bool {
	return a.broker.CancelCommand(id)
}

// CancelWait reports whether an active wait was cancelled.
func (a *API) CancelWait(ctx context.Context, agentID string) bool {
	return a.broker.CancelWait(agentID)
}

func (a *API) GetCommandHistory(ctx context.Context, limit int) []types.BrokerHistoryEntry {
	return a.broker.GetHistory(limit)
}
