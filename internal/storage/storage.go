// Package storage defines the graph store contract.
//
// The concrete implementation lives in the sqlite sub-package. This package
// holds the interface and shared value types so that consumers (the API
// facade, the snapshot engine, cmd/cg) depend on the contract rather than on
// the concrete type.
//
// Every mutating operation validates its input first, commits inside a single
// backend transaction, and appends a change journal entry in that same
// transaction. Errors are *types.Error values carrying one of the stable
// kinds (NOT_FOUND, VALIDATION, CONFLICT, BACKEND, INTERNAL).
package storage

import (
	"context"
	"time"

	"github.com/codegraphhq/codegraph/internal/types"
)

// SearchLimit caps SearchComponents results.
const SearchLimit = 100

// TaskSearchDefaultLimit and TaskSearchMaxLimit bound SearchTasks results.
const (
	TaskSearchDefaultLimit = 100
	TaskSearchMaxLimit     = 1000
)

// DefaultTreeDepth bounds GetDependencyTree expansion when the caller passes 0.
const DefaultTreeDepth = 3

// Store is the versioned graph store: CRUD over components, relationships,
// tasks and comments, the change journal, and the raw snapshot/restore
// surface consumed by the snapshot engine.
type Store interface {
	// Components
	CreateComponent(ctx context.Context, c *types.Component, actor types.Actor) error
	GetComponent(ctx context.Context, id string) (*types.Component, error)
	SearchComponents(ctx context.Context, filter types.ComponentFilter) ([]*types.Component, error)
	UpdateComponent(ctx context.Context, id string, patch types.ComponentPatch, actor types.Actor) (*types.Component, error)
	// DeleteComponent cascades: every incident relationship and attached
	// comment is removed in the same transaction.
	DeleteComponent(ctx context.Context, id string, actor types.Actor) error
	CreateComponents(ctx context.Context, cs []*types.Component, actor types.Actor) error

	// Relationships
	CreateRelationship(ctx context.Context, r *types.Relationship, actor types.Actor) error
	CreateRelationships(ctx context.Context, rs []*types.Relationship, actor types.Actor) error
	DeleteRelationship(ctx context.Context, id string, actor types.Actor) error
	GetComponentRelationships(ctx context.Context, componentID string, dir types.Direction) ([]*types.RelationshipLink, error)
	GetDependencyTree(ctx context.Context, rootID string, maxDepth int) ([]*types.DependencyPath, error)

	// Tasks
	CreateTask(ctx context.Context, t *types.Task, actor types.Actor) error
	CreateTasks(ctx context.Context, ts []*types.Task, actor types.Actor) error
	GetTask(ctx context.Context, id string) (*types.Task, error)
	GetTasks(ctx context.Context, statuses ...types.TaskStatus) ([]*types.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status types.TaskStatus, progress *float64, actor types.Actor) (*types.Task, error)
	SearchTasks(ctx context.Context, search types.TaskSearch) ([]*types.Task, error)

	// Comments
	CreateComment(ctx context.Context, c *types.Comment, actor types.Actor) error
	GetComment(ctx context.Context, id string) (*types.Comment, error)
	GetNodeComments(ctx context.Context, nodeID string, limit int) ([]*types.Comment, error)
	UpdateComment(ctx context.Context, id, content string, actor types.Actor) (*types.Comment, error)
	DeleteComment(ctx context.Context, id string, actor types.Actor) error

	// Analysis
	GetCodebaseOverview(ctx context.Context, codebase string) ([]types.KindCount, error)

	// Change journal
	AppendChange(ctx context.Context, e *types.ChangeEvent) error
	GetEntityHistory(ctx context.Context, entityID string, limit int) ([]*types.ChangeEvent, error)
	GetRecentChanges(ctx context.Context, limit int, ops ...types.Operation) ([]*types.ChangeEvent, error)
	GetChangesByTimeRange(ctx context.Context, from, to time.Time, limit int) ([]*types.ChangeEvent, error)
	GetSessionChanges(ctx context.Context, sessionID string) ([]*types.ChangeEvent, error)
	GetJournalStats(ctx context.Context) (*types.JournalStats, error)

	// Snapshots. Restore and replay bypass the journal: journal entries and
	// snapshot records themselves are never deleted or re-emitted by them.
	SaveSnapshot(ctx context.Context, s *types.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*types.Snapshot, error)
	ListSnapshots(ctx context.Context) ([]*types.Snapshot, error)
	ExportGraph(ctx context.Context) (*types.GraphExport, error)
	RestoreGraph(ctx context.Context, export *types.GraphExport) (*types.RestoreCounts, error)
	// ApplyChange re-applies one journal entry to the live graph without
	// journaling it again. Used by time-travel replay.
	ApplyChange(ctx context.Context, e *types.ChangeEvent) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
