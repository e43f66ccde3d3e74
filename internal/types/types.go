// Package types defines core data structures for the codegraph coordination service.
package types

import (
	"fmt"
	"time"
)

// ComponentKind classifies a graph node.
type ComponentKind string

// Component kind constants. Values are stable at the API boundary.
const (
	KindFile               ComponentKind = "FILE"
	KindFunction           ComponentKind = "FUNCTION"
	KindClass              ComponentKind = "CLASS"
	KindModule             ComponentKind = "MODULE"
	KindSystem             ComponentKind = "SYSTEM"
	KindInterface          ComponentKind = "INTERFACE"
	KindVariable           ComponentKind = "VARIABLE"
	KindConstant           ComponentKind = "CONSTANT"
	KindRequirement        ComponentKind = "REQUIREMENT"
	KindSpecification      ComponentKind = "SPECIFICATION"
	KindFeature            ComponentKind = "FEATURE"
	KindUserStory          ComponentKind = "USER_STORY"
	KindAcceptanceCriteria ComponentKind = "ACCEPTANCE_CRITERIA"
	KindTestCase           ComponentKind = "TEST_CASE"
)

var componentKinds = map[ComponentKind]bool{
	KindFile: true, KindFunction: true, KindClass: true, KindModule: true,
	KindSystem: true, KindInterface: true, KindVariable: true, KindConstant: true,
	KindRequirement: true, KindSpecification: true, KindFeature: true,
	KindUserStory: true, KindAcceptanceCriteria: true, KindTestCase: true,
}

// IsValid reports whether the kind is one of the enumerated component kinds.
func (k ComponentKind) IsValid() bool { return componentKinds[k] }

// RelationshipType classifies a directed edge between two components.
type RelationshipType string

// Relationship type constants.
const (
	RelDependsOn     RelationshipType = "DEPENDS_ON"
	RelImplements    RelationshipType = "IMPLEMENTS"
	RelExtends       RelationshipType = "EXTENDS"
	RelContains      RelationshipType = "CONTAINS"
	RelCalls         RelationshipType = "CALLS"
	RelImports       RelationshipType = "IMPORTS"
	RelExports       RelationshipType = "EXPORTS"
	RelOverrides     RelationshipType = "OVERRIDES"
	RelUses          RelationshipType = "USES"
	RelCreates       RelationshipType = "CREATES"
	RelSatisfies     RelationshipType = "SATISFIES"
	RelDerivesFrom   RelationshipType = "DERIVES_FROM"
	RelRefines       RelationshipType = "REFINES"
	RelTracesTo      RelationshipType = "TRACES_TO"
	RelValidates     RelationshipType = "VALIDATES"
	RelVerifies      RelationshipType = "VERIFIES"
	RelConflictsWith RelationshipType = "CONFLICTS_WITH"
	RelSupports      RelationshipType = "SUPPORTS"
	RelAllocatesTo   RelationshipType = "ALLOCATES_TO"
	RelRealizes      RelationshipType = "REALIZES"
	RelPrecedes      RelationshipType = "PRECEDES"
	RelFollows       RelationshipType = "FOLLOWS"
	RelConcurrent    RelationshipType = "CONCURRENT"

	// Internal edge kinds. Never returned by relationship queries; comments
	// and task links are stored through them but surfaced via their own APIs.
	RelHasComment RelationshipType = "HAS_COMMENT"
	RelRelatesTo  RelationshipType = "RELATES_TO"
)

var relationshipTypes = map[RelationshipType]bool{
	RelDependsOn: true, RelImplements: true, RelExtends: true, RelContains: true,
	RelCalls: true, RelImports: true, RelExports: true, RelOverrides: true,
	RelUses: true, RelCreates: true, RelSatisfies: true, RelDerivesFrom: true,
	RelRefines: true, RelTracesTo: true, RelValidates: true, RelVerifies: true,
	RelConflictsWith: true, RelSupports: true, RelAllocatesTo: true,
	RelRealizes: true, RelPrecedes: true, RelFollows: true, RelConcurrent: true,
}

// IsValid reports whether the type is a user-visible relationship type.
// The internal HAS_COMMENT and RELATES_TO kinds are not valid edge inputs.
func (t RelationshipType) IsValid() bool { return relationshipTypes[t] }

// IsInternal reports whether the type is one of the internal edge kinds.
func (t RelationshipType) IsInternal() bool {
	return t == RelHasComment || t == RelRelatesTo
}

// TaskStatus tracks the lifecycle of a task.
type TaskStatus string

// Task status constants.
const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusDone       TaskStatus = "DONE"
	StatusBlocked    TaskStatus = "BLOCKED"
	StatusCancelled  TaskStatus = "CANCELLED"
)

// IsValid reports whether the status is one of the enumerated task statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone, StatusBlocked, StatusCancelled:
		return true
	}
	return false
}

// Direction selects which incident edges a relationship query returns.
type Direction string

// Direction constants for GetComponentRelationships.
const (
	DirIncoming Direction = "incoming"
	DirOutgoing Direction = "outgoing"
	DirBoth     Direction = "both"
)

// IsValid reports whether the direction is recognized.
func (d Direction) IsValid() bool {
	return d == DirIncoming || d == DirOutgoing || d == DirBoth
}

// Metadata is a mapping from string keys to scalar values. Values are kept as
// tagged scalars (string, number, bool) rather than arbitrary trees; Validate
// rejects anything deeper.
type Metadata map[string]interface{}

// Validate checks that every value is a scalar.
func (m Metadata) Validate() error {
	for k, v := range m {
		switch v.(type) {
		case nil, string, bool, int, int32, int64, float32, float64:
		default:
			return fmt.Errorf("metadata key %q: value must be a scalar, got %T", k, v)
		}
	}
	return nil
}

// Component is the primary graph node: a file, function, requirement, etc.
type Component struct {
	ID          string        `json:"id"`
	Kind        ComponentKind `json:"kind"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Path        string        `json:"path,omitempty"`
	Codebase    string        `json:"codebase,omitempty"`
	Metadata    Metadata      `json:"metadata,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Validate checks the component invariants: enumerated kind, non-empty name,
// scalar metadata.
func (c *Component) Validate() error {
	if !c.Kind.IsValid() {
		return fmt.Errorf("invalid component kind: %s", c.Kind)
	}
	if c.Name == "" {
		return fmt.Errorf("component name is required")
	}
	return c.Metadata.Validate()
}

// ComponentPatch carries a partial update for a component. Nil fields are left
// unchanged. The ID of a component can never be patched.
type ComponentPatch struct {
	Kind        *ComponentKind `json:"kind,omitempty"`
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Path        *string        `json:"path,omitempty"`
	Codebase    *string        `json:"codebase,omitempty"`
	Metadata    Metadata       `json:"metadata,omitempty"`
}

// Validate checks the fields that are present.
func (p *ComponentPatch) Validate() error {
	if p.Kind != nil && !p.Kind.IsValid() {
		return fmt.Errorf("invalid component kind: %s", *p.Kind)
	}
	if p.Name != nil && *p.Name == "" {
		return fmt.Errorf("component name cannot be empty")
	}
	return p.Metadata.Validate()
}

// ComponentFilter narrows a component search. Zero values match everything.
type ComponentFilter struct {
	Kind     ComponentKind `json:"kind,omitempty"`
	Name     string        `json:"name,omitempty"` // substring match
	Codebase string        `json:"codebase,omitempty"`
}

// Relationship is a directed, typed edge between two components. Parallel
// edges with the same (source, target, type) are allowed.
type Relationship struct {
	ID       string           `json:"id"`
	Type     RelationshipType `json:"type"`
	SourceID string           `json:"source_id"`
	TargetID string           `json:"target_id"`
	Details  Metadata         `json:"details,omitempty"`

	// Optional temporal triple for PRECEDES/FOLLOWS/CONCURRENT style edges.
	TimeOrder   *int     `json:"time_order,omitempty"`  // positive integer
	Probability *float64 `json:"probability,omitempty"` // in [0,1]
	Reasoning   string   `json:"reasoning,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks type, endpoints, and the temporal triple ranges.
func (r *Relationship) Validate() error {
	if !r.Type.IsValid() {
		return fmt.Errorf("invalid relationship type: %s", r.Type)
	}
	if r.SourceID == "" || r.TargetID == "" {
		return fmt.Errorf("relationship requires source_id and target_id")
	}
	if r.TimeOrder != nil && *r.TimeOrder < 1 {
		return fmt.Errorf("time_order must be a positive integer (got %d)", *r.TimeOrder)
	}
	if r.Probability != nil && (*r.Probability < 0 || *r.Probability > 1) {
		return fmt.Errorf("probability must be in [0,1] (got %g)", *r.Probability)
	}
	return r.Details.Validate()
}

// RelationshipLink is one row of a GetComponentRelationships result: the edge,
// the component on the far side, and which direction the edge runs relative to
// the queried component.
type RelationshipLink struct {
	Relationship *Relationship `json:"relationship"`
	Neighbor     *Component    `json:"neighbor"`
	Direction    Direction     `json:"direction"` // incoming or outgoing
}

// DependencyPath is one root-to-leaf walk over DEPENDS_ON edges.
type DependencyPath struct {
	Components    []*Component    `json:"components"`    // root first
	Relationships []*Relationship `json:"relationships"` // len = len(Components)-1
}

// Task is a tracked unit of work, optionally linked to components.
type Task struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Description         string     `json:"description,omitempty"`
	Status              TaskStatus `json:"status"`
	Progress            float64    `json:"progress"` // in [0,1]
	Codebase            string     `json:"codebase,omitempty"`
	RelatedComponentIDs []string   `json:"related_component_ids,omitempty"`
	Metadata            Metadata   `json:"metadata,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Validate checks the task invariants.
func (t *Task) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("task name is required")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid task status: %s", t.Status)
	}
	if t.Progress < 0 || t.Progress > 1 {
		return fmt.Errorf("progress must be in [0,1] (got %g)", t.Progress)
	}
	return t.Metadata.Validate()
}

// SetDefaults applies defaults for fields omitted by callers.
func (t *Task) SetDefaults() {
	if t.Status == "" {
		t.Status = StatusTodo
	}
}

// TaskOrderBy selects the sort column for SearchTasks.
type TaskOrderBy string

// Sort columns accepted by SearchTasks.
const (
	OrderByCreated  TaskOrderBy = "created"
	OrderByName     TaskOrderBy = "name"
	OrderByStatus   TaskOrderBy = "status"
	OrderByProgress TaskOrderBy = "progress"
)

// IsValid reports whether the sort column is recognized.
func (o TaskOrderBy) IsValid() bool {
	switch o {
	case OrderByCreated, OrderByName, OrderByStatus, OrderByProgress:
		return true
	}
	return false
}

// TaskSearch describes a SearchTasks query. Zero-valued criteria are ignored.
type TaskSearch struct {
	TextQuery           string       `json:"text_query,omitempty"` // substring over name and description
	Statuses            []TaskStatus `json:"statuses,omitempty"`
	ProgressMin         *float64     `json:"progress_min,omitempty"`
	ProgressMax         *float64     `json:"progress_max,omitempty"`
	CreatedAfter        *time.Time   `json:"created_after,omitempty"`
	CreatedBefore       *time.Time   `json:"created_before,omitempty"`
	RelatedComponentIDs []string     `json:"related_component_ids,omitempty"`
	OrderBy             TaskOrderBy  `json:"order_by,omitempty"`
	OrderDesc           bool         `json:"order_desc,omitempty"`
	Limit               int          `json:"limit,omitempty"` // capped at 1000, default 100
}

// Comment is a free-text annotation attached to exactly one node, which may be
// a component or a task.
type Comment struct {
	ID        string     `json:"id"`
	ParentID  string     `json:"parent_id"`
	Content   string     `json:"content"`
	Author    string     `json:"author,omitempty"`
	Metadata  Metadata   `json:"metadata,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Validate checks the comment invariants.
func (c *Comment) Validate() error {
	if c.ParentID == "" {
		return fmt.Errorf("comment parent_id is required")
	}
	if c.Content == "" {
		return fmt.Errorf("comment content is required")
	}
	return c.Metadata.Validate()
}

// Snapshot is a labeled, self-contained capture of the entire entity graph.
// Payload is the serialized GraphExport; restoring it never needs the journal.
type Snapshot struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Payload     string    `json:"payload,omitempty"` // omitted by ListSnapshots
}

// GraphExport is the dense serialized form of all live entities at a point in
// time. Internal RELATES_TO and HAS_COMMENT edges are represented by the
// task/comment records themselves, not as relationship rows.
type GraphExport struct {
	Components    []*Component    `json:"components"`
	Relationships []*Relationship `json:"relationships"`
	Tasks         []*Task         `json:"tasks"`
	Comments      []*Comment      `json:"comments"`
}

// RestoreCounts reports how many entities a restore re-created (or, for a dry
// run, would re-create).
type RestoreCounts struct {
	Components    int  `json:"components"`
	Relationships int  `json:"relationships"`
	Tasks         int  `json:"tasks"`
	Comments      int  `json:"comments"`
	DryRun        bool `json:"dry_run"`
}

// KindCount is one row of a codebase overview.
type KindCount struct {
	Kind  ComponentKind `json:"kind"`
	Count int           `json:"count"`
}

// Actor identifies who (and from where) performed a mutation. It is recorded
// verbatim on journal entries.
type Actor struct {
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Source    string `json:"source,omitempty"`
}
