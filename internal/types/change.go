package types

import "time"

// Operation categorizes change journal entries.
type Operation string

// Operation constants for the change journal.
const (
	OpCreateComponent Operation = "CREATE_COMPONENT"
	OpUpdateComponent Operation = "UPDATE_COMPONENT"
	OpDeleteComponent Operation = "DELETE_COMPONENT"

	OpCreateRelationship Operation = "CREATE_RELATIONSHIP"
	OpDeleteRelationship Operation = "DELETE_RELATIONSHIP"

	OpCreateTask Operation = "CREATE_TASK"
	OpUpdateTask Operation = "UPDATE_TASK"

	OpCreateComment Operation = "CREATE_COMMENT"
	OpUpdateComment Operation = "UPDATE_COMMENT"
	OpDeleteComment Operation = "DELETE_COMMENT"

	// Bulk variants. Each item of a committed bulk is journaled individually
	// under these, with metadata {bulk_operation: true, total_count: N}.
	OpBulkCreateComponents    Operation = "BULK_CREATE_COMPONENTS"
	OpBulkCreateRelationships Operation = "BULK_CREATE_RELATIONSHIPS"
	OpBulkCreateTasks         Operation = "BULK_CREATE_TASKS"
)

var operations = map[Operation]bool{
	OpCreateComponent: true, OpUpdateComponent: true, OpDeleteComponent: true,
	OpCreateRelationship: true, OpDeleteRelationship: true,
	OpCreateTask: true, OpUpdateTask: true,
	OpCreateComment: true, OpUpdateComment: true, OpDeleteComment: true,
	OpBulkCreateComponents: true, OpBulkCreateRelationships: true, OpBulkCreateTasks: true,
}

// IsValid reports whether the operation is recognized.
func (o Operation) IsValid() bool { return operations[o] }

// EntityKind names the kind of entity a journal entry refers to.
type EntityKind string

// Entity kind constants for journal entries.
const (
	EntityComponent    EntityKind = "Component"
	EntityRelationship EntityKind = "Relationship"
	EntityTask         EntityKind = "Task"
	EntityComment      EntityKind = "Comment"
)

// ChangeEvent is one journal entry: a single committed mutation with its
// before and after state. CREATE entries carry only AfterState, DELETE entries
// only BeforeState, UPDATE entries both.
type ChangeEvent struct {
	ID          string     `json:"id"`
	Operation   Operation  `json:"operation"`
	EntityKind  EntityKind `json:"entity_kind"`
	EntityID    string     `json:"entity_id"`
	BeforeState Metadata   `json:"before_state,omitempty"` // decoded entity fields
	AfterState  Metadata   `json:"after_state,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
	SessionID   string     `json:"session_id,omitempty"`
	UserID      string     `json:"user_id,omitempty"`
	Source      string     `json:"source,omitempty"`
	Metadata    Metadata   `json:"metadata,omitempty"`
}

// JournalStats summarizes the change journal.
type JournalStats struct {
	Total        int               `json:"total"`
	ByOperation  map[Operation]int `json:"by_operation"`
	ByDay        map[string]int    `json:"by_day"` // YYYY-MM-DD for the last 30 days
	FirstChange  *time.Time        `json:"first_change,omitempty"`
	LatestChange *time.Time        `json:"latest_change,omitempty"`
}
