package sqlite

import (
	"context"
	"fmt"
)

const schema = `
-- Components: the primary graph nodes
CREATE TABLE IF NOT EXISTS components (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    name TEXT NOT NULL CHECK(length(name) > 0),
    description TEXT NOT NULL DEFAULT '',
    path TEXT NOT NULL DEFAULT '',
    codebase TEXT NOT NULL DEFAULT '',
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_components_kind ON components(kind);
CREATE INDEX IF NOT EXISTS idx_components_codebase ON components(codebase);
CREATE INDEX IF NOT EXISTS idx_components_name ON components(name);

-- Relationships: directed typed edges between components.
-- Only user-visible edge types live here; HAS_COMMENT and RELATES_TO are
-- structural (comments table, task_components table).
CREATE TABLE IF NOT EXISTS relationships (
    id TEXT PRIMARY KEY,
    rel_type TEXT NOT NULL,
    source_id TEXT NOT NULL REFERENCES components(id) ON DELETE CASCADE,
    target_id TEXT NOT NULL REFERENCES components(id) ON DELETE CASCADE,
    details TEXT NOT NULL DEFAULT '{}',
    time_order INTEGER CHECK(time_order IS NULL OR time_order >= 1),
    probability REAL CHECK(probability IS NULL OR (probability >= 0 AND probability <= 1)),
    reasoning TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id);
CREATE INDEX IF NOT EXISTS idx_relationships_type ON relationships(rel_type);

-- Tasks
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL CHECK(length(name) > 0),
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'TODO',
    progress REAL NOT NULL DEFAULT 0 CHECK(progress >= 0 AND progress <= 1),
    codebase TEXT NOT NULL DEFAULT '',
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_codebase ON tasks(codebase);

-- Task <-> Component links (the internal RELATES_TO edges)
CREATE TABLE IF NOT EXISTS task_components (
    task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    component_id TEXT NOT NULL REFERENCES components(id) ON DELETE CASCADE,
    PRIMARY KEY (task_id, component_id)
);

-- Comments, attached to a component or a task (the internal HAS_COMMENT
-- edges). No FK: the parent may live in either table; cascade is enforced in
-- the delete transactions.
CREATE TABLE IF NOT EXISTS comments (
    id TEXT PRIMARY KEY,
    parent_id TEXT NOT NULL,
    content TEXT NOT NULL CHECK(length(content) > 0),
    author TEXT NOT NULL DEFAULT '',
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL,
    updated_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_comments_parent ON comments(parent_id);

-- Change journal: append-only, one row per committed mutation.
-- seq breaks timestamp ties by insertion order.
CREATE TABLE IF NOT EXISTS change_events (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    operation TEXT NOT NULL,
    entity_kind TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    before_state TEXT,
    after_state TEXT,
    ts TEXT NOT NULL,
    session_id TEXT NOT NULL DEFAULT '',
    user_id TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    metadata TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_changes_ts ON change_events(ts);
CREATE INDEX IF NOT EXISTS idx_changes_operation ON change_events(operation);
CREATE INDEX IF NOT EXISTS idx_changes_session ON change_events(session_id);
CREATE INDEX IF NOT EXISTS idx_changes_entity ON change_events(entity_id);

-- Snapshots: labeled full-graph captures; payload is a serialized GraphExport
CREATE TABLE IF NOT EXISTS snapshots (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    ts TEXT NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts);
`

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}
