package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/codegraphhq/codegraph/internal/types"
)

// SaveSnapshot persists a snapshot record. The payload travels verbatim.
func (s *Store) SaveSnapshot(ctx context.Context, snap *types.Snapshot) error {
	if snap.ID == "" || snap.Name == "" {
		return types.NewError(types.ErrValidation, "snapshot requires id and name")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, name, description, ts, payload)
		VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.Name, snap.Description, encodeTime(snap.Timestamp), snap.Payload)
	return wrapDBError("save snapshot", err)
}

// GetSnapshot retrieves a snapshot including its payload.
func (s *Store) GetSnapshot(ctx context.Context, id string) (*types.Snapshot, error) {
	var snap types.Snapshot
	var ts string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, ts, payload FROM snapshots WHERE id = ?`, id).
		Scan(&snap.ID, &snap.Name, &snap.Description, &ts, &snap.Payload)
	if err == sql.ErrNoRows {
		return nil, notFound("snapshot", id)
	}
	if err != nil {
		return nil, wrapDBError("get snapshot", err)
	}
	snap.Timestamp = decodeTime(ts)
	return &snap, nil
}

// ListSnapshots returns snapshot metadata, newest first, without payloads.
func (s *Store) ListSnapshots(ctx context.Context) ([]*types.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, ts FROM snapshots ORDER BY ts DESC, id`)
	if err != nil {
		return nil, wrapDBError("list snapshots", err)
	}
	defer rows.Close()

	var out []*types.Snapshot
	for rows.Next() {
		var snap types.Snapshot
		var ts string
		if err := rows.Scan(&snap.ID, &snap.Name, &snap.Description, &ts); err != nil {
			return nil, wrapDBError("scan snapshot", err)
		}
		snap.Timestamp = decodeTime(ts)
		out = append(out, &snap)
	}
	return out, wrapDBError("list snapshots", rows.Err())
}

// ExportGraph reads every live entity in one transaction: components, tasks,
// comments, and user-visible relationships. Journal entries and snapshot
// records are not part of the graph.
func (s *Store) ExportGraph(ctx context.Context) (*types.GraphExport, error) {
	export := &types.GraphExport{}
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `SELECT `+componentColumns+` FROM components ORDER BY id`)
		if err != nil {
			return wrapDBError("export components", err)
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanComponent(rows)
			if err != nil {
				return wrapDBError("scan component", err)
			}
			export.Components = append(export.Components, c)
		}
		if err := rows.Err(); err != nil {
			return wrapDBError("export components", err)
		}

		relRows, err := conn.QueryContext(ctx, `SELECT `+relationshipColumns+` FROM relationships ORDER BY id`)
		if err != nil {
			return wrapDBError("export relationships", err)
		}
		defer relRows.Close()
		for relRows.Next() {
			r, err := scanRelationship(relRows)
			if err != nil {
				return wrapDBError("scan relationship", err)
			}
			export.Relationships = append(export.Relationships, r)
		}
		if err := relRows.Err(); err != nil {
			return wrapDBError("export relationships", err)
		}

		taskRows, err := conn.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
		if err != nil {
			return wrapDBError("export tasks", err)
		}
		defer taskRows.Close()
		taskIndex := make(map[string]*types.Task)
		for taskRows.Next() {
			t, err := scanTask(taskRows)
			if err != nil {
				return wrapDBError("scan task", err)
			}
			export.Tasks = append(export.Tasks, t)
			taskIndex[t.ID] = t
		}
		if err := taskRows.Err(); err != nil {
			return wrapDBError("export tasks", err)
		}

		linkRows, err := conn.QueryContext(ctx,
			`SELECT task_id, component_id FROM task_components ORDER BY task_id, component_id`)
		if err != nil {
			return wrapDBError("export task links", err)
		}
		defer linkRows.Close()
		for linkRows.Next() {
			var taskID, componentID string
			if err := linkRows.Scan(&taskID, &componentID); err != nil {
				return wrapDBError("scan task link", err)
			}
			if t := taskIndex[taskID]; t != nil {
				t.RelatedComponentIDs = append(t.RelatedComponentIDs, componentID)
			}
		}
		if err := linkRows.Err(); err != nil {
			return wrapDBError("export task links", err)
		}

		commentRows, err := conn.QueryContext(ctx, `SELECT `+commentColumns+` FROM comments ORDER BY id`)
		if err != nil {
			return wrapDBError("export comments", err)
		}
		defer commentRows.Close()
		for commentRows.Next() {
			c, err := scanComment(commentRows)
			if err != nil {
				return wrapDBError("scan comment", err)
			}
			export.Comments = append(export.Comments, c)
		}
		return wrapDBError("export comments", commentRows.Err())
	})
	if err != nil {
		return nil, err
	}
	return export, nil
}

// RestoreGraph atomically replaces the live graph with the export: purge,
// then components, tasks, comments, relationships, so every reference
// resolves by insertion time. Nothing is journaled; journal entries and
// snapshot records are untouched.
func (s *Store) RestoreGraph(ctx context.Context, export *types.GraphExport) (*types.RestoreCounts, error) {
	counts := &types.RestoreCounts{}
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		if err := purgeGraphTx(ctx, conn); err != nil {
			return err
		}
		for _, c := range export.Components {
			if err := insertComponent(ctx, conn, c); err != nil {
				return err
			}
			counts.Components++
		}
		for _, t := range export.Tasks {
			if err := insertTask(ctx, conn, t); err != nil {
				return err
			}
			counts.Tasks++
		}
		for _, c := range export.Comments {
			if err := insertComment(ctx, conn, c); err != nil {
				return err
			}
			counts.Comments++
		}
		for _, r := range export.Relationships {
			if err := insertRelationship(ctx, conn, r); err != nil {
				return err
			}
			counts.Relationships++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// purgeGraphTx deletes all live entities. The change_events and snapshots
// tables are never touched.
func purgeGraphTx(ctx context.Context, conn *sql.Conn) error {
	for _, table := range []string{"task_components", "comments", "relationships", "tasks", "components"} {
		if _, err := conn.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return wrapDBError("purge "+table, err)
		}
	}
	return nil
}

// ApplyChange re-applies one journal entry to the live graph without
// journaling it again. Used by time-travel replay; each entry is its own
// transaction so replay can continue past individual failures.
func (s *Store) ApplyChange(ctx context.Context, e *types.ChangeEvent) error {
	switch e.Operation {
	case types.OpCreateComponent, types.OpBulkCreateComponents:
		var c types.Component
		if err := decodeState(e.AfterState, &c); err != nil {
			return err
		}
		return s.withTx(ctx, func(conn *sql.Conn) error {
			return insertComponent(ctx, conn, &c)
		})

	case types.OpUpdateComponent:
		var c types.Component
		if err := decodeState(e.AfterState, &c); err != nil {
			return err
		}
		return s.withTx(ctx, func(conn *sql.Conn) error {
			if err := requireComponentTx(ctx, conn, e.EntityID); err != nil {
				return err
			}
			meta, err := marshalMeta(c.Metadata)
			if err != nil {
				return validationErr(err)
			}
			_, err = conn.ExecContext(ctx, `
				UPDATE components
				SET kind = ?, name = ?, description = ?, path = ?, codebase = ?, metadata = ?, updated_at = ?
				WHERE id = ?`,
				c.Kind, c.Name, c.Description, c.Path, c.Codebase, meta,
				encodeTime(c.UpdatedAt), e.EntityID)
			return wrapDBError("replay update component", err)
		})

	case types.OpDeleteComponent:
		return s.withTx(ctx, func(conn *sql.Conn) error {
			if err := requireComponentTx(ctx, conn, e.EntityID); err != nil {
				return err
			}
			for _, q := range []string{
				`DELETE FROM relationships WHERE source_id = ? OR target_id = ?`,
				`DELETE FROM comments WHERE parent_id = ?`,
				`DELETE FROM task_components WHERE component_id = ?`,
				`DELETE FROM components WHERE id = ?`,
			} {
				args := []interface{}{e.EntityID}
				if q == `DELETE FROM relationships WHERE source_id = ? OR target_id = ?` {
					args = append(args, e.EntityID)
				}
				if _, err := conn.ExecContext(ctx, q, args...); err != nil {
					return wrapDBError("replay delete component", err)
				}
			}
			return nil
		})

	case types.OpCreateRelationship, types.OpBulkCreateRelationships:
		var r types.Relationship
		if err := decodeState(e.AfterState, &r); err != nil {
			return err
		}
		return s.withTx(ctx, func(conn *sql.Conn) error {
			if err := requireComponentTx(ctx, conn, r.SourceID); err != nil {
				return err
			}
			if err := requireComponentTx(ctx, conn, r.TargetID); err != nil {
				return err
			}
			return insertRelationship(ctx, conn, &r)
		})

	case types.OpDeleteRelationship:
		// Find the matching edge and delete it; the entry carried the edge's
		// last state. An absent edge is reported as a failure by the caller.
		return s.withTx(ctx, func(conn *sql.Conn) error {
			res, err := conn.ExecContext(ctx, `DELETE FROM relationships WHERE id = ?`, e.EntityID)
			if err != nil {
				return wrapDBError("replay delete relationship", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return wrapDBError("replay delete relationship", err)
			}
			if n == 0 {
				return notFound("relationship", e.EntityID)
			}
			return nil
		})

	case types.OpCreateTask, types.OpBulkCreateTasks:
		var t types.Task
		if err := decodeState(e.AfterState, &t); err != nil {
			return err
		}
		return s.withTx(ctx, func(conn *sql.Conn) error {
			return insertTask(ctx, conn, &t)
		})

	case types.OpUpdateTask:
		var t types.Task
		if err := decodeState(e.AfterState, &t); err != nil {
			return err
		}
		return s.withTx(ctx, func(conn *sql.Conn) error {
			res, err := conn.ExecContext(ctx,
				`UPDATE tasks SET status = ?, progress = ?, updated_at = ? WHERE id = ?`,
				t.Status, t.Progress, encodeTime(t.UpdatedAt), e.EntityID)
			if err != nil {
				return wrapDBError("replay update task", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return wrapDBError("replay update task", err)
			}
			if n == 0 {
				return notFound("task", e.EntityID)
			}
			return nil
		})

	case types.OpCreateComment:
		var c types.Comment
		if err := decodeState(e.AfterState, &c); err != nil {
			return err
		}
		return s.withTx(ctx, func(conn *sql.Conn) error {
			if err := requireNodeTx(ctx, conn, c.ParentID); err != nil {
				return err
			}
			return insertComment(ctx, conn, &c)
		})

	case types.OpUpdateComment:
		var c types.Comment
		if err := decodeState(e.AfterState, &c); err != nil {
			return err
		}
		return s.withTx(ctx, func(conn *sql.Conn) error {
			var updatedAt interface{}
			if c.UpdatedAt != nil {
				updatedAt = encodeTime(*c.UpdatedAt)
			}
			res, err := conn.ExecContext(ctx,
				`UPDATE comments SET content = ?, updated_at = ? WHERE id = ?`,
				c.Content, updatedAt, e.EntityID)
			if err != nil {
				return wrapDBError("replay update comment", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return wrapDBError("replay update comment", err)
			}
			if n == 0 {
				return notFound("comment", e.EntityID)
			}
			return nil
		})

	case types.OpDeleteComment:
		return s.withTx(ctx, func(conn *sql.Conn) error {
			res, err := conn.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, e.EntityID)
			if err != nil {
				return wrapDBError("replay delete comment", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return wrapDBError("replay delete comment", err)
			}
			if n == 0 {
				return notFound("comment", e.EntityID)
			}
			return nil
		})

	default:
		return types.NewError(types.ErrValidation, "unknown operation: %s", e.Operation)
	}
}

func decodeState(state types.Metadata, into interface{}) error {
	if state == nil {
		return types.NewError(types.ErrValidation, "journal entry has no after state")
	}
	b, err := json.Marshal(state)
	if err != nil {
		return types.WrapError(types.ErrInternal, err, "encode state")
	}
	if err := json.Unmarshal(b, into); err != nil {
		return types.WrapError(types.ErrValidation, err, "decode state: %v", err)
	}
	return nil
}
