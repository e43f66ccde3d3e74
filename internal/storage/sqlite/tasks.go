package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/codegraphhq/codegraph/internal/eventbus"
	"github.com/codegraphhq/codegraph/internal/idgen"
	"github.com/codegraphhq/codegraph/internal/storage"
	"github.com/codegraphhq/codegraph/internal/telemetry"
	"github.com/codegraphhq/codegraph/internal/types"
)

const taskColumns = `id, name, description, status, progress, codebase, metadata, created_at, updated_at`

// CreateTask inserts a task, links its related components (internal
// RELATES_TO edges), and journals CREATE_TASK.
func (s *Store) CreateTask(ctx context.Context, t *types.Task, actor types.Actor) error {
	t.SetDefaults()
	if err := t.Validate(); err != nil {
		return validationErr(err)
	}
	if t.ID == "" {
		t.ID = idgen.New(idgen.PrefixTask, t.Name)
	}
	now := types.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	err := s.withTx(ctx, func(conn *sql.Conn) error {
		if err := insertTask(ctx, conn, t); err != nil {
			return err
		}
		return insertChange(ctx, conn, newChange(types.OpCreateTask, types.EntityTask, t.ID, nil, entityState(t), actor, nil))
	})
	if err != nil {
		return err
	}
	telemetry.CountMutation(ctx, string(types.OpCreateTask))
	s.publish(eventbus.EventTaskCreated, t)
	return nil
}

func insertTask(ctx context.Context, conn *sql.Conn, t *types.Task) error {
	meta, err := marshalMeta(t.Metadata)
	if err != nil {
		return validationErr(err)
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, t.Status, t.Progress, t.Codebase, meta,
		encodeTime(t.CreatedAt), encodeTime(t.UpdatedAt))
	if err != nil {
		return wrapDBError("insert task", err)
	}
	for _, cid := range t.RelatedComponentIDs {
		if err := requireComponentTx(ctx, conn, cid); err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO task_components (task_id, component_id) VALUES (?, ?)`, t.ID, cid); err != nil {
			return wrapDBError("link task component", err)
		}
	}
	return nil
}

// GetTask retrieves a task with its related component IDs.
func (s *Store) GetTask(ctx context.Context, id string) (*types.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, notFound("task", id)
	}
	if err != nil {
		return nil, wrapDBError("get task", err)
	}
	if err := s.loadTaskComponents(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func scanTask(row rowScanner) (*types.Task, error) {
	var t types.Task
	var meta, createdAt, updatedAt string
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Status, &t.Progress, &t.Codebase, &meta, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.Metadata, err = unmarshalMeta(meta)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = decodeTime(createdAt)
	t.UpdatedAt = decodeTime(updatedAt)
	return &t, nil
}

func (s *Store) loadTaskComponents(ctx context.Context, t *types.Task) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT component_id FROM task_components WHERE task_id = ? ORDER BY component_id`, t.ID)
	if err != nil {
		return wrapDBError("load task components", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			return wrapDBError("scan task component", err)
		}
		t.RelatedComponentIDs = append(t.RelatedComponentIDs, cid)
	}
	return wrapDBError("load task components", rows.Err())
}

// GetTasks lists tasks, newest first, optionally filtered by status.
func (s *Store) GetTasks(ctx context.Context, statuses ...types.TaskStatus) ([]*types.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []interface{}
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			if !st.IsValid() {
				return nil, types.NewError(types.ErrValidation, "invalid task status: %s", st)
			}
			placeholders[i] = "?"
			args = append(args, st)
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY created_at DESC, id"

	return s.queryTasks(ctx, query, args...)
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...interface{}) ([]*types.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("query tasks", err)
	}
	defer rows.Close()

	var out []*types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, wrapDBError("scan task", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("query tasks", err)
	}
	for _, t := range out {
		if err := s.loadTaskComponents(ctx, t); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateTaskStatus sets a task's status and, when given, its progress, and
// journals UPDATE_TASK with before and after states.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status types.TaskStatus, progress *float64, actor types.Actor) (*types.Task, error) {
	if !status.IsValid() {
		return nil, types.NewError(types.ErrValidation, "invalid task status: %s", status)
	}
	if progress != nil && (*progress < 0 || *progress > 1) {
		return nil, types.NewError(types.ErrValidation, "progress must be in [0,1] (got %g)", *progress)
	}

	var updated *types.Task
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
		before, err := scanTask(row)
		if err == sql.ErrNoRows {
			return notFound("task", id)
		}
		if err != nil {
			return wrapDBError("get task", err)
		}

		after := *before
		after.Status = status
		if progress != nil {
			after.Progress = *progress
		}
		after.UpdatedAt = types.Now()

		_, err = conn.ExecContext(ctx,
			`UPDATE tasks SET status = ?, progress = ?, updated_at = ? WHERE id = ?`,
			after.Status, after.Progress, encodeTime(after.UpdatedAt), id)
		if err != nil {
			return wrapDBError("update task", err)
		}

		updated = &after
		return insertChange(ctx, conn, newChange(types.OpUpdateTask, types.EntityTask, id,
			entityState(before), entityState(&after), actor, nil))
	})
	if err != nil {
		return nil, err
	}
	if err := s.loadTaskComponents(ctx, updated); err != nil {
		return nil, err
	}
	telemetry.CountMutation(ctx, string(types.OpUpdateTask))
	s.publish(eventbus.EventTaskUpdated, updated)
	return updated, nil
}

// SearchTasks runs a criteria query over tasks. The limit is capped at
// storage.TaskSearchMaxLimit and defaults to storage.TaskSearchDefaultLimit.
func (s *Store) SearchTasks(ctx context.Context, search types.TaskSearch) ([]*types.Task, error) {
	var where []string
	var args []interface{}

	if search.TextQuery != "" {
		where = append(where, "(instr(name, ?) > 0 OR instr(description, ?) > 0)")
		args = append(args, search.TextQuery, search.TextQuery)
	}
	if len(search.Statuses) > 0 {
		placeholders := make([]string, len(search.Statuses))
		for i, st := range search.Statuses {
			if !st.IsValid() {
				return nil, types.NewError(types.ErrValidation, "invalid task status: %s", st)
			}
			placeholders[i] = "?"
			args = append(args, st)
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if search.ProgressMin != nil {
		where = append(where, "progress >= ?")
		args = append(args, *search.ProgressMin)
	}
	if search.ProgressMax != nil {
		where = append(where, "progress <= ?")
		args = append(args, *search.ProgressMax)
	}
	if search.CreatedAfter != nil {
		where = append(where, "created_at >= ?")
		args = append(args, encodeTime(*search.CreatedAfter))
	}
	if search.CreatedBefore != nil {
		where = append(where, "created_at <= ?")
		args = append(args, encodeTime(*search.CreatedBefore))
	}
	if len(search.RelatedComponentIDs) > 0 {
		placeholders := make([]string, len(search.RelatedComponentIDs))
		for i, cid := range search.RelatedComponentIDs {
			placeholders[i] = "?"
			args = append(args, cid)
		}
		where = append(where,
			"id IN (SELECT task_id FROM task_components WHERE component_id IN ("+strings.Join(placeholders, ", ")+"))")
	}

	orderBy := search.OrderBy
	if orderBy == "" {
		orderBy = types.OrderByCreated
	}
	if !orderBy.IsValid() {
		return nil, types.NewError(types.ErrValidation, "invalid order_by: %s", orderBy)
	}
	// Whitelist map keeps user input out of the ORDER BY clause.
	columns := map[types.TaskOrderBy]string{
		types.OrderByCreated:  "created_at",
		types.OrderByName:     "name",
		types.OrderByStatus:   "status",
		types.OrderByProgress: "progress",
	}
	direction := "ASC"
	if search.OrderDesc {
		direction = "DESC"
	}

	limit := search.Limit
	if limit <= 0 {
		limit = storage.TaskSearchDefaultLimit
	}
	if limit > storage.TaskSearchMaxLimit {
		limit = storage.TaskSearchMaxLimit
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id LIMIT %d", columns[orderBy], direction, limit)

	return s.queryTasks(ctx, query, args...)
}
