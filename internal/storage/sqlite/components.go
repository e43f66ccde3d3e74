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

const componentColumns = `id, kind, name, description, path, codebase, metadata, created_at, updated_at`

// CreateComponent inserts a new component and journals CREATE_COMPONENT.
// A fresh ID is assigned when the input carries none; supplying an existing
// ID fails with CONFLICT rather than overwriting.
func (s *Store) CreateComponent(ctx context.Context, c *types.Component, actor types.Actor) error {
	if err := c.Validate(); err != nil {
		return validationErr(err)
	}
	if c.ID == "" {
		c.ID = idgen.New(idgen.PrefixComponent, string(c.Kind), c.Name)
	}
	now := types.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	err := s.withTx(ctx, func(conn *sql.Conn) error {
		if err := insertComponent(ctx, conn, c); err != nil {
			return err
		}
		return insertChange(ctx, conn, newChange(types.OpCreateComponent, types.EntityComponent, c.ID, nil, entityState(c), actor, nil))
	})
	if err != nil {
		return err
	}
	telemetry.CountMutation(ctx, string(types.OpCreateComponent))
	s.publish(eventbus.EventComponentCreated, c)
	return nil
}

func insertComponent(ctx context.Context, conn *sql.Conn, c *types.Component) error {
	meta, err := marshalMeta(c.Metadata)
	if err != nil {
		return validationErr(err)
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO components (`+componentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Kind, c.Name, c.Description, c.Path, c.Codebase, meta,
		encodeTime(c.CreatedAt), encodeTime(c.UpdatedAt))
	return wrapDBError("insert component", err)
}

// GetComponent retrieves a component by ID.
func (s *Store) GetComponent(ctx context.Context, id string) (*types.Component, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+componentColumns+` FROM components WHERE id = ?`, id)
	c, err := scanComponent(row)
	if err == sql.ErrNoRows {
		return nil, notFound("component", id)
	}
	if err != nil {
		return nil, wrapDBError("get component", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanComponent(row rowScanner) (*types.Component, error) {
	var c types.Component
	var meta, createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.Kind, &c.Name, &c.Description, &c.Path, &c.Codebase, &meta, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	c.Metadata, err = unmarshalMeta(meta)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = decodeTime(createdAt)
	c.UpdatedAt = decodeTime(updatedAt)
	return &c, nil
}

// SearchComponents returns components matching the filter, capped at
// storage.SearchLimit. Name matching is a case-sensitive substring test.
func (s *Store) SearchComponents(ctx context.Context, filter types.ComponentFilter) ([]*types.Component, error) {
	var where []string
	var args []interface{}
	if filter.Kind != "" {
		if !filter.Kind.IsValid() {
			return nil, types.NewError(types.ErrValidation, "invalid component kind: %s", filter.Kind)
		}
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Name != "" {
		// instr keeps the match case-sensitive; LIKE folds ASCII case.
		where = append(where, "instr(name, ?) > 0")
		args = append(args, filter.Name)
	}
	if filter.Codebase != "" {
		where = append(where, "codebase = ?")
		args = append(args, filter.Codebase)
	}

	query := `SELECT ` + componentColumns + ` FROM components`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at, id LIMIT %d", storage.SearchLimit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("search components", err)
	}
	defer rows.Close()

	var out []*types.Component
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, wrapDBError("scan component", err)
		}
		out = append(out, c)
	}
	return out, wrapDBError("search components", rows.Err())
}

// UpdateComponent merges the patch into the stored component and journals
// UPDATE_COMPONENT with before and after states. The ID cannot be changed.
func (s *Store) UpdateComponent(ctx context.Context, id string, patch types.ComponentPatch, actor types.Actor) (*types.Component, error) {
	if err := patch.Validate(); err != nil {
		return nil, validationErr(err)
	}

	var updated *types.Component
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		before, err := getComponentTx(ctx, conn, id)
		if err != nil {
			return err
		}

		after := *before
		if patch.Kind != nil {
			after.Kind = *patch.Kind
		}
		if patch.Name != nil {
			after.Name = *patch.Name
		}
		if patch.Description != nil {
			after.Description = *patch.Description
		}
		if patch.Path != nil {
			after.Path = *patch.Path
		}
		if patch.Codebase != nil {
			after.Codebase = *patch.Codebase
		}
		if patch.Metadata != nil {
			merged := make(types.Metadata, len(before.Metadata)+len(patch.Metadata))
			for k, v := range before.Metadata {
				merged[k] = v
			}
			for k, v := range patch.Metadata {
				merged[k] = v
			}
			after.Metadata = merged
		}
		after.UpdatedAt = types.Now()

		meta, err := marshalMeta(after.Metadata)
		if err != nil {
			return validationErr(err)
		}
		_, err = conn.ExecContext(ctx, `
			UPDATE components
			SET kind = ?, name = ?, description = ?, path = ?, codebase = ?, metadata = ?, updated_at = ?
			WHERE id = ?`,
			after.Kind, after.Name, after.Description, after.Path, after.Codebase, meta,
			encodeTime(after.UpdatedAt), id)
		if err != nil {
			return wrapDBError("update component", err)
		}

		updated = &after
		return insertChange(ctx, conn, newChange(types.OpUpdateComponent, types.EntityComponent, id,
			entityState(before), entityState(&after), actor, nil))
	})
	if err != nil {
		return nil, err
	}
	telemetry.CountMutation(ctx, string(types.OpUpdateComponent))
	s.publish(eventbus.EventComponentUpdated, updated)
	return updated, nil
}

func getComponentTx(ctx context.Context, conn *sql.Conn, id string) (*types.Component, error) {
	row := conn.QueryRowContext(ctx, `SELECT `+componentColumns+` FROM components WHERE id = ?`, id)
	c, err := scanComponent(row)
	if err == sql.ErrNoRows {
		return nil, notFound("component", id)
	}
	if err != nil {
		return nil, wrapDBError("get component", err)
	}
	return c, nil
}

// DeleteComponent removes a component, every incident relationship, every
// attached comment, and its task links, all in one transaction. Only the
// DELETE_COMPONENT journal entry is emitted; cascaded edge and comment
// removals are implied by it.
func (s *Store) DeleteComponent(ctx context.Context, id string, actor types.Actor) error {
	var before *types.Component
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		var err error
		before, err = getComponentTx(ctx, conn, id)
		if err != nil {
			return err
		}

		if _, err := conn.ExecContext(ctx, `DELETE FROM relationships WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
			return wrapDBError("delete incident relationships", err)
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM comments WHERE parent_id = ?`, id); err != nil {
			return wrapDBError("delete attached comments", err)
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM task_components WHERE component_id = ?`, id); err != nil {
			return wrapDBError("delete task links", err)
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM components WHERE id = ?`, id); err != nil {
			return wrapDBError("delete component", err)
		}

		return insertChange(ctx, conn, newChange(types.OpDeleteComponent, types.EntityComponent, id,
			entityState(before), nil, actor, nil))
	})
	if err != nil {
		return err
	}
	telemetry.CountMutation(ctx, string(types.OpDeleteComponent))
	s.publish(eventbus.EventComponentDeleted, before)
	return nil
}

// GetCodebaseOverview returns per-kind component counts for a codebase,
// sorted by count descending.
func (s *Store) GetCodebaseOverview(ctx context.Context, codebase string) ([]types.KindCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) AS n
		FROM components
		WHERE codebase = ?
		GROUP BY kind
		ORDER BY n DESC, kind`, codebase)
	if err != nil {
		return nil, wrapDBError("codebase overview", err)
	}
	defer rows.Close()

	var out []types.KindCount
	for rows.Next() {
		var kc types.KindCount
		if err := rows.Scan(&kc.Kind, &kc.Count); err != nil {
			return nil, wrapDBError("scan overview", err)
		}
		out = append(out, kc)
	}
	return out, wrapDBError("codebase overview", rows.Err())
}
