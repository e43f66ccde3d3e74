package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/codegraphhq/codegraph/internal/idgen"
	"github.com/codegraphhq/codegraph/internal/telemetry"
	"github.com/codegraphhq/codegraph/internal/types"
)

const commentColumns = `id, parent_id, content, author, metadata, created_at, updated_at`

// CreateComment attaches a comment to an existing node. The parent may be a
// component or a task; it must exist at creation time.
func (s *Store) CreateComment(ctx context.Context, c *types.Comment, actor types.Actor) error {
	if err := c.Validate(); err != nil {
		return validationErr(err)
	}
	if c.ID == "" {
		c.ID = idgen.New(idgen.PrefixComment, c.ParentID, c.Author)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = types.Now()
	}

	err := s.withTx(ctx, func(conn *sql.Conn) error {
		if err := requireNodeTx(ctx, conn, c.ParentID); err != nil {
			return err
		}
		if err := insertComment(ctx, conn, c); err != nil {
			return err
		}
		return insertChange(ctx, conn, newChange(types.OpCreateComment, types.EntityComment, c.ID,
			nil, entityState(c), actor, nil))
	})
	if err != nil {
		return err
	}
	telemetry.CountMutation(ctx, string(types.OpCreateComment))
	return nil
}

// requireNodeTx checks that the ID resolves to a component or a task.
func requireNodeTx(ctx context.Context, conn *sql.Conn, id string) error {
	var one int
	err := conn.QueryRowContext(ctx,
		`SELECT 1 FROM components WHERE id = ? UNION SELECT 1 FROM tasks WHERE id = ?`, id, id).Scan(&one)
	if err == sql.ErrNoRows {
		return notFound("node", id)
	}
	return wrapDBError("check node", err)
}

func insertComment(ctx context.Context, conn *sql.Conn, c *types.Comment) error {
	meta, err := marshalMeta(c.Metadata)
	if err != nil {
		return validationErr(err)
	}
	var updatedAt interface{}
	if c.UpdatedAt != nil {
		updatedAt = encodeTime(*c.UpdatedAt)
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO comments (`+commentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ParentID, c.Content, c.Author, meta, encodeTime(c.CreatedAt), updatedAt)
	return wrapDBError("insert comment", err)
}

// GetComment retrieves one comment by ID.
func (s *Store) GetComment(ctx context.Context, id string) (*types.Comment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = ?`, id)
	c, err := scanComment(row)
	if err == sql.ErrNoRows {
		return nil, notFound("comment", id)
	}
	if err != nil {
		return nil, wrapDBError("get comment", err)
	}
	return c, nil
}

func scanComment(row rowScanner) (*types.Comment, error) {
	var c types.Comment
	var meta, createdAt string
	var updatedAt sql.NullString
	err := row.Scan(&c.ID, &c.ParentID, &c.Content, &c.Author, &meta, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	c.Metadata, err = unmarshalMeta(meta)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = decodeTime(createdAt)
	if updatedAt.Valid {
		c.UpdatedAt = decodeTimePtr(&updatedAt.String)
	}
	return &c, nil
}

// GetNodeComments returns the comments attached to a node, newest first.
// The node must exist; limit <= 0 means no limit.
func (s *Store) GetNodeComments(ctx context.Context, nodeID string, limit int) ([]*types.Comment, error) {
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		return requireNodeTx(ctx, conn, nodeID)
	})
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + commentColumns + ` FROM comments WHERE parent_id = ? ORDER BY created_at DESC, id`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query, nodeID)
	if err != nil {
		return nil, wrapDBError("get node comments", err)
	}
	defer rows.Close()

	var out []*types.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, wrapDBError("scan comment", err)
		}
		out = append(out, c)
	}
	return out, wrapDBError("get node comments", rows.Err())
}

// UpdateComment replaces a comment's content and stamps updated, journaling
// UPDATE_COMMENT with before and after states.
func (s *Store) UpdateComment(ctx context.Context, id, content string, actor types.Actor) (*types.Comment, error) {
	if content == "" {
		return nil, types.NewError(types.ErrValidation, "comment content is required")
	}

	var updated *types.Comment
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = ?`, id)
		before, err := scanComment(row)
		if err == sql.ErrNoRows {
			return notFound("comment", id)
		}
		if err != nil {
			return wrapDBError("get comment", err)
		}

		after := *before
		after.Content = content
		now := types.Now()
		after.UpdatedAt = &now

		if _, err := conn.ExecContext(ctx,
			`UPDATE comments SET content = ?, updated_at = ? WHERE id = ?`,
			after.Content, encodeTime(now), id); err != nil {
			return wrapDBError("update comment", err)
		}

		updated = &after
		return insertChange(ctx, conn, newChange(types.OpUpdateComment, types.EntityComment, id,
			entityState(before), entityState(&after), actor, nil))
	})
	if err != nil {
		return nil, err
	}
	telemetry.CountMutation(ctx, string(types.OpUpdateComment))
	return updated, nil
}

// DeleteComment removes one comment and journals DELETE_COMMENT.
func (s *Store) DeleteComment(ctx context.Context, id string, actor types.Actor) error {
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = ?`, id)
		before, err := scanComment(row)
		if err == sql.ErrNoRows {
			return notFound("comment", id)
		}
		if err != nil {
			return wrapDBError("get comment", err)
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id); err != nil {
			return wrapDBError("delete comment", err)
		}
		return insertChange(ctx, conn, newChange(types.OpDeleteComment, types.EntityComment, id,
			entityState(before), nil, actor, nil))
	})
	if err != nil {
		return err
	}
	telemetry.CountMutation(ctx, string(types.OpDeleteComment))
	return nil
}
