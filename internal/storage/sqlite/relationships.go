package sqlite

import (
	"context"
	"database/sql"

	"github.com/codegraphhq/codegraph/internal/eventbus"
	"github.com/codegraphhq/codegraph/internal/idgen"
	"github.com/codegraphhq/codegraph/internal/storage"
	"github.com/codegraphhq/codegraph/internal/telemetry"
	"github.com/codegraphhq/codegraph/internal/types"
)

const relationshipColumns = `id, rel_type, source_id, target_id, details, time_order, probability, reasoning, created_at`

// CreateRelationship inserts a directed edge. Both endpoints must exist.
// Temporal fields are passed through verbatim after range validation.
func (s *Store) CreateRelationship(ctx context.Context, r *types.Relationship, actor types.Actor) error {
	if err := r.Validate(); err != nil {
		return validationErr(err)
	}
	if r.ID == "" {
		r.ID = idgen.New(idgen.PrefixRelationship, string(r.Type), r.SourceID, r.TargetID)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = types.Now()
	}

	err := s.withTx(ctx, func(conn *sql.Conn) error {
		if err := requireComponentTx(ctx, conn, r.SourceID); err != nil {
			return err
		}
		if err := requireComponentTx(ctx, conn, r.TargetID); err != nil {
			return err
		}
		if err := insertRelationship(ctx, conn, r); err != nil {
			return err
		}
		return insertChange(ctx, conn, newChange(types.OpCreateRelationship, types.EntityRelationship, r.ID,
			nil, entityState(r), actor, nil))
	})
	if err != nil {
		return err
	}
	telemetry.CountMutation(ctx, string(types.OpCreateRelationship))
	s.publish(eventbus.EventRelationshipCreated, r)
	return nil
}

func requireComponentTx(ctx context.Context, conn *sql.Conn, id string) error {
	var one int
	err := conn.QueryRowContext(ctx, `SELECT 1 FROM components WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return notFound("component", id)
	}
	return wrapDBError("check component", err)
}

func insertRelationship(ctx context.Context, conn *sql.Conn, r *types.Relationship) error {
	details, err := marshalMeta(r.Details)
	if err != nil {
		return validationErr(err)
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO relationships (`+relationshipColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Type, r.SourceID, r.TargetID, details,
		r.TimeOrder, r.Probability, r.Reasoning, encodeTime(r.CreatedAt))
	return wrapDBError("insert relationship", err)
}

// DeleteRelationship removes a single edge by ID and journals
// DELETE_RELATIONSHIP with the edge's last state.
func (s *Store) DeleteRelationship(ctx context.Context, id string, actor types.Actor) error {
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `SELECT `+relationshipColumns+` FROM relationships WHERE id = ?`, id)
		before, err := scanRelationship(row)
		if err == sql.ErrNoRows {
			return notFound("relationship", id)
		}
		if err != nil {
			return wrapDBError("get relationship", err)
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM relationships WHERE id = ?`, id); err != nil {
			return wrapDBError("delete relationship", err)
		}
		return insertChange(ctx, conn, newChange(types.OpDeleteRelationship, types.EntityRelationship, id,
			entityState(before), nil, actor, nil))
	})
	if err != nil {
		return err
	}
	telemetry.CountMutation(ctx, string(types.OpDeleteRelationship))
	return nil
}

func scanRelationship(row rowScanner) (*types.Relationship, error) {
	var r types.Relationship
	var details, createdAt string
	var timeOrder sql.NullInt64
	var probability sql.NullFloat64
	err := row.Scan(&r.ID, &r.Type, &r.SourceID, &r.TargetID, &details, &timeOrder, &probability, &r.Reasoning, &createdAt)
	if err != nil {
		return nil, err
	}
	r.Details, err = unmarshalMeta(details)
	if err != nil {
		return nil, err
	}
	if timeOrder.Valid {
		v := int(timeOrder.Int64)
		r.TimeOrder = &v
	}
	if probability.Valid {
		v := probability.Float64
		r.Probability = &v
	}
	r.CreatedAt = decodeTime(createdAt)
	return &r, nil
}

// GetComponentRelationships lists the edges incident to a component together
// with the neighbor on the far side. Only user-visible edge types are stored
// in the relationships table, so HAS_COMMENT and RELATES_TO never appear.
func (s *Store) GetComponentRelationships(ctx context.Context, componentID string, dir types.Direction) ([]*types.RelationshipLink, error) {
	if dir == "" {
		dir = types.DirBoth
	}
	if !dir.IsValid() {
		return nil, types.NewError(types.ErrValidation, "invalid direction: %s", dir)
	}
	if _, err := s.GetComponent(ctx, componentID); err != nil {
		return nil, err
	}

	var out []*types.RelationshipLink
	if dir == types.DirOutgoing || dir == types.DirBoth {
		links, err := s.relationshipLinks(ctx, componentID, types.DirOutgoing)
		if err != nil {
			return nil, err
		}
		out = append(out, links...)
	}
	if dir == types.DirIncoming || dir == types.DirBoth {
		links, err := s.relationshipLinks(ctx, componentID, types.DirIncoming)
		if err != nil {
			return nil, err
		}
		out = append(out, links...)
	}
	return out, nil
}

func (s *Store) relationshipLinks(ctx context.Context, componentID string, dir types.Direction) ([]*types.RelationshipLink, error) {
	join, match := "r.target_id", "r.source_id"
	if dir == types.DirIncoming {
		join, match = "r.source_id", "r.target_id"
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.rel_type, r.source_id, r.target_id, r.details, r.time_order, r.probability, r.reasoning, r.created_at,
		       c.id, c.kind, c.name, c.description, c.path, c.codebase, c.metadata, c.created_at, c.updated_at
		FROM relationships r
		JOIN components c ON c.id = `+join+`
		WHERE `+match+` = ?
		ORDER BY r.created_at, r.id`, componentID)
	if err != nil {
		return nil, wrapDBError("get relationships", err)
	}
	defer rows.Close()

	var out []*types.RelationshipLink
	for rows.Next() {
		var r types.Relationship
		var c types.Component
		var details, rCreated, cMeta, cCreated, cUpdated string
		var timeOrder sql.NullInt64
		var probability sql.NullFloat64
		err := rows.Scan(
			&r.ID, &r.Type, &r.SourceID, &r.TargetID, &details, &timeOrder, &probability, &r.Reasoning, &rCreated,
			&c.ID, &c.Kind, &c.Name, &c.Description, &c.Path, &c.Codebase, &cMeta, &cCreated, &cUpdated)
		if err != nil {
			return nil, wrapDBError("scan relationship", err)
		}
		if r.Details, err = unmarshalMeta(details); err != nil {
			return nil, wrapDBError("decode details", err)
		}
		if timeOrder.Valid {
			v := int(timeOrder.Int64)
			r.TimeOrder = &v
		}
		if probability.Valid {
			v := probability.Float64
			r.Probability = &v
		}
		r.CreatedAt = decodeTime(rCreated)
		if c.Metadata, err = unmarshalMeta(cMeta); err != nil {
			return nil, wrapDBError("decode metadata", err)
		}
		c.CreatedAt = decodeTime(cCreated)
		c.UpdatedAt = decodeTime(cUpdated)

		out = append(out, &types.RelationshipLink{Relationship: &r, Neighbor: &c, Direction: dir})
	}
	return out, wrapDBError("get relationships", rows.Err())
}

// GetDependencyTree walks outgoing DEPENDS_ON edges from the root, collecting
// every path up to maxDepth edges deep. Nodes may repeat when the graph does;
// the depth bound prevents infinite expansion through cycles.
func (s *Store) GetDependencyTree(ctx context.Context, rootID string, maxDepth int) ([]*types.DependencyPath, error) {
	if maxDepth <= 0 {
		maxDepth = storage.DefaultTreeDepth
	}
	root, err := s.GetComponent(ctx, rootID)
	if err != nil {
		return nil, err
	}

	var paths []*types.DependencyPath
	var walk func(node *types.Component, comps []*types.Component, rels []*types.Relationship, depth int) error
	walk = func(node *types.Component, comps []*types.Component, rels []*types.Relationship, depth int) error {
		if depth >= maxDepth {
			return nil
		}
		links, err := s.dependsOnLinks(ctx, node.ID)
		if err != nil {
			return err
		}
		if len(links) == 0 {
			if len(rels) > 0 {
				paths = append(paths, snapshotPath(comps, rels))
			}
			return nil
		}
		for _, link := range links {
			nextComps := append(comps, link.Neighbor)
			nextRels := append(rels, link.Relationship)
			if depth+1 >= maxDepth {
				paths = append(paths, snapshotPath(nextComps, nextRels))
				continue
			}
			if err := walk(link.Neighbor, nextComps, nextRels, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root, []*types.Component{root}, nil, 0); err != nil {
		return nil, err
	}
	return paths, nil
}

func snapshotPath(comps []*types.Component, rels []*types.Relationship) *types.DependencyPath {
	return &types.DependencyPath{
		Components:    append([]*types.Component(nil), comps...),
		Relationships: append([]*types.Relationship(nil), rels...),
	}
}

func (s *Store) dependsOnLinks(ctx context.Context, componentID string) ([]*types.RelationshipLink, error) {
	links, err := s.relationshipLinks(ctx, componentID, types.DirOutgoing)
	if err != nil {
		return nil, err
	}
	var out []*types.RelationshipLink
	for _, l := range links {
		if l.Relationship.Type == types.RelDependsOn {
			out = append(out, l)
		}
	}
	return out, nil
}
