package sqlite

import (
	"context"
	"database/sql"

	"github.com/codegraphhq/codegraph/internal/eventbus"
	"github.com/codegraphhq/codegraph/internal/idgen"
	"github.com/codegraphhq/codegraph/internal/telemetry"
	"github.com/codegraphhq/codegraph/internal/types"
)

// bulkMeta tags each journaled item of a committed bulk.
func bulkMeta(total int) types.Metadata {
	return types.Metadata{"bulk_operation": true, "total_count": total}
}

// CreateComponents inserts all components in one transaction. On any failure
// the transaction rolls back and no journal entries survive. On success each
// item is journaled as BULK_CREATE_COMPONENTS, in input order.
func (s *Store) CreateComponents(ctx context.Context, cs []*types.Component, actor types.Actor) error {
	if len(cs) == 0 {
		return nil
	}
	for _, c := range cs {
		if err := c.Validate(); err != nil {
			return validationErr(err)
		}
	}

	now := types.Now()
	for _, c := range cs {
		if c.ID == "" {
			c.ID = idgen.New(idgen.PrefixComponent, string(c.Kind), c.Name)
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
	}

	meta := bulkMeta(len(cs))
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		for _, c := range cs {
			if err := insertComponent(ctx, conn, c); err != nil {
				return err
			}
		}
		// Journal after the inserts so entry order mirrors input order.
		for _, c := range cs {
			e := newChange(types.OpBulkCreateComponents, types.EntityComponent, c.ID, nil, entityState(c), actor, meta)
			if err := insertChange(ctx, conn, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	telemetry.CountMutation(ctx, string(types.OpBulkCreateComponents))
	s.publish(eventbus.EventComponentsBulkCreated, &eventbus.BulkPayload{Items: cs, Count: len(cs)})
	return nil
}

// CreateRelationships inserts all edges in one transaction, all-or-nothing.
func (s *Store) CreateRelationships(ctx context.Context, rs []*types.Relationship, actor types.Actor) error {
	if len(rs) == 0 {
		return nil
	}
	for _, r := range rs {
		if err := r.Validate(); err != nil {
			return validationErr(err)
		}
	}

	now := types.Now()
	for _, r := range rs {
		if r.ID == "" {
			r.ID = idgen.New(idgen.PrefixRelationship, string(r.Type), r.SourceID, r.TargetID)
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
	}

	meta := bulkMeta(len(rs))
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		for _, r := range rs {
			if err := requireComponentTx(ctx, conn, r.SourceID); err != nil {
				return err
			}
			if err := requireComponentTx(ctx, conn, r.TargetID); err != nil {
				return err
			}
			if err := insertRelationship(ctx, conn, r); err != nil {
				return err
			}
		}
		for _, r := range rs {
			e := newChange(types.OpBulkCreateRelationships, types.EntityRelationship, r.ID, nil, entityState(r), actor, meta)
			if err := insertChange(ctx, conn, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	telemetry.CountMutation(ctx, string(types.OpBulkCreateRelationships))
	s.publish(eventbus.EventRelationshipsBulkCreated, &eventbus.BulkPayload{Items: rs, Count: len(rs)})
	return nil
}

// CreateTasks inserts all tasks in one transaction, all-or-nothing.
func (s *Store) CreateTasks(ctx context.Context, ts []*types.Task, actor types.Actor) error {
	if len(ts) == 0 {
		return nil
	}
	for _, t := range ts {
		t.SetDefaults()
		if err := t.Validate(); err != nil {
			return validationErr(err)
		}
	}

	now := types.Now()
	for _, t := range ts {
		if t.ID == "" {
			t.ID = idgen.New(idgen.PrefixTask, t.Name)
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		t.UpdatedAt = now
	}

	meta := bulkMeta(len(ts))
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		for _, t := range ts {
			if err := insertTask(ctx, conn, t); err != nil {
				return err
			}
		}
		for _, t := range ts {
			e := newChange(types.OpBulkCreateTasks, types.EntityTask, t.ID, nil, entityState(t), actor, meta)
			if err := insertChange(ctx, conn, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	telemetry.CountMutation(ctx, string(types.OpBulkCreateTasks))
	s.publish(eventbus.EventTasksBulkCreated, &eventbus.BulkPayload{Items: ts, Count: len(ts)})
	return nil
}
