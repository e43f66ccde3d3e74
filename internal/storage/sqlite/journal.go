package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/codegraphhq/codegraph/internal/idgen"
	"github.com/codegraphhq/codegraph/internal/telemetry"
	"github.com/codegraphhq/codegraph/internal/types"
)

const changeColumns = `id, operation, entity_kind, entity_id, before_state, after_state, ts, session_id, user_id, source, metadata`

// newChange builds a journal entry for a mutation. Timestamps come from the
// strictly increasing process clock; the seq column breaks any remaining ties
// by insertion order.
func newChange(op types.Operation, kind types.EntityKind, entityID string,
	before, after types.Metadata, actor types.Actor, meta types.Metadata) *types.ChangeEvent {
	return &types.ChangeEvent{
		ID:          idgen.New(idgen.PrefixChange, string(op), entityID),
		Operation:   op,
		EntityKind:  kind,
		EntityID:    entityID,
		BeforeState: before,
		AfterState:  after,
		Timestamp:   types.Now(),
		SessionID:   actor.SessionID,
		UserID:      actor.UserID,
		Source:      actor.Source,
		Metadata:    meta,
	}
}

// insertChange appends a journal entry inside the mutation's transaction.
// Idempotent on the entry ID: re-appending an existing entry is a no-op.
func insertChange(ctx context.Context, conn *sql.Conn, e *types.ChangeEvent) error {
	before, after, meta, err := encodeChangeStates(e)
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO change_events (`+changeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Operation, e.EntityKind, e.EntityID, before, after,
		encodeTime(e.Timestamp), e.SessionID, e.UserID, e.Source, meta)
	if err != nil {
		return wrapDBError("append change", err)
	}
	telemetry.CountJournalAppend(ctx)
	return nil
}

func encodeChangeStates(e *types.ChangeEvent) (before, after interface{}, meta string, err error) {
	// before/after are stored as JSON-encoded strings; NULL when absent.
	if e.BeforeState != nil {
		b, err := json.Marshal(e.BeforeState)
		if err != nil {
			return nil, nil, "", validationErr(err)
		}
		before = string(b)
	}
	if e.AfterState != nil {
		b, err := json.Marshal(e.AfterState)
		if err != nil {
			return nil, nil, "", validationErr(err)
		}
		after = string(b)
	}
	meta, err = marshalMeta(e.Metadata)
	if err != nil {
		return nil, nil, "", validationErr(err)
	}
	return before, after, meta, nil
}

// AppendChange persists an externally built journal entry. Idempotent on ID.
func (s *Store) AppendChange(ctx context.Context, e *types.ChangeEvent) error {
	if !e.Operation.IsValid() {
		return types.NewError(types.ErrValidation, "invalid operation: %s", e.Operation)
	}
	if e.ID == "" {
		e.ID = idgen.New(idgen.PrefixChange, string(e.Operation), e.EntityID)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = types.Now()
	}
	return s.withTx(ctx, func(conn *sql.Conn) error {
		return insertChange(ctx, conn, e)
	})
}

func scanChange(row rowScanner) (*types.ChangeEvent, error) {
	var e types.ChangeEvent
	var before, after sql.NullString
	var ts, meta string
	err := row.Scan(&e.ID, &e.Operation, &e.EntityKind, &e.EntityID, &before, &after,
		&ts, &e.SessionID, &e.UserID, &e.Source, &meta)
	if err != nil {
		return nil, err
	}
	if before.Valid {
		if err := json.Unmarshal([]byte(before.String), &e.BeforeState); err != nil {
			return nil, err
		}
	}
	if after.Valid {
		if err := json.Unmarshal([]byte(after.String), &e.AfterState); err != nil {
			return nil, err
		}
	}
	e.Timestamp = decodeTime(ts)
	e.Metadata, err = unmarshalMeta(meta)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) queryChanges(ctx context.Context, query string, args ...interface{}) ([]*types.ChangeEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("query changes", err)
	}
	defer rows.Close()

	var out []*types.ChangeEvent
	for rows.Next() {
		e, err := scanChange(rows)
		if err != nil {
			return nil, wrapDBError("scan change", err)
		}
		out = append(out, e)
	}
	return out, wrapDBError("query changes", rows.Err())
}

// GetEntityHistory returns an entity's journal entries, newest first.
func (s *Store) GetEntityHistory(ctx context.Context, entityID string, limit int) ([]*types.ChangeEvent, error) {
	query := `SELECT ` + changeColumns + ` FROM change_events WHERE entity_id = ? ORDER BY ts DESC, seq DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.queryChanges(ctx, query, entityID)
}

// GetRecentChanges returns the global feed, newest first, optionally
// restricted to the given operations.
func (s *Store) GetRecentChanges(ctx context.Context, limit int, ops ...types.Operation) ([]*types.ChangeEvent, error) {
	query := `SELECT ` + changeColumns + ` FROM change_events`
	var args []interface{}
	if len(ops) > 0 {
		placeholders := make([]string, len(ops))
		for i, op := range ops {
			if !op.IsValid() {
				return nil, types.NewError(types.ErrValidation, "invalid operation: %s", op)
			}
			placeholders[i] = "?"
			args = append(args, op)
		}
		query += " WHERE operation IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY ts DESC, seq DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.queryChanges(ctx, query, args...)
}

// GetChangesByTimeRange returns entries with from <= ts <= to, ascending.
func (s *Store) GetChangesByTimeRange(ctx context.Context, from, to time.Time, limit int) ([]*types.ChangeEvent, error) {
	query := `SELECT ` + changeColumns + ` FROM change_events WHERE ts >= ? AND ts <= ? ORDER BY ts, seq`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.queryChanges(ctx, query, encodeTime(from), encodeTime(to))
}

// GetSessionChanges returns a session's entries in chronological order.
func (s *Store) GetSessionChanges(ctx context.Context, sessionID string) ([]*types.ChangeEvent, error) {
	return s.queryChanges(ctx,
		`SELECT `+changeColumns+` FROM change_events WHERE session_id = ? ORDER BY ts, seq`, sessionID)
}

// GetJournalStats summarizes the journal: total entries, per-operation
// counts, and per-day counts for the last 30 days.
func (s *Store) GetJournalStats(ctx context.Context) (*types.JournalStats, error) {
	stats := &types.JournalStats{
		ByOperation: make(map[types.Operation]int),
		ByDay:       make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM change_events`).Scan(&stats.Total); err != nil {
		return nil, wrapDBError("journal stats", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT operation, COUNT(*) FROM change_events GROUP BY operation`)
	if err != nil {
		return nil, wrapDBError("journal stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var op types.Operation
		var n int
		if err := rows.Scan(&op, &n); err != nil {
			return nil, wrapDBError("journal stats", err)
		}
		stats.ByOperation[op] = n
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("journal stats", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -30)
	dayRows, err := s.db.QueryContext(ctx, `
		SELECT substr(ts, 1, 10) AS day, COUNT(*)
		FROM change_events
		WHERE ts >= ?
		GROUP BY day`, encodeTime(cutoff))
	if err != nil {
		return nil, wrapDBError("journal stats", err)
	}
	defer dayRows.Close()
	for dayRows.Next() {
		var day string
		var n int
		if err := dayRows.Scan(&day, &n); err != nil {
			return nil, wrapDBError("journal stats", err)
		}
		stats.ByDay[day] = n
	}
	if err := dayRows.Err(); err != nil {
		return nil, wrapDBError("journal stats", err)
	}

	var first, latest sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT MIN(ts), MAX(ts) FROM change_events`).Scan(&first, &latest)
	if err != nil {
		return nil, wrapDBError("journal stats", err)
	}
	if first.Valid {
		stats.FirstChange = decodeTimePtr(&first.String)
	}
	if latest.Valid {
		stats.LatestChange = decodeTimePtr(&latest.String)
	}
	return stats, nil
}
