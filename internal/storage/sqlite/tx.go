package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// beginImmediateWithRetry starts a BEGIN IMMEDIATE transaction on the
// connection, retrying with exponential backoff while the database is busy.
// IMMEDIATE acquires the write lock up front, which serializes writers and
// keeps ID-uniqueness checks race-free.
//
// Raw Exec is used because database/sql's BeginTx has no way to request a
// transaction mode and would start DEFERRED.
func beginImmediateWithRetry(ctx context.Context, conn *sql.Conn, maxRetries uint64, initial time.Duration) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(initial),
			backoff.WithMaxInterval(500*time.Millisecond),
		), maxRetries),
		ctx,
	)
	return backoff.Retry(func() error {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		if isBusy(err) {
			return err // retryable
		}
		return backoff.Permanent(err)
	}, policy)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// withTx runs fn inside a BEGIN IMMEDIATE transaction on a dedicated
// connection. On error or panic the transaction is rolled back; on success it
// is committed. Rollback uses a background context so cleanup happens even
// when ctx is already cancelled.
func (s *Store) withTx(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return wrapDBError("acquire connection", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediateWithRetry(ctx, conn, 5, 10*time.Millisecond); err != nil {
		return wrapDBError("begin transaction", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(conn); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return wrapDBError("commit", err)
	}
	committed = true
	return nil
}
