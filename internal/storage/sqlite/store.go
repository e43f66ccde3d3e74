// Package sqlite implements the storage interface on an embedded SQLite
// database (ncruces/go-sqlite3, CGO-free).
//
// Layout:
//   - store.go: Store struct, New() constructor, lifecycle
//   - schema.go: schema definition
//   - tx.go: BEGIN IMMEDIATE transaction helpers with busy retry
//   - components.go, relationships.go, tasks.go, comments.go: entity CRUD
//   - bulk.go: all-or-nothing bulk inserts
//   - journal.go: change journal append and queries
//   - snapshots.go: snapshot persistence, graph export/restore, replay apply
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tetratelabs/wazero"

	"github.com/codegraphhq/codegraph/internal/eventbus"
	"github.com/codegraphhq/codegraph/internal/storage"
)

// Store implements storage.Store on SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
	bus    *eventbus.Bus // optional; nil disables event publishing
	closed atomic.Bool
}

var _ storage.Store = (*Store)(nil)

// memdbSeq names each :memory: database uniquely within the process.
var memdbSeq atomic.Int64

// Option configures a Store at construction time.
type Option func(*Store)

// WithBus attaches an event bus; mutation events are published after commit.
func WithBus(bus *eventbus.Bus) Option {
	return func(s *Store) { s.bus = bus }
}

// setupWASMCache configures WASM compilation caching so the SQLite module is
// compiled once per machine instead of on every process start.
func setupWASMCache() {
	var cache wazero.CompilationCache
	if userCache, err := os.UserCacheDir(); err == nil {
		dir := filepath.Join(userCache, "codegraph", "wasm")
		if c, err := wazero.NewCompilationCacheWithDir(dir); err == nil {
			cache = c
		}
	}
	if cache == nil {
		cache = wazero.NewCompilationCache()
	}
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
}

func init() {
	setupWASMCache()
}

// New opens (creating if necessary) the database at path and ensures the
// schema. Pass ":memory:" for an in-process throwaway database.
func New(ctx context.Context, path string, opts ...Option) (*Store, error) {
	var connStr string
	switch {
	case path == ":memory:":
		// Shared named in-memory database so pooled connections see the same
		// data; the per-store sequence number keeps separate stores from
		// landing on the same name. WAL does not apply to memory databases.
		connStr = fmt.Sprintf("file:memdb%d?mode=memory&cache=shared&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite",
			memdbSeq.Add(1))
	case strings.HasPrefix(path, "file:"):
		connStr = path
		if !strings.Contains(path, "_pragma=foreign_keys") {
			connStr += "&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite"
		}
	default:
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		connStr = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite"
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	isInMemory := path == ":memory:" ||
		(strings.HasPrefix(path, "file:") && strings.Contains(path, "mode=memory"))
	if isInMemory {
		// In-memory databases are per-connection; force a single connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		// WAL allows 1 writer + N readers; bound the pool to avoid goroutine
		// pile-up on write-lock contention.
		db.SetMaxOpenConns(runtime.NumCPU() + 1)
	}

	s := &Store{db: db, dbPath: path}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string { return s.dbPath }

// Ping verifies the backend connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return wrapDBError("ping", err)
	}
	return nil
}

// Close releases the database. Idempotent.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) publish(name eventbus.EventName, payload interface{}) {
	if s.bus != nil {
		s.bus.Publish(name, payload)
	}
}
