/*
Package sqlite provides the SQLite-backed storage engine.

PURPOSE:
  Production implementation of store.Engine. All collections live in one
  records table keyed by (collection, id), each record stored as a
  self-describing JSON document.

WAL MODE:
  The database is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of the single connection.
  Each Put is a single INSERT OR REPLACE, atomic at the key level.

USAGE:
  engine, err := sqlite.Open("./data/gym.db")
  if err != nil {
      // caller falls back to the memory engine, see store.Open
  }
  defer engine.Close()

SEE ALSO:
  - store/store.go: Engine contract
  - store/memory: fallback implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Engine implements store.Engine using SQLite.
type Engine struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates a SQLite engine at the given path.
// Use ":memory:" for an in-process database.
func Open(path string) (*Engine, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	e := &Engine{db: db}
	if err := e.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return e, nil
}

func (e *Engine) Close() error {
	return e.db.Close()
}

func (e *Engine) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		body BLOB NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_collection
		ON records(collection);
	`
	_, err := e.db.Exec(schema)
	return err
}

// =============================================================================
// ENGINE OPERATIONS
// =============================================================================

// Get returns the record body, or (nil, nil) when absent.
func (e *Engine) Get(ctx context.Context, collection, id string) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var body []byte
	err := e.db.QueryRowContext(ctx,
		"SELECT body FROM records WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", collection, id, err)
	}
	return body, nil
}

// Put overwrites the record. A single INSERT OR REPLACE keeps the write
// atomic for this key.
func (e *Engine) Put(ctx context.Context, collection, id string, body []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, err := e.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO records (collection, id, body, updated_at)
		 VALUES (?, ?, ?, ?)`,
		collection, id, body, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, id, err)
	}
	return nil
}

// Remove deletes the record. Deleting an absent id is a no-op.
func (e *Engine) Remove(ctx context.Context, collection, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, err := e.db.ExecContext(ctx,
		"DELETE FROM records WHERE collection = ? AND id = ?",
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("failed to remove %s/%s: %w", collection, id, err)
	}
	return nil
}

// Iterate scans the full collection in engine order.
func (e *Engine) Iterate(ctx context.Context, collection string, fn func(id string, body []byte) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rows, err := e.db.QueryContext(ctx,
		"SELECT id, body FROM records WHERE collection = ?",
		collection,
	)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", collection, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return fmt.Errorf("failed to scan record: %w", err)
		}
		if err := fn(id, body); err != nil {
			return err
		}
	}
	return rows.Err()
}
