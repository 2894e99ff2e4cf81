// Package sqlite implements storage.Store and storage.TaskStore on top of a single
// embedded SQLite file, using the pure-Go ncruces/go-sqlite3 driver so the module stays
// CGo-free end to end.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/untoldecay/semanticmemory/internal/storage"
)

// SQLiteStorage is the shared connection handle for both the insight Store and the
// task/lock TaskStore; they share one file and one migration runner but touch disjoint
// tables (§2, "Task path is orthogonal").
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// New opens dbPath in WAL mode with a 5s busy timeout, runs pending migrations, and
// returns a ready handle. Safe to call repeatedly against the same file from different
// processes; migrations serialize themselves with BEGIN IMMEDIATE.
func New(ctx context.Context, dbPath string) (*SQLiteStorage, error) {
	dsn := "file:" + dbPath + "?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage file: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db.SetMaxOpenConns(1)

	s := &SQLiteStorage{db: db, dbPath: dbPath}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to bootstrap schema: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close releases the underlying connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, committing on success and rolling back on error
// or panic. Used throughout the package for any multi-statement write.
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// wrapDBError translates sql.ErrNoRows into storage.ErrNotFound and otherwise wraps err
// with operation context.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ storage.Store = (*SQLiteStorage)(nil)
var _ storage.TaskStore = (*SQLiteStorage)(nil)
