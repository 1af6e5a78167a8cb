// Package sqlite provides a SQLite-backed tenancy storage implementation.
//
// Documents are stored as versioned JSON rows. Every update is checked
// against the version its snapshot was read at; a lost race surfaces as
// storage.ErrConflict, which the coordinators treat as retryable contention.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/leasehold/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/leasehold/internal/tenancy/storage"
	"github.com/louisbranch/leasehold/internal/tenancy/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists tenancy documents in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// querier abstracts *sql.DB and *sql.Tx so reads share one implementation.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// optionalMillis keeps zero times zero across the round trip.
func toOptionalMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return toMillis(value)
}

func fromOptionalMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return fromMillis(value)
}

// Open opens a SQLite tenancy store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// InTx runs fn inside one SQLite transaction. Busy and locked errors from
// the driver are mapped to storage.ErrConflict so callers see the same
// contention taxonomy as version-check failures.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if fn == nil {
		return fmt.Errorf("transaction body is required")
	}

	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		if isBusyError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(ctx, &storeTx{q: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		if isBusyError(err) {
			return storage.ErrConflict
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		if isBusyError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// storeTx adapts one *sql.Tx to the storage.Tx contract.
type storeTx struct {
	q *sql.Tx
}

// isBusyError reports whether the error is SQLite lock contention.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "database is locked") ||
		strings.Contains(message, "database table is locked")
}

// isUniqueViolation reports whether the error is a primary-key or unique
// index violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)
var _ storage.Tx = (*storeTx)(nil)
