// Package store persists compiled objects and per-symbol cost aggregates in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/penwyp/go-clang-timetrace/internal/core/model"
	"github.com/penwyp/go-clang-timetrace/internal/util"
	"modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLite primary result codes after which no further write can succeed.
const (
	sqliteReadOnly = 8
	sqliteIOErr    = 10
	sqliteCorrupt  = 11
	sqliteFull     = 13
	sqliteCantOpen = 14
	sqliteNotADB   = 26
)

// Store is a SQLite-backed aggregate store. It is safe for use by one writer at a time.
type Store struct {
	db       *sql.DB
	path     string
	readOnly bool
}

// Open opens (creating if needed) the store at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", model.ErrStoreUnavailable, err)
	}
	// A single connection serializes every writer through one handle.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: setting pragma: %v", model.ErrStoreUnavailable, err)
		}
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating schema: %v", model.ErrStoreUnavailable, err)
	}

	util.LogDebugf("Opened store %s", path)
	return &Store{db: db, path: path}, nil
}

// OpenReadOnly opens an existing store for queries only.
func OpenReadOnly(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", model.ErrStoreUnavailable, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	return &Store{db: db, path: path, readOnly: true}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reset empties every table. An ingestion run calls it once before the first file.
func (s *Store) Reset(ctx context.Context) error {
	if s.readOnly {
		return fmt.Errorf("%w: store is read-only", model.ErrStoreUnavailable)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStoreError(err)
	}
	defer tx.Rollback()

	for _, table := range allTables() {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return wrapStoreError(fmt.Errorf("clearing %s: %w", table, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapStoreError(err)
	}

	util.LogDebug("Store reset: all tables cleared")
	return nil
}

// ApplyFile inserts the object row and merges every record in one transaction.
// If the object already exists nothing is written and model.ErrDuplicateObject is returned.
func (s *Store) ApplyFile(ctx context.Context, object model.CompiledObject, records []model.MetricRecord) error {
	if s.readOnly {
		return fmt.Errorf("%w: store is read-only", model.ErrStoreUnavailable)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStoreError(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO objects (path, total_time, frontend, backend) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO NOTHING`,
		object.Path, object.TotalTime, object.Frontend, object.Backend)
	if err != nil {
		return wrapStoreError(fmt.Errorf("inserting object: %w", err))
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return wrapStoreError(err)
	}
	if inserted == 0 {
		return fmt.Errorf("%w: %s", model.ErrDuplicateObject, object.Path)
	}

	merger := newMerger(tx)
	defer merger.close()
	for _, record := range records {
		if err := merger.merge(ctx, record); err != nil {
			return wrapStoreError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapStoreError(err)
	}
	return nil
}

// wrapStoreError tags err as ErrStoreUnavailable when SQLite reports a condition no
// later write can recover from, and as ErrStore otherwise.
func wrapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if isFatal(err) {
		return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%w: %v", model.ErrStore, err)
}

func isFatal(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqliteReadOnly, sqliteIOErr, sqliteCorrupt, sqliteFull, sqliteCantOpen, sqliteNotADB:
			return true
		}
		return false
	}
	return errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed")
}

func allTables() []string {
	tables := []string{model.ObjectsTable}
	for _, category := range model.Categories {
		tables = append(tables, category.String())
	}
	return tables
}
