// Package storage owns the relational course store: the catalog tables the
// query compiler reads and the catalog_index table the crawler fills.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/course-search/backend/internal/index"
	"github.com/course-search/backend/internal/query"
)

const driverName = "sqlite"

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS courses (
		course_id  INTEGER PRIMARY KEY,
		dept       TEXT NOT NULL,
		course_num TEXT NOT NULL,
		title      TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS meeting_patterns (
		meeting_pattern_id INTEGER PRIMARY KEY,
		day                TEXT,
		time_start         INTEGER,
		time_end           INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS sections (
		section_id         INTEGER PRIMARY KEY,
		course_id          INTEGER NOT NULL,
		section_num        TEXT NOT NULL,
		enrollment         INTEGER,
		building_code      TEXT,
		meeting_pattern_id INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS catalog_index (
		course_id INTEGER NOT NULL,
		word      TEXT NOT NULL,
		PRIMARY KEY (word, course_id)
	)`,
	`CREATE TABLE IF NOT EXISTS gps (
		building_code TEXT PRIMARY KEY,
		lon           REAL NOT NULL,
		lat           REAL NOT NULL
	)`,
}

// Store wraps the SQLite handle.
type Store struct {
	DB   *sql.DB
	path string
}

// Open registers the walking-time function and opens the database at path.
// The function is only attached to connections opened after registration,
// so it must happen first.
func Open(path string) (*Store, error) {
	if err := query.RegisterDistance(); err != nil {
		return nil, err
	}

	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	if path == MemoryPath {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite store: %w", err)
	}
	return &Store{DB: db, path: path}, nil
}

// Path returns the location the store was opened from.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// InTx runs fn inside a transaction, rolling back if fn fails.
func (s *Store) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// EnsureSchema creates the catalog tables that do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.InTx(ctx, func(tx *sql.Tx) error {
		for _, ddl := range schemaDDL {
			if _, err := tx.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("creating schema: %w", err)
			}
		}
		return nil
	})
}

// Schema introspects the tables the query compiler joins.
func (s *Store) Schema(ctx context.Context) (query.Schema, error) {
	return query.Introspect(ctx, s.DB, query.Tables...)
}

// LoadIndex replaces the contents of catalog_index with idx and returns the
// number of rows written.
func (s *Store) LoadIndex(ctx context.Context, idx *index.Index) (int, error) {
	entries := idx.Entries()
	err := s.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM catalog_index"); err != nil {
			return fmt.Errorf("clearing catalog_index: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, "INSERT INTO catalog_index (course_id, word) VALUES (?, ?)")
		if err != nil {
			return fmt.Errorf("preparing index insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, e.CourseID, e.Word); err != nil {
				return fmt.Errorf("inserting %d|%s: %w", e.CourseID, e.Word, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// IndexRows counts the rows of catalog_index.
func (s *Store) IndexRows(ctx context.Context) (int, error) {
	var n int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM catalog_index").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting catalog_index: %w", err)
	}
	return n, nil
}
