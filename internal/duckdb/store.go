// Package duckdb exports decoded log entries into a DuckDB database.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tinytelemetry/locallog/internal/duckdb/migrate"
	"github.com/tinytelemetry/locallog/internal/model"
)

// Store owns the DuckDB connection of the export database.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// NewStore opens or creates a DuckDB database and migrates it to the latest
// schema. If dbPath is empty, an in-memory database is used.
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("duckdb: mkdir: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open: %w", err)
	}
	runner := migrate.NewRunner(db)
	version, pending, err := runner.Status(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if pending > 0 {
		log.Printf("duckdb: migrating %s from schema version %d (%d pending)", displayPath(dbPath), version, pending)
	}
	if err := runner.Run(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

// InsertEntries appends entries in a single transaction. segment names the
// input the entries were decoded from.
func (s *Store) InsertEntries(ctx context.Context, segment string, entries []model.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("duckdb: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO log_entries (source, ts, line, segment) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("duckdb: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Source, e.Timestamp, e.Line, segment); err != nil {
			return fmt.Errorf("duckdb: insert entry: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("duckdb: commit: %w", err)
	}
	return nil
}

// EntryCount returns the number of exported entries.
func (s *Store) EntryCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM log_entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("duckdb: count: %w", err)
	}
	return n, nil
}

// Entries returns exported entries in insertion order.
func (s *Store) Entries(ctx context.Context, limit int) ([]model.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT source, ts, line FROM log_entries ORDER BY seq LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("duckdb: query entries: %w", err)
	}
	defer rows.Close()

	var out []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		if err := rows.Scan(&e.Source, &e.Timestamp, &e.Line); err != nil {
			return nil, fmt.Errorf("duckdb: scan entry: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Path returns the database path; empty for in-memory stores.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func displayPath(dbPath string) string {
	if dbPath == "" {
		return ":memory:"
	}
	return dbPath
}
