// Package snapshot persists whole workbooks to SQLite under a name.
package snapshot

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.alis.build/alog"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when no snapshot has the requested name
var ErrNotFound = errors.New("snapshot not found")

// Store keeps named workbook snapshots in a SQLite database
type Store struct {
	db *sql.DB
}

// Summary describes one saved snapshot
type Summary struct {
	Name    string
	ID      string
	Sheets  int
	Cells   int
	SavedAt time.Time
}

// Open creates or opens a snapshot database at path. the connection uses
// WAL mode, NORMAL sync, a 5s busy timeout and foreign keys.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// List returns every snapshot, newest first
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.name, w.id, w.saved_at,
			(SELECT COUNT(*) FROM sheets sh WHERE sh.workbook = w.name),
			(SELECT COUNT(*) FROM cells c WHERE c.workbook = w.name)
		FROM workbooks w
		ORDER BY w.saved_at DESC, w.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var summary Summary
		var savedAt string
		if err := rows.Scan(&summary.Name, &summary.ID, &savedAt, &summary.Sheets, &summary.Cells); err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		if summary.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
			return nil, fmt.Errorf("list snapshots: bad saved_at for %q: %w", summary.Name, err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return summaries, nil
}

// Delete removes a snapshot and everything stored under it
func (s *Store) Delete(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM workbooks WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete snapshot %q: %w", name, ErrNotFound)
	}
	alog.Infof(ctx, "snapshot: deleted %q", name)
	return nil
}

func newSnapshotID() string {
	return uuid.Must(uuid.NewV7()).String()
}
