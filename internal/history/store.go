// Package history persists accepted hotkey activations in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// DefaultRecentLimit is used when Recent is called with limit <= 0.
	DefaultRecentLimit = 20
	// MaxRecentLimit caps a single Recent query.
	MaxRecentLimit = 1000

	// retainRows bounds the table; older rows are pruned on Record.
	retainRows = 10000
)

var ErrStoreClosed = errors.New("history: store closed")

const schema = `
CREATE TABLE IF NOT EXISTS activations (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id   TEXT    NOT NULL,
	binding    TEXT    NOT NULL,
	hotkey     TEXT    NOT NULL,
	hotkey_id  INTEGER NOT NULL,
	at_unix_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS activations_binding ON activations(binding);
`

// Entry is one recorded activation.
type Entry struct {
	EventID  string
	Binding  string
	Hotkey   string
	HotkeyID int
	Time     time.Time
}

// Store is a SQLite-backed activation log. Safe for concurrent use.
type Store struct {
	db *sql.DB

	mu     sync.Mutex
	closed bool
}

// Open opens (creating if needed) the database at path and applies the
// schema. ":memory:" opens a private in-memory store.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history: path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("history: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	slog.Debug("[DEBUG-HISTORY] store opened", "path", path)
	return &Store{db: db}, nil
}

// Record appends e and prunes rows beyond the retention window.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if e.Binding == "" {
		return errors.New("history: entry binding is required")
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Debug("[DEBUG-HISTORY] rollback failed", "error", rbErr)
		}
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO activations (event_id, binding, hotkey, hotkey_id, at_unix_ns) VALUES (?, ?, ?, ?, ?)`,
		e.EventID, e.Binding, e.Hotkey, e.HotkeyID, e.Time.UnixNano(),
	); err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM activations WHERE seq <= (SELECT MAX(seq) FROM activations) - ?`, retainRows,
	); err != nil {
		return fmt.Errorf("history: prune: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. binding filters by
// binding name when non-empty.
func (s *Store) Recent(ctx context.Context, binding string, limit int) ([]Entry, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	limit = min(limit, MaxRecentLimit)

	query := `SELECT event_id, binding, hotkey, hotkey_id, at_unix_ns FROM activations`
	args := []any{}
	if binding != "" {
		query += ` WHERE binding = ?`
		args = append(args, binding)
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e  Entry
			ns int64
		)
		if err := rows.Scan(&e.EventID, &e.Binding, &e.Hotkey, &e.HotkeyID, &ns); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.Time = time.Unix(0, ns).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored activations.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("history: count: %w", err)
	}
	return n, nil
}

// Close closes the database. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}
