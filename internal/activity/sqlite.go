package activity

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLite is the embedded Store implementation backing the activity log.
type SQLite struct {
	db *sql.DB

	// now is swappable in tests to exercise retention.
	now func() time.Time
}

// NewSQLite opens (or creates) the activity database at dbPath.
func NewSQLite(dbPath string) (*SQLite, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logrus.WithField("db_path", dbPath).Info("Activity database initialized")
	return &SQLite{db: db, now: time.Now}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS activity_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		occurred_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activity_log_room_time ON activity_log(room_id, occurred_at);
	CREATE INDEX IF NOT EXISTS idx_activity_log_time ON activity_log(occurred_at);
	`

	_, err := db.Exec(schema)
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Append stores one entry with a server-assigned timestamp.
func (s *SQLite) Append(ctx context.Context, roomID, actor, action string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO activity_log (room_id, actor, action, occurred_at) VALUES (?, ?, ?, ?)",
		roomID, actor, action, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append activity entry: %w", err)
	}
	return nil
}

// Recent returns the most recent limit entries for the room, oldest first.
func (s *SQLite) Recent(ctx context.Context, roomID string, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, actor, action, occurred_at FROM (
			SELECT id, room_id, actor, action, occurred_at
			FROM activity_log
			WHERE room_id = ?
			ORDER BY occurred_at DESC, id DESC
			LIMIT ?
		) ORDER BY occurred_at ASC, id ASC
	`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.RoomID, &e.Actor, &e.Action, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteExpired removes entries older than cutoff.
func (s *SQLite) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM activity_log WHERE occurred_at < ?",
		cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired entries: %w", err)
	}
	return result.RowsAffected()
}
