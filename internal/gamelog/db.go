// Package gamelog is the history log: an append-only sqlite table fed by the
// presence reconciler (notifications, location changes) and by the game
// log-file tailer (player joins/leaves, playback errors).
package gamelog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Entry is one history log row.
type Entry struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	Type     string    `json:"type"`
	Message  string    `json:"message"`
	UserID   string    `json:"user_id,omitempty"`
	Location string    `json:"location,omitempty"`
}

// DB wraps the sqlite history database.
type DB struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens or creates the history database in the given directory.
func Open(dataDir string) (*DB, error) {
	dbPath := filepath.Join(dataDir, "spectre.db")

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL mode so the tailer and reconciler can append concurrently
	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS log (
			id       TEXT PRIMARY KEY,
			time     DATETIME DEFAULT CURRENT_TIMESTAMP,
			type     TEXT NOT NULL,
			message  TEXT NOT NULL,
			user_id  TEXT DEFAULT '',
			location TEXT DEFAULT ''
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create log table: %w", err)
	}

	return &DB{db: db, path: dbPath}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Append adds a history entry. userID and location may be empty.
func (d *DB) Append(entryType, message, userID, location string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`
		INSERT INTO log (id, time, type, message, user_id, location)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), time.Now().UTC(), entryType, message, userID, location)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (d *DB) Recent(limit int) ([]Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT id, time, type, message, user_id, location
		FROM log ORDER BY time DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Time, &e.Type, &e.Message, &e.UserID, &e.Location); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
