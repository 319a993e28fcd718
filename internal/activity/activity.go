// Package activity keeps a queryable journal of what the assistant did:
// messages in and out, reminders created and escalated, conflicts reported.
package activity

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vthunder/nudge/internal/logging"
	_ "modernc.org/sqlite"
)

// Type identifies what kind of activity this is
type Type string

const (
	TypeInput      Type = "input"      // Message received from a user
	TypeReply      Type = "reply"      // Reply sent back
	TypeReminder   Type = "reminder"   // Reminder created
	TypeEscalation Type = "escalation" // Reminder notification queued
	TypeSnooze     Type = "snooze"     // Reminder pushed back
	TypeStop       Type = "stop"       // Reminders cleared by the user
	TypeConflict   Type = "conflict"   // Calendar conflict reported
	TypeError      Type = "error"      // Something went wrong
)

// Entry represents a single activity log entry
type Entry struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"ts"`
	Type      Type           `json:"type"`
	User      string         `json:"user,omitempty"`
	Summary   string         `json:"summary"`
	Source    string         `json:"source,omitempty"` // transport or component
	Data      map[string]any `json:"data,omitempty"`   // Structured details
}

// Log is the activity journal. A nil *Log discards everything.
type Log struct {
	db     *sql.DB
	driver string
	mu     sync.Mutex // serializes writers; SQLite allows one at a time
}

// Open opens or creates the journal at path using a registered SQLite
// driver: "sqlite3" (cgo) or "sqlite" (pure Go).
func Open(driver, path string) (*Log, error) {
	if driver == "" {
		driver = "sqlite3"
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open(driver, dsn(driver, path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	l := &Log{db: db, driver: driver}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return l, nil
}

func dsn(driver, path string) string {
	switch driver {
	case "sqlite":
		return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	default:
		return path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
}

func (l *Log) migrate() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS activity (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			ts      INTEGER NOT NULL,
			type    TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL,
			source  TEXT NOT NULL DEFAULT '',
			data    TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_activity_user ON activity(user_id, id);
		CREATE INDEX IF NOT EXISTS idx_activity_type ON activity(type, id);
	`)
	return err
}

// Close closes the database
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}

// Log appends an entry to the journal. Failures are also logged, so callers
// that have nothing better to do with them may ignore the result.
func (l *Log) Log(entry Entry) error {
	if l == nil {
		return nil
	}
	if err := l.write(entry); err != nil {
		logging.Warn("activity", "Dropped %s entry for %q: %v", entry.Type, entry.User, err)
		return err
	}
	return nil
}

func (l *Log) write(entry Entry) error {
	// Set timestamp if not provided
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	var data sql.NullString
	if len(entry.Data) > 0 {
		b, err := json.Marshal(entry.Data)
		if err != nil {
			return fmt.Errorf("marshal data: %w", err)
		}
		data = sql.NullString{String: string(b), Valid: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(
		`INSERT INTO activity (ts, type, user_id, summary, source, data) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Timestamp.UnixNano(), string(entry.Type), entry.User, entry.Summary, entry.Source, data,
	)
	return err
}

// Helper methods for common event types

// LogInput logs an incoming message
func (l *Log) LogInput(user, source, text string) error {
	return l.Log(Entry{
		Type:    TypeInput,
		User:    user,
		Summary: text,
		Source:  source,
	})
}

// LogReply logs the reply sent for a message
func (l *Log) LogReply(user, text string) error {
	return l.Log(Entry{
		Type:    TypeReply,
		User:    user,
		Summary: text,
	})
}

// LogError logs an error
func (l *Log) LogError(user, summary string, err error) error {
	return l.Log(Entry{
		Type:    TypeError,
		User:    user,
		Summary: summary,
		Data:    map[string]any{"error": err.Error()},
	})
}

// Query methods

// Recent returns the last n entries, oldest first
func (l *Log) Recent(n int) ([]Entry, error) {
	return l.query(`SELECT id, ts, type, user_id, summary, source, data FROM activity ORDER BY id DESC LIMIT ?`, n)
}

// ByUser returns the user's last n entries, oldest first
func (l *Log) ByUser(user string, n int) ([]Entry, error) {
	return l.query(`SELECT id, ts, type, user_id, summary, source, data FROM activity WHERE user_id = ? ORDER BY id DESC LIMIT ?`, user, n)
}

// ByType returns the last n entries of a type, oldest first
func (l *Log) ByType(t Type, n int) ([]Entry, error) {
	return l.query(`SELECT id, ts, type, user_id, summary, source, data FROM activity WHERE type = ? ORDER BY id DESC LIMIT ?`, string(t), n)
}

// Search returns the last n entries whose summary contains query
func (l *Log) Search(query string, n int) ([]Entry, error) {
	pattern := "%" + strings.ReplaceAll(strings.ToLower(query), "%", "") + "%"
	return l.query(`SELECT id, ts, type, user_id, summary, source, data FROM activity WHERE lower(summary) LIKE ? ORDER BY id DESC LIMIT ?`, pattern, n)
}

func (l *Log) query(q string, args ...any) ([]Entry, error) {
	if l == nil {
		return nil, nil
	}

	rows, err := l.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			ts   int64
			typ  string
			data sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &typ, &e.User, &e.Summary, &e.Source, &data); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, ts)
		e.Type = Type(typ)
		if data.Valid {
			if err := json.Unmarshal([]byte(data.String), &e.Data); err != nil {
				continue // skip malformed entries
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest were selected first; callers want chronological order
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
