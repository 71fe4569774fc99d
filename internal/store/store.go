// Package store provides SQLite persistence for leads, campaigns, and
// conversations. The same database also backs the text-to-SQL tool, which
// runs generated SELECT statements against these tables.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Sentinel errors for store operations. Check with errors.Is().
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyProcessed indicates a conversation's auto-reply claim was
	// already taken by another caller.
	ErrAlreadyProcessed = errors.New("conversation already processed")
)

// Store wraps the SQLite connection.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the SQLite database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrent readers alongside the watcher's writes.
	dsn := path + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

// DB exposes the underlying handle for collaborators that need raw SQL
// access (the text-to-SQL tool and the document chunk store).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS leads (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	lead_id TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	country_code TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	project_name TEXT NOT NULL DEFAULT '',
	unit_type TEXT NOT NULL DEFAULT '',
	budget_min REAL NOT NULL DEFAULT 0,
	budget_max REAL NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS campaigns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL DEFAULT '',
	project_name TEXT NOT NULL,
	channel TEXT NOT NULL,
	offer_details TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS campaign_leads (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	campaign_id INTEGER NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
	lead_id INTEGER NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	message_sent INTEGER NOT NULL DEFAULT 0,
	message_sent_at TEXT,
	email_message_id TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	UNIQUE(campaign_id, lead_id)
);

CREATE TABLE IF NOT EXISTS conversations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	campaign_lead_id INTEGER NOT NULL REFERENCES campaign_leads(id) ON DELETE CASCADE,
	sender TEXT NOT NULL CHECK (sender IN ('customer', 'agent')),
	message TEXT NOT NULL,
	agent_tool_used TEXT NOT NULL DEFAULT '',
	email_message_id TEXT NOT NULL DEFAULT '',
	email_in_reply_to TEXT NOT NULL DEFAULT '',
	sales_team_notified INTEGER NOT NULL DEFAULT 0,
	auto_reply_processed INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS document_chunks (
	id TEXT PRIMARY KEY,
	project_name TEXT NOT NULL,
	source TEXT NOT NULL,
	position INTEGER NOT NULL,
	content TEXT NOT NULL,
	embedding BLOB NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_message_id ON conversations(email_message_id);
CREATE INDEX IF NOT EXISTS idx_conversations_pending ON conversations(auto_reply_processed, sender);
CREATE INDEX IF NOT EXISTS idx_campaign_leads_message_id ON campaign_leads(email_message_id);
CREATE INDEX IF NOT EXISTS idx_document_chunks_project ON document_chunks(project_name);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("exec schema: %w", err)
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
