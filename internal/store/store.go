// Package store persists EasyCall's conversations, archives, and
// memories in SQLite. The whole state is read, modified, and written
// back under one process-wide lock, so callers always see a consistent
// snapshot and never race each other's writes.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nugget/easycall/internal/conversation"
	"github.com/nugget/easycall/internal/memory"
)

// Store is the SQLite-backed application state.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id                TEXT PRIMARY KEY,
		position          INTEGER NOT NULL,
		title             TEXT NOT NULL,
		api_config_id     TEXT NOT NULL,
		agent_id          TEXT NOT NULL,
		status            TEXT NOT NULL,
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL,
		last_user_at      TEXT,
		last_assistant_at TEXT,
		usage_ratio       REAL NOT NULL DEFAULT 0,
		messages          TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_agent ON conversations(agent_id, status);

	CREATE TABLE IF NOT EXISTS archives (
		archive_id  TEXT PRIMARY KEY,
		position    INTEGER NOT NULL,
		archived_at TEXT NOT NULL,
		reason      TEXT NOT NULL,
		summary     TEXT NOT NULL DEFAULT '',
		source      TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS memories (
		id         TEXT PRIMARY KEY,
		position   INTEGER NOT NULL,
		content    TEXT NOT NULL,
		keywords   TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// View loads the current state and passes it to fn. Changes fn makes are
// discarded.
func (s *Store) View(ctx context.Context, fn func(*conversation.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := load(ctx, s.db)
	if err != nil {
		return err
	}
	return fn(st)
}

// Update loads the state, lets fn modify it, and writes it back in one
// transaction. If fn returns an error nothing is written.
func (s *Store) Update(ctx context.Context, fn func(*conversation.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	st, err := load(ctx, tx)
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	if err := save(ctx, tx, st); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func load(ctx context.Context, q queryer) (*conversation.State, error) {
	st := &conversation.State{}

	convs, err := loadConversations(ctx, q)
	if err != nil {
		return nil, err
	}
	st.Conversations = convs

	archives, err := loadArchives(ctx, q)
	if err != nil {
		return nil, err
	}
	st.Archives = archives

	mems, err := loadMemories(ctx, q)
	if err != nil {
		return nil, err
	}
	st.Memories = mems
	return st, nil
}

func loadConversations(ctx context.Context, q queryer) ([]conversation.Conversation, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, title, api_config_id, agent_id, status, created_at, updated_at,
		       last_user_at, last_assistant_at, usage_ratio, messages
		FROM conversations ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []conversation.Conversation
	for rows.Next() {
		var (
			c                    conversation.Conversation
			createdAt, updatedAt string
			lastUser, lastAssist sql.NullString
			messages             string
		)
		if err := rows.Scan(&c.ID, &c.Title, &c.APIConfigID, &c.AgentID, &c.Status,
			&createdAt, &updatedAt, &lastUser, &lastAssist, &c.LastContextUsageRatio, &messages); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		c.LastUserAt = parseNullTime(lastUser)
		c.LastAssistantAt = parseNullTime(lastAssist)
		if err := json.Unmarshal([]byte(messages), &c.Messages); err != nil {
			return nil, fmt.Errorf("decode messages of %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func loadArchives(ctx context.Context, q queryer) ([]conversation.Archive, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT archive_id, archived_at, reason, summary, source
		FROM archives ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query archives: %w", err)
	}
	defer rows.Close()

	var out []conversation.Archive
	for rows.Next() {
		var (
			a                  conversation.Archive
			archivedAt, source string
		)
		if err := rows.Scan(&a.ArchiveID, &archivedAt, &a.Reason, &a.Summary, &source); err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		a.ArchivedAt = parseTime(archivedAt)
		if err := json.Unmarshal([]byte(source), &a.Source); err != nil {
			return nil, fmt.Errorf("decode archive %s: %w", a.ArchiveID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func loadMemories(ctx context.Context, q queryer) ([]memory.Entry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, content, keywords, created_at, updated_at
		FROM memories ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var out []memory.Entry
	for rows.Next() {
		var (
			e                    memory.Entry
			keywords             string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&e.ID, &e.Content, &keywords, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &e.Keywords); err != nil {
			return nil, fmt.Errorf("decode keywords of %s: %w", e.ID, err)
		}
		e.CreatedAt = parseTime(createdAt)
		e.UpdatedAt = parseTime(updatedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// save replaces every row with the contents of st. The state is small
// (one user's chats) so a full rewrite keeps ordering trivially correct.
func save(ctx context.Context, q queryer, st *conversation.State) error {
	for _, table := range []string{"conversations", "archives", "memories"} {
		if _, err := q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, c := range st.Conversations {
		messages := c.Messages
		if messages == nil {
			messages = []conversation.Message{}
		}
		raw, err := json.Marshal(messages)
		if err != nil {
			return fmt.Errorf("encode messages of %s: %w", c.ID, err)
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO conversations
				(id, position, title, api_config_id, agent_id, status, created_at, updated_at,
				 last_user_at, last_assistant_at, usage_ratio, messages)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, i, c.Title, c.APIConfigID, c.AgentID, c.Status,
			formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
			formatNullTime(c.LastUserAt), formatNullTime(c.LastAssistantAt),
			c.LastContextUsageRatio, string(raw),
		)
		if err != nil {
			return fmt.Errorf("insert conversation %s: %w", c.ID, err)
		}
	}

	for i, a := range st.Archives {
		raw, err := json.Marshal(a.Source)
		if err != nil {
			return fmt.Errorf("encode archive %s: %w", a.ArchiveID, err)
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO archives (archive_id, position, archived_at, reason, summary, source)
			VALUES (?, ?, ?, ?, ?, ?)`,
			a.ArchiveID, i, formatTime(a.ArchivedAt), a.Reason, a.Summary, string(raw),
		)
		if err != nil {
			return fmt.Errorf("insert archive %s: %w", a.ArchiveID, err)
		}
	}

	for i, e := range st.Memories {
		keywords := e.Keywords
		if keywords == nil {
			keywords = []string{}
		}
		raw, err := json.Marshal(keywords)
		if err != nil {
			return fmt.Errorf("encode keywords of %s: %w", e.ID, err)
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO memories (id, position, content, keywords, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, i, e.Content, string(raw), formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert memory %s: %w", e.ID, err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}
