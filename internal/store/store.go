// Package store persists conversations for the advisory core in SQLite:
// the append-only turn log, the citations attached to each assistant turn,
// cached summaries, and conversation titles.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// ErrNotFound is returned when a conversation has no stored record.
var ErrNotFound = errors.New("store: not found")

// Role identifies the author of a turn.
type Role string

const (
	// RoleUser is the farmer.
	RoleUser Role = "user"
	// RoleAssistant is the advisor.
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	ID        int64
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Citation is a persisted link from an assistant turn to a knowledge-base chunk.
type Citation struct {
	Rank            int
	ConfidenceScore int
	SimilarityScore float64
	SourceID        string
	SequenceIndex   int
	Title           string
	ChunkPreview    string
}

// Summary is a cached conversation summary. TurnCount records how many turns
// it covered so callers can tell whether it is stale.
type Summary struct {
	Text             string
	KeyTopics        []string
	SchemesDiscussed []string
	TurnCount        int
	CreatedAt        time.Time
}

// SQLiteStore is safe for concurrent use.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultDBPath resolves ~/.kisan/conversations.db, creating the directory.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".kisan")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "conversations.db"), nil
}

// Open opens (or creates) the database at path and migrates the schema.
// Use ":memory:" in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One connection: serialises writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS conversations (
    id         TEXT    PRIMARY KEY,
    title      TEXT    NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT    NOT NULL REFERENCES conversations(id),
    role            TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content         TEXT    NOT NULL,
    created_at      INTEGER NOT NULL  -- Unix milliseconds
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation
    ON messages (conversation_id, id);
CREATE TABLE IF NOT EXISTS citations (
    message_id     INTEGER NOT NULL REFERENCES messages(id),
    rank           INTEGER NOT NULL,
    confidence     INTEGER NOT NULL,
    similarity     REAL    NOT NULL,
    source_id      TEXT    NOT NULL,
    sequence_index INTEGER NOT NULL,
    title          TEXT    NOT NULL,
    preview        TEXT    NOT NULL,
    UNIQUE (message_id, source_id, sequence_index)
);
CREATE TABLE IF NOT EXISTS summaries (
    conversation_id TEXT    PRIMARY KEY REFERENCES conversations(id),
    summary         TEXT    NOT NULL,
    topics          TEXT    NOT NULL,  -- JSON array
    schemes         TEXT    NOT NULL,  -- JSON array
    turn_count      INTEGER NOT NULL,
    created_at      INTEGER NOT NULL
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// History returns the most recent maxTurns turns oldest-first. maxTurns <= 0
// returns the whole conversation.
func (s *SQLiteStore) History(ctx context.Context, conversationID string, maxTurns int) ([]Turn, error) {
	const q = `
SELECT id, role, content, created_at FROM (
    SELECT id, role, content, created_at
    FROM   messages
    WHERE  conversation_id = ?
    ORDER  BY id DESC
    LIMIT  ?
) ORDER BY id ASC`

	limit := maxTurns
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, q, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var role string
		var ms int64
		if err := rows.Scan(&t.ID, &role, &t.Content, &ms); err != nil {
			return nil, fmt.Errorf("store: history scan: %w", err)
		}
		t.Role = Role(role)
		t.CreatedAt = time.UnixMilli(ms)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: history rows: %w", err)
	}
	return turns, nil
}

// AppendTurn persists a single turn.
func (s *SQLiteStore) AppendTurn(ctx context.Context, conversationID string, role Role, content string) (Turn, error) {
	return appendTurn(ctx, s.db, conversationID, role, content, time.Now())
}

// AppendExchange persists a question, its answer and the answer's citations
// in one transaction, so concurrent writers never interleave a pair.
func (s *SQLiteStore) AppendExchange(ctx context.Context, conversationID, question, answer string, citations []Citation) (user, assistant Turn, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Turn{}, Turn{}, fmt.Errorf("store: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now()
	if user, err = appendTurn(ctx, tx, conversationID, RoleUser, question, now); err != nil {
		return Turn{}, Turn{}, err
	}
	if assistant, err = appendTurn(ctx, tx, conversationID, RoleAssistant, answer, now); err != nil {
		return Turn{}, Turn{}, err
	}

	const q = `INSERT INTO citations (message_id, rank, confidence, similarity, source_id, sequence_index, title, preview)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	for _, c := range citations {
		if _, err = tx.ExecContext(ctx, q, assistant.ID, c.Rank, c.ConfidenceScore, c.SimilarityScore,
			c.SourceID, c.SequenceIndex, c.Title, c.ChunkPreview); err != nil {
			return Turn{}, Turn{}, fmt.Errorf("store: insert citation: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return Turn{}, Turn{}, fmt.Errorf("store: commit: %w", err)
	}
	return user, assistant, nil
}

func appendTurn(ctx context.Context, db execer, conversationID string, role Role, content string, now time.Time) (Turn, error) {
	ms := now.UnixMilli()
	const upsert = `INSERT INTO conversations (id, created_at, updated_at) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`
	if _, err := db.ExecContext(ctx, upsert, conversationID, ms, ms); err != nil {
		return Turn{}, fmt.Errorf("store: touch conversation: %w", err)
	}

	const q = `INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	res, err := db.ExecContext(ctx, q, conversationID, string(role), content, ms)
	if err != nil {
		return Turn{}, fmt.Errorf("store: append: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Turn{}, fmt.Errorf("store: append id: %w", err)
	}
	return Turn{ID: id, Role: role, Content: content, CreatedAt: time.UnixMilli(ms)}, nil
}

// Citations returns the citations attached to an assistant turn, by rank.
func (s *SQLiteStore) Citations(ctx context.Context, messageID int64) ([]Citation, error) {
	const q = `SELECT rank, confidence, similarity, source_id, sequence_index, title, preview
FROM citations WHERE message_id = ? ORDER BY confidence DESC, rank ASC`
	rows, err := s.db.QueryContext(ctx, q, messageID)
	if err != nil {
		return nil, fmt.Errorf("store: citations: %w", err)
	}
	defer rows.Close()

	var out []Citation
	for rows.Next() {
		var c Citation
		if err := rows.Scan(&c.Rank, &c.ConfidenceScore, &c.SimilarityScore, &c.SourceID,
			&c.SequenceIndex, &c.Title, &c.ChunkPreview); err != nil {
			return nil, fmt.Errorf("store: citations scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: citations rows: %w", err)
	}
	return out, nil
}

// CountTurns returns how many turns a conversation has.
func (s *SQLiteStore) CountTurns(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count turns: %w", err)
	}
	return n, nil
}

// SaveSummary replaces the cached summary of a conversation.
func (s *SQLiteStore) SaveSummary(ctx context.Context, conversationID string, sum Summary) error {
	topics, err := json.Marshal(nonNil(sum.KeyTopics))
	if err != nil {
		return fmt.Errorf("store: encode topics: %w", err)
	}
	schemes, err := json.Marshal(nonNil(sum.SchemesDiscussed))
	if err != nil {
		return fmt.Errorf("store: encode schemes: %w", err)
	}

	const q = `INSERT INTO summaries (conversation_id, summary, topics, schemes, turn_count, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(conversation_id) DO UPDATE SET
    summary = excluded.summary, topics = excluded.topics, schemes = excluded.schemes,
    turn_count = excluded.turn_count, created_at = excluded.created_at`
	if _, err := s.db.ExecContext(ctx, q, conversationID, sum.Text, string(topics), string(schemes),
		sum.TurnCount, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("store: save summary: %w", err)
	}
	return nil
}

// Summary returns the cached summary or [ErrNotFound].
func (s *SQLiteStore) Summary(ctx context.Context, conversationID string) (*Summary, error) {
	const q = `SELECT summary, topics, schemes, turn_count, created_at FROM summaries WHERE conversation_id = ?`
	var (
		sum             Summary
		topics, schemes string
		ms              int64
	)
	err := s.db.QueryRowContext(ctx, q, conversationID).Scan(&sum.Text, &topics, &schemes, &sum.TurnCount, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: summary: %w", err)
	}
	if err := json.Unmarshal([]byte(topics), &sum.KeyTopics); err != nil {
		return nil, fmt.Errorf("store: decode topics: %w", err)
	}
	if err := json.Unmarshal([]byte(schemes), &sum.SchemesDiscussed); err != nil {
		return nil, fmt.Errorf("store: decode schemes: %w", err)
	}
	sum.CreatedAt = time.UnixMilli(ms)
	return &sum, nil
}

// SetTitle stores a conversation title. The conversation must exist.
func (s *SQLiteStore) SetTitle(ctx context.Context, conversationID, title string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE conversations SET title = ? WHERE id = ?`, title, conversationID)
	if err != nil {
		return fmt.Errorf("store: set title: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Title returns the stored title, "" when none was generated yet, or
// [ErrNotFound] for an unknown conversation.
func (s *SQLiteStore) Title(ctx context.Context, conversationID string) (string, error) {
	var title string
	err := s.db.QueryRowContext(ctx, `SELECT title FROM conversations WHERE id = ?`, conversationID).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: title: %w", err)
	}
	return title, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
