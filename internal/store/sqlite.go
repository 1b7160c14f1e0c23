// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// DefaultMaxTextBytes caps message text when no explicit limit is configured.
// The source system had no cap; this one exists as a resource-protection
// measure.
const DefaultMaxTextBytes = 4096

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db           *sql.DB
	maxTextBytes int
	logger       *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed. maxTextBytes caps message text;
// zero means DefaultMaxTextBytes.
func NewSQLiteStore(path string, maxTextBytes int) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if maxTextBytes <= 0 {
		maxTextBytes = DefaultMaxTextBytes
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:           db,
		maxTextBytes: maxTextBytes,
		logger:       logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			pair_key   TEXT NOT NULL,
			sender     TEXT NOT NULL,
			receiver   TEXT NOT NULL,
			text       TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_pair_seq
			ON messages(pair_key, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// pairKey returns the canonical conversation key for two user IDs. Both
// directions of a pair map to the same key.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// validate checks message constraints before any persistence attempt.
func (s *SQLiteStore) validate(sender, receiver, text string) error {
	if sender == "" {
		return fmt.Errorf("%w: sender is required", ErrInvalidMessage)
	}
	if receiver == "" {
		return fmt.Errorf("%w: receiver is required", ErrInvalidMessage)
	}
	if text == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidMessage)
	}
	if len(text) > s.maxTextBytes {
		return fmt.Errorf("%w: text exceeds %d bytes", ErrInvalidMessage, s.maxTextBytes)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidMessage)
	}
	return nil
}

// AppendMessage validates and persists a message, assigning ID, Seq, and
// CreatedAt. Each call creates a new message even with identical content.
func (s *SQLiteStore) AppendMessage(ctx context.Context, sender, receiver, text string) (*Message, error) {
	if err := s.validate(sender, receiver, text); err != nil {
		return nil, err
	}

	msg := &Message{
		ID:        uuid.New().String(),
		Sender:    sender,
		Receiver:  receiver,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO messages (id, pair_key, sender, receiver, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		msg.ID,
		pairKey(sender, receiver),
		msg.Sender,
		msg.Receiver,
		msg.Text,
		msg.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: inserting message: %v", ErrUnavailable, err)
	}

	msg.Seq, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: reading message seq: %v", ErrUnavailable, err)
	}

	s.logger.Debug("appended message",
		"id", msg.ID,
		"seq", msg.Seq,
		"sender", sender,
		"receiver", receiver,
	)
	return msg, nil
}

// encodeCursor creates an opaque cursor string from a sequence number.
func encodeCursor(seq int64) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.FormatInt(seq, 10)))
}

// decodeCursor parses an opaque cursor string into a sequence number.
func decodeCursor(cursor string) (int64, error) {
	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: bad encoding", ErrInvalidCursor)
	}
	seq, err := strconv.ParseInt(strings.TrimSpace(string(decoded)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad sequence", ErrInvalidCursor)
	}
	return seq, nil
}

// GetConversation returns a page of messages exchanged between the two users,
// in either direction, ascending by append order.
func (s *SQLiteStore) GetConversation(ctx context.Context, p ConversationParams) (*ConversationPage, error) {
	if p.UserA == "" || p.UserB == "" {
		return nil, fmt.Errorf("%w: both user IDs are required", ErrInvalidMessage)
	}

	limit := p.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	var afterSeq int64
	if p.Cursor != "" {
		var err error
		afterSeq, err = decodeCursor(p.Cursor)
		if err != nil {
			return nil, err
		}
	}

	query := `
		SELECT seq, id, sender, receiver, text, created_at
		FROM messages
		WHERE pair_key = ? AND seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`

	// Fetch limit+1 to detect whether more pages exist
	rows, err := s.db.QueryContext(ctx, query, pairKey(p.UserA, p.UserB), afterSeq, limit+1)
	if err != nil {
		return nil, fmt.Errorf("%w: querying messages: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var createdAtStr string

		if err := rows.Scan(&msg.Seq, &msg.ID, &msg.Sender, &msg.Receiver, &msg.Text, &createdAtStr); err != nil {
			return nil, fmt.Errorf("%w: scanning message row: %v", ErrUnavailable, err)
		}

		msg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing created_at: %v", ErrUnavailable, err)
		}

		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating message rows: %v", ErrUnavailable, err)
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}

	page := &ConversationPage{
		Messages: messages,
		HasMore:  hasMore,
	}
	if hasMore {
		page.NextCursor = encodeCursor(messages[len(messages)-1].Seq)
	}

	return page, nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
