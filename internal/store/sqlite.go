// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides conversation/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width and always UTC so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	memory := path == ":memory:"
	if !memory {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	// Immediate transactions take the write lock up front, which serializes
	// concurrent appends instead of failing them on lock upgrade.
	dsn := "file:" + path + "?_txlock=immediate" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)"
	if !memory {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if memory {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		now:    time.Now,
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
		CREATE TABLE IF NOT EXISTS conversations (
			id              TEXT PRIMARY KEY,
			participant_a   TEXT NOT NULL,
			participant_b   TEXT NOT NULL,
			created_at      TEXT NOT NULL,
			last_message_at TEXT,

			CHECK (participant_a <> participant_b)
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_last_message
			ON conversations(last_message_at DESC);

		CREATE TABLE IF NOT EXISTS messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			sender_id       TEXT NOT NULL,
			content         TEXT NOT NULL,
			media_url       TEXT,
			type            TEXT NOT NULL,
			created_at      TEXT NOT NULL,

			CHECK (type IN ('text', 'image'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(conversation_id, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Ping verifies the database connection is alive
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// CreateConversation inserts a new conversation.
// Returns ErrDuplicateConversation if the ID is already taken.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	if err := conv.Validate(); err != nil {
		return err
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = s.now().UTC()
	}

	var last any
	if conv.LastMessageAt != nil {
		last = formatTime(*conv.LastMessageAt)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, participant_a, participant_b, created_at, last_message_at)
		VALUES (?, ?, ?, ?, ?)
	`, conv.ID, conv.ParticipantA, conv.ParticipantB, formatTime(conv.CreatedAt), last)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateConversation
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID)
	return nil
}

// isConstraintViolation checks if the error is a SQLite UNIQUE or PRIMARY KEY violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "PRIMARY KEY")
}

// queryRower is satisfied by *sql.DB and *sql.Tx
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetConversation retrieves a conversation by ID.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	return getConversation(ctx, s.db, id)
}

func getConversation(ctx context.Context, q queryRower, id string) (*Conversation, error) {
	var conv Conversation
	var createdAtStr string
	var lastStr sql.NullString

	err := q.QueryRowContext(ctx, `
		SELECT id, participant_a, participant_b, created_at, last_message_at
		FROM conversations
		WHERE id = ?
	`, id).Scan(&conv.ID, &conv.ParticipantA, &conv.ParticipantB, &createdAtStr, &lastStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	conv.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if lastStr.Valid {
		last, err := parseTime(lastStr.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_message_at: %w", err)
		}
		conv.LastMessageAt = &last
	}

	return &conv, nil
}

// UpdateLastMessageAt advances last_message_at. Older timestamps are ignored.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) UpdateLastMessageAt(ctx context.Context, id string, ts time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := advanceLastMessageAt(ctx, tx, id, ts); err != nil {
		return err
	}
	return tx.Commit()
}

func advanceLastMessageAt(ctx context.Context, tx *sql.Tx, id string, ts time.Time) error {
	formatted := formatTime(ts)
	result, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET last_message_at = ?
		WHERE id = ? AND (last_message_at IS NULL OR last_message_at < ?)
	`, formatted, id, formatted)
	if err != nil {
		return fmt.Errorf("updating last_message_at: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Nothing changed: either the stored value is newer or the row is missing
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking conversation: %w", err)
	}
	return nil
}

// AppendMessage inserts msg and advances the conversation's last_message_at
// in one transaction, assigning msg.ID and msg.CreatedAt.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	conv, err := getConversation(ctx, tx, msg.ConversationID)
	if err != nil {
		return err
	}

	createdAt := nextCreatedAt(s.now().UTC(), conv.LastMessageAt)

	result, err := tx.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, content, media_url, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ConversationID, msg.SenderID, msg.Content, nullableString(msg.MediaURL), string(msg.Type), formatTime(createdAt))
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading message id: %w", err)
	}

	if err := advanceLastMessageAt(ctx, tx, msg.ConversationID, createdAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = createdAt

	s.logger.Debug("appended message", "id", id, "conversation_id", msg.ConversationID, "type", msg.Type)
	return nil
}

// ListMessages returns messages after afterID in ascending ID order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, afterID int64, limit int) ([]*Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, content, media_url, type, created_at
		FROM messages
		WHERE conversation_id = ? AND id > ?
		ORDER BY id ASC
	`
	args := []any{conversationID, afterID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var mediaURL sql.NullString
		var msgType, createdAtStr string

		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &mediaURL, &msgType, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		if mediaURL.Valid {
			url := mediaURL.String
			msg.MediaURL = &url
		}
		msg.Type = MessageType(msgType)
		msg.CreatedAt, err = parseTime(createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return messages, nil
}

// nullableString returns nil for a nil pointer, otherwise the string value
func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
