package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"WebResearcher/internal/domain"
	"WebResearcher/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	search_events   TEXT,
	created_at      INTEGER NOT NULL,
	PRIMARY KEY (conversation_id, position)
);
CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at DESC);
`

// SQLiteRepository persists conversations into a SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

var _ ports.ConversationRepository = (*SQLiteRepository)(nil)

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" keeps everything in process.
func Open(ctx context.Context, path string) (*SQLiteRepository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// an in-memory database lives per connection
	db.SetMaxOpenConns(1)

	repo := NewSQLiteRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// NewSQLiteRepository wires a sql.DB implementation.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Migrate creates the tables if they do not exist.
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (r *SQLiteRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Save upserts the conversation and replaces its messages.
func (r *SQLiteRepository) Save(ctx context.Context, conv domain.Conversation) error {
	if r.db == nil {
		return nil
	}
	if conv.ID == "" {
		return errors.New("save conversation: empty id")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := sq.Insert("conversations").
		Columns("id", "title", "created_at", "updated_at").
		Values(conv.ID, conv.Title, toUnix(conv.CreatedAt), toUnix(conv.UpdatedAt)).
		Suffix("ON CONFLICT (id) DO UPDATE SET title = excluded.title, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}

	query, args, err = sq.Delete("messages").Where(sq.Eq{"conversation_id": conv.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}

	if len(conv.Messages) > 0 {
		insert := sq.Insert("messages").
			Columns("conversation_id", "position", "role", "content", "search_events", "created_at")
		for i, msg := range conv.Messages {
			events, err := encodeEvents(msg.SearchEvents)
			if err != nil {
				return fmt.Errorf("message %d: %w", i, err)
			}
			insert = insert.Values(conv.ID, i, string(msg.Role), msg.Content, events, toUnix(msg.CreatedAt))
		}
		query, args, err = insert.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert messages: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get loads a conversation with its messages in order.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (domain.Conversation, error) {
	conv := domain.Conversation{ID: id}

	query, args, err := sq.Select("title", "created_at", "updated_at").
		From("conversations").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return conv, fmt.Errorf("build select: %w", err)
	}
	var created, updated int64
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&conv.Title, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return conv, fmt.Errorf("conversation %s: %w", id, domain.ErrConversationNotFound)
	}
	if err != nil {
		return conv, fmt.Errorf("query conversation: %w", err)
	}
	conv.CreatedAt = fromUnix(created)
	conv.UpdatedAt = fromUnix(updated)

	query, args, err = sq.Select("role", "content", "search_events", "created_at").
		From("messages").
		Where(sq.Eq{"conversation_id": id}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return conv, fmt.Errorf("build select messages: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return conv, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msg    domain.Message
			role   string
			events sql.NullString
			at     int64
		)
		if err := rows.Scan(&role, &msg.Content, &events, &at); err != nil {
			return conv, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = domain.Role(role)
		msg.CreatedAt = fromUnix(at)
		if events.Valid {
			msg.SearchEvents, err = decodeEvents(events.String)
			if err != nil {
				return conv, fmt.Errorf("message %d: %w", len(conv.Messages), err)
			}
		}
		conv.Messages = append(conv.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return conv, fmt.Errorf("rows iteration: %w", err)
	}
	return conv, nil
}

// List returns the most recently updated conversations first.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]domain.ConversationSummary, error) {
	builder := sq.Select("c.id", "c.title", "c.updated_at", "COUNT(m.position)").
		From("conversations c").
		LeftJoin("messages m ON m.conversation_id = c.id").
		GroupBy("c.id").
		OrderBy("c.updated_at DESC", "c.id")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	out := []domain.ConversationSummary{}
	for rows.Next() {
		var (
			s       domain.ConversationSummary
			updated int64
		)
		if err := rows.Scan(&s.ID, &s.Title, &updated, &s.MessageCount); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		s.UpdatedAt = fromUnix(updated)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func encodeEvents(events []domain.Event) (sql.NullString, error) {
	if len(events) == 0 {
		return sql.NullString{}, nil
	}
	raw := make([]json.RawMessage, 0, len(events))
	for _, e := range events {
		data, err := domain.EncodeEvent(e)
		if err != nil {
			return sql.NullString{}, err
		}
		raw = append(raw, data)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode events: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeEvents(data string) ([]domain.Event, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	out := make([]domain.Event, 0, len(raw))
	for _, item := range raw {
		e, err := domain.DecodeEvent(item)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
