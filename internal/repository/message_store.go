package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// MessageRecord is a persisted inbound message. ID is assigned by the store.
type MessageRecord struct {
	ID        int64  `json:"id"`
	WwjsID    string `json:"wwjs_id"` // platform-assigned message id
	ChatID    string `json:"chat_id"`
	AuthorID  string `json:"author_id"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
}

// MediaRecord describes a downloaded attachment belonging to a message.
type MediaRecord struct {
	ID        int64  `json:"id"`
	MessageID int64  `json:"message_id"`
	MimeType  string `json:"mime_type"`
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
}

// TranscriptionRecord is the transcribed text of a media row.
type TranscriptionRecord struct {
	ID      int64  `json:"id"`
	MediaID int64  `json:"media_id"`
	Text    string `json:"text"`
}

// TranscriptionView joins a transcription with its message context for the
// history API.
type TranscriptionView struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	MimeType  string `json:"mime_type"`
	ChatID    string `json:"chat_id"`
	AuthorID  string `json:"author_id"`
	Timestamp int64  `json:"timestamp"`
}

// MessageStore is an append-only SQLite log of messages, media and
// transcriptions. Rows are never updated or deleted; foreign keys are
// enforced, so inserting a child row for a missing parent fails.
type MessageStore struct {
	db *sql.DB
}

// OpenMessageStore opens (creating if needed) the database at path and runs
// the idempotent schema migration.
func OpenMessageStore(path string) (*MessageStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite wants a single writer; this also serializes id assignment.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &MessageStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return store, nil
}

func (s *MessageStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		wwjs_id    TEXT,
		chat_id    TEXT,
		author_id  TEXT,
		body       TEXT,
		timestamp  INTEGER
	);

	CREATE TABLE IF NOT EXISTS media (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id  INTEGER,
		mime_type   TEXT,
		filename    TEXT,
		size        INTEGER,
		FOREIGN KEY(message_id) REFERENCES messages(id)
	);

	CREATE TABLE IF NOT EXISTS transcriptions (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		media_id  INTEGER,
		text      TEXT,
		FOREIGN KEY(media_id) REFERENCES media(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *MessageStore) Close() error {
	return s.db.Close()
}

// InsertMessage stores msg and returns a copy with its assigned id.
func (s *MessageStore) InsertMessage(ctx context.Context, msg MessageRecord) (MessageRecord, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (wwjs_id, chat_id, author_id, body, timestamp) VALUES (?, ?, ?, ?, ?)`,
		msg.WwjsID, msg.ChatID, msg.AuthorID, msg.Body, msg.Timestamp,
	)
	if err != nil {
		return MessageRecord{}, fmt.Errorf("insert message: %w", err)
	}
	msg.ID, err = res.LastInsertId()
	if err != nil {
		return MessageRecord{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// InsertMedia stores media and returns a copy with its assigned id.
// media.MessageID must reference an existing message row.
func (s *MessageStore) InsertMedia(ctx context.Context, media MediaRecord) (MediaRecord, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO media (message_id, mime_type, filename, size) VALUES (?, ?, ?, ?)`,
		media.MessageID, media.MimeType, media.Filename, media.Size,
	)
	if err != nil {
		return MediaRecord{}, fmt.Errorf("insert media: %w", err)
	}
	media.ID, err = res.LastInsertId()
	if err != nil {
		return MediaRecord{}, fmt.Errorf("insert media: %w", err)
	}
	return media, nil
}

// InsertTranscription stores tr and returns a copy with its assigned id.
// tr.MediaID must reference an existing media row.
func (s *MessageStore) InsertTranscription(ctx context.Context, tr TranscriptionRecord) (TranscriptionRecord, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transcriptions (media_id, text) VALUES (?, ?)`,
		tr.MediaID, tr.Text,
	)
	if err != nil {
		return TranscriptionRecord{}, fmt.Errorf("insert transcription: %w", err)
	}
	tr.ID, err = res.LastInsertId()
	if err != nil {
		return TranscriptionRecord{}, fmt.Errorf("insert transcription: %w", err)
	}
	return tr, nil
}

// ListMessages returns the most recent messages, newest first.
func (s *MessageStore) ListMessages(ctx context.Context, limit int) ([]MessageRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, wwjs_id, chat_id, author_id, body, timestamp
		 FROM messages ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []MessageRecord
	for rows.Next() {
		var m MessageRecord
		if err := rows.Scan(&m.ID, &m.WwjsID, &m.ChatID, &m.AuthorID, &m.Body, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ListTranscriptions returns the most recent transcriptions joined with their
// message context, newest first.
func (s *MessageStore) ListTranscriptions(ctx context.Context, limit int) ([]TranscriptionView, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.text, md.mime_type, m.chat_id, m.author_id, m.timestamp
		 FROM transcriptions t
		 JOIN media md ON md.id = t.media_id
		 JOIN messages m ON m.id = md.message_id
		 ORDER BY t.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list transcriptions: %w", err)
	}
	defer rows.Close()

	var views []TranscriptionView
	for rows.Next() {
		var v TranscriptionView
		if err := rows.Scan(&v.ID, &v.Text, &v.MimeType, &v.ChatID, &v.AuthorID, &v.Timestamp); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// Counts returns per-table row counts for the status endpoint.
func (s *MessageStore) Counts(ctx context.Context) (messages, media, transcriptions int64, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&messages); err != nil {
		return 0, 0, 0, err
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media`).Scan(&media); err != nil {
		return 0, 0, 0, err
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcriptions`).Scan(&transcriptions); err != nil {
		return 0, 0, 0, err
	}
	return messages, media, transcriptions, nil
}
