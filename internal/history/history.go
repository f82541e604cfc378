// Package history is the local transcript cache: every message the sync
// engine accepts is appended to a sqlite database, so past conversations
// survive restarts even though the canonical state lives on the server.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"chatgogo/client/internal/logging"
	"chatgogo/client/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	room_id     INTEGER NOT NULL,
	message_id  INTEGER NOT NULL,
	sender_id   INTEGER NOT NULL,
	sender_name TEXT NOT NULL,
	text        TEXT NOT NULL,
	time        TEXT NOT NULL,
	PRIMARY KEY (room_id, message_id)
);
CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id);
`

// Service wraps the sqlite handle.
type Service struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open creates (or opens) the cache database and ensures the schema exists.
func Open(path string) (*Service, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}

	return &Service{db: db, log: logging.WithComponent("history")}, nil
}

// Close releases the database handle.
func (s *Service) Close() error {
	return s.db.Close()
}

// RecordMessage appends one message, idempotently: re-recording an id the
// cache already holds changes nothing. Cache failures are logged and
// swallowed; the cache must never break the live view.
func (s *Service) RecordMessage(roomID int64, m models.Message) {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO messages (room_id, message_id, sender_id, sender_name, text, time)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		roomID, m.ID, m.Sender.ID, m.Sender.FullName, m.Text, m.Time,
	)
	if err != nil {
		s.log.Warn().Err(err).Int64("message_id", m.ID).Msg("failed to record message")
	}
}

// RoomTranscript returns the cached messages of a room in id order.
func (s *Service) RoomTranscript(roomID int64) ([]models.Message, error) {
	rows, err := s.db.Query(
		`SELECT message_id, sender_id, sender_name, text, time
		 FROM messages WHERE room_id = ? ORDER BY message_id ASC`,
		roomID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		m.RoomID = roomID
		if err := rows.Scan(&m.ID, &m.Sender.ID, &m.Sender.FullName, &m.Text, &m.Time); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Forget drops a room's cached transcript.
func (s *Service) Forget(roomID int64) error {
	_, err := s.db.Exec(`DELETE FROM messages WHERE room_id = ?`, roomID)
	return err
}
