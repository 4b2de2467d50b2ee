// Package sqlite implements the store interfaces on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"zenith/pkg/domain"
	"zenith/pkg/store"
)

// Store implements SessionStore, MessageStore, ProjectStore and
// SettingsStore using SQLite.
type Store struct {
	db          *sql.DB
	subscribers []chan string
	mu          sync.RWMutex
}

// Verify interface compliance at compile time.
var _ store.SessionStore = (*Store)(nil)
var _ store.MessageStore = (*Store)(nil)
var _ store.ProjectStore = (*Store)(nil)
var _ store.SettingsStore = (*Store)(nil)

// New opens (or creates) a SQLite database at the given path and runs
// migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		parts TEXT NOT NULL DEFAULT '[]',
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		seq INTEGER NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session_seq ON messages(session_id, seq);

	CREATE TABLE IF NOT EXISTS projects (
		session_id TEXT PRIMARY KEY,
		html TEXT NOT NULL DEFAULT '',
		css TEXT NOT NULL DEFAULT '',
		javascript TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		data TEXT NOT NULL DEFAULT '{}'
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// --- SessionStore ---

func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Title, sess.CreatedAt, sess.UpdatedAt,
	)
	return err
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	sess := &domain.Session{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, store.ErrNotFound)
	}
	return sess, err
}

func (s *Store) ListSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var sess domain.Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *Store) RenameSession(ctx context.Context, id, title string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET title=?, updated_at=? WHERE id=?`,
		title, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, store.ErrNotFound)
	}
	// Cascade cleanup for databases without foreign key enforcement enabled.
	s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id=?`, id)
	s.db.ExecContext(ctx, `DELETE FROM projects WHERE session_id=?`, id)
	return nil
}

func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- MessageStore ---

func (s *Store) SaveMessage(ctx context.Context, msg *domain.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	parts, err := json.Marshal(msg.Parts)
	if err != nil {
		return fmt.Errorf("marshaling parts: %w", err)
	}

	// The sequence number is computed inside the insert so concurrent saves
	// cannot collide on it. An existing message keeps its seq via the upsert,
	// so the history order is stable under re-saves.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, parts, timestamp, seq)
		 VALUES (?, ?, ?, ?, ?, ?,
		         (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id=?))
		 ON CONFLICT(id) DO UPDATE SET content=excluded.content, parts=excluded.parts`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, string(parts), msg.Timestamp, msg.SessionID,
	)
	if err != nil {
		return err
	}

	s.db.ExecContext(ctx, `UPDATE sessions SET updated_at=? WHERE id=?`,
		time.Now().UTC(), msg.SessionID)

	s.notifySubscribers(msg.SessionID)
	return nil
}

func (s *Store) GetMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, parts, timestamp
		 FROM messages WHERE session_id=? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		var parts string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &parts, &m.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(parts), &m.Parts); err != nil {
			return nil, fmt.Errorf("unmarshaling parts of message %s: %w", m.ID, err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *Store) Subscribe() <-chan string {
	ch := make(chan string, 64)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) notifySubscribers(sessionID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- sessionID:
		default:
			// Drop if subscriber is not consuming fast enough.
		}
	}
}

// --- ProjectStore ---

func (s *Store) SaveProject(ctx context.Context, sessionID string, p domain.Project) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (session_id, html, css, javascript, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		 	html=excluded.html, css=excluded.css, javascript=excluded.javascript, updated_at=excluded.updated_at`,
		sessionID, p.HTML, p.CSS, p.JavaScript, time.Now().UTC(),
	)
	return err
}

func (s *Store) GetProject(ctx context.Context, sessionID string) (domain.Project, bool, error) {
	var p domain.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT html, css, javascript FROM projects WHERE session_id=?`, sessionID,
	).Scan(&p.HTML, &p.CSS, &p.JavaScript)
	if err == sql.ErrNoRows {
		return domain.Project{}, false, nil
	}
	if err != nil {
		return domain.Project{}, false, err
	}
	return p, true, nil
}

// --- SettingsStore ---

func (s *Store) GetSettings(ctx context.Context) (domain.Settings, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM settings WHERE id=1`).Scan(&data)
	if err == sql.ErrNoRows {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.Settings{}, err
	}

	settings := domain.DefaultSettings()
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return domain.Settings{}, fmt.Errorf("unmarshaling settings: %w", err)
	}
	return settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings (id, data) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET data=excluded.data`,
		string(data),
	)
	return err
}
