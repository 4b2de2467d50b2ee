// Package store defines the persistence interfaces for sessions, chat
// messages, project snapshots and settings.
package store

import (
	"context"
	"errors"

	"zenith/pkg/domain"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// SessionStore manages chat sessions.
type SessionStore interface {
	// CreateSession persists a new session. The ID field must be set by the
	// caller.
	CreateSession(ctx context.Context, sess *domain.Session) error

	// GetSession retrieves a session by its unique ID.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// ListSessions returns all sessions, most recently updated first.
	ListSessions(ctx context.Context) ([]domain.Session, error)

	// RenameSession updates a session's title.
	RenameSession(ctx context.Context, id, title string) error

	// DeleteSession removes a session along with its messages and project.
	DeleteSession(ctx context.Context, id string) error

	// ListIDs returns just the session IDs (used by renderer reconciliation).
	ListIDs(ctx context.Context) ([]string, error)
}

// MessageStore manages the per-session chat history. Messages are ordered by
// insertion; saving an existing ID updates the record in place, which is how
// streaming assistant drafts are persisted.
type MessageStore interface {
	// SaveMessage inserts the message or, if the ID already exists, replaces
	// its content and parts while keeping its position in the history.
	SaveMessage(ctx context.Context, msg *domain.Message) error

	// GetMessages returns a session's messages in chronological order.
	GetMessages(ctx context.Context, sessionID string) ([]domain.Message, error)

	// Subscribe returns a channel that emits session IDs whenever a message
	// in that session is saved. Slow subscribers miss notifications rather
	// than blocking writers.
	Subscribe() <-chan string
}

// ProjectStore persists the latest project snapshot per session.
type ProjectStore interface {
	// SaveProject stores the session's current project files.
	SaveProject(ctx context.Context, sessionID string, p domain.Project) error

	// GetProject loads the session's project. ok is false when the session
	// has no stored snapshot yet.
	GetProject(ctx context.Context, sessionID string) (p domain.Project, ok bool, err error)
}

// SettingsStore persists the provider settings singleton.
type SettingsStore interface {
	// GetSettings returns the stored settings, or the defaults if none have
	// been saved.
	GetSettings(ctx context.Context) (domain.Settings, error)

	// SaveSettings replaces the stored settings.
	SaveSettings(ctx context.Context, settings domain.Settings) error
}
