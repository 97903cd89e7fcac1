// Package storage provides SQLite-backed persistence for chat turns,
// session history, user memories, and the searchable document index.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interfaces
// - Allows swapping backends without API changes

package storage

import (
	"context"

	"github.com/mwielandt/tern/model"
)

// SessionStore persists conversation history per session.
type SessionStore interface {
	// SaveHistory replaces the stored history for a session.
	SaveHistory(ctx context.Context, sessionID string, history []model.ConversationMessage) error

	// LoadHistory loads a session's history. Returns an empty slice
	// (not nil) for an unknown session.
	LoadHistory(ctx context.Context, sessionID string) ([]model.ConversationMessage, error)

	// DeleteSession removes a session and its history.
	DeleteSession(ctx context.Context, sessionID string) error

	// ListSessions lists session ids, most recently updated first.
	ListSessions(ctx context.Context) ([]string, error)
}

// MemoryStore persists snippets remembered about the user across
// conversations.
type MemoryStore interface {
	AddMemory(ctx context.Context, content string) error
	Memories(ctx context.Context) ([]string, error)
}

// DocumentWriter fills the document index. Connector pipelines are the
// usual writers; tests and the CLI use it directly.
type DocumentWriter interface {
	AddDocument(ctx context.Context, doc model.SearchDoc, content string) error
}
