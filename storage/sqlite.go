// SQLite persistence for turns, sessions, memories, settings, and the
// document index.
//
// Information Hiding:
// - SQLite connection management hidden behind interfaces
// - Schema and migration details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mwielandt/tern/chat"
	"github.com/mwielandt/tern/model"
)

// SqliteStorage implements the persistence collaborators on a single
// SQLite database file.
type SqliteStorage struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStorage, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStorage, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// Close closes the database connection.
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

func (s *SqliteStorage) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			message_index INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			token_count INTEGER NOT NULL DEFAULT 0,
			tool_call_id TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE,
			UNIQUE(session_id, message_index)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session
		ON messages(session_id, message_index);

		CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			assistant_message_id TEXT NOT NULL,
			answer TEXT NOT NULL,
			reasoning TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS turn_citations (
			turn_id TEXT NOT NULL,
			citation_number INTEGER NOT NULL,
			document_id TEXT NOT NULL,
			title TEXT,
			link TEXT,
			blurb TEXT,
			source_type TEXT,
			PRIMARY KEY (turn_id, citation_number),
			FOREIGN KEY (turn_id) REFERENCES turns(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS turn_tool_calls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			turn_id TEXT NOT NULL,
			turn_index INTEGER NOT NULL,
			tool_name TEXT NOT NULL,
			tool_call_id TEXT NOT NULL,
			tool_id INTEGER NOT NULL,
			parent_tool_call_id TEXT,
			reasoning TEXT,
			arguments TEXT NOT NULL,
			response TEXT NOT NULL,
			search_docs TEXT,
			generated_images TEXT,
			FOREIGN KEY (turn_id) REFERENCES turns(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS documents (
			document_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			link TEXT,
			blurb TEXT,
			source_type TEXT,
			content TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SqliteStorage) ensureSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO sessions (session_id) VALUES (?)",
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}
	return nil
}

// SaveTurn writes a completed turn, its citation documents, and its tool
// call records in one transaction.
func (s *SqliteStorage) SaveTurn(ctx context.Context, record chat.TurnRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op after Commit.
	defer func() { _ = tx.Rollback() }()

	turnID := uuid.New().String()
	_, err = tx.ExecContext(ctx,
		"INSERT INTO turns (id, assistant_message_id, answer, reasoning) VALUES (?, ?, ?, ?)",
		turnID, record.AssistantMessageID, record.Answer, record.Reasoning,
	)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}

	for _, citation := range record.CitationDocs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO turn_citations
			(turn_id, citation_number, document_id, title, link, blurb, source_type)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			turnID, citation.CitationNumber,
			citation.Doc.DocumentID, citation.Doc.Title,
			citation.Doc.Link, citation.Doc.Blurb, citation.Doc.SourceType,
		)
		if err != nil {
			return fmt.Errorf("failed to insert citation %d: %w", citation.CitationNumber, err)
		}
	}

	for _, call := range record.ToolCalls {
		arguments, err := json.Marshal(call.Arguments)
		if err != nil {
			return fmt.Errorf("failed to encode tool call arguments: %w", err)
		}
		searchDocs, err := encodeOptionalJSON(call.SearchDocs)
		if err != nil {
			return fmt.Errorf("failed to encode search docs: %w", err)
		}
		generatedImages, err := encodeOptionalJSON(call.GeneratedImages)
		if err != nil {
			return fmt.Errorf("failed to encode generated images: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO turn_tool_calls
			(turn_id, turn_index, tool_name, tool_call_id, tool_id,
			 parent_tool_call_id, reasoning, arguments, response,
			 search_docs, generated_images)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			turnID, call.TurnIndex, call.ToolName, call.ToolCallID, call.ToolID,
			nullableString(call.ParentToolCallID), call.ReasoningTokens,
			string(arguments), call.Response, searchDocs, generatedImages,
		)
		if err != nil {
			return fmt.Errorf("failed to insert tool call %s: %w", call.ToolCallID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turn: %w", err)
	}
	return nil
}

// LoadTurn loads the most recently saved turn for an assistant message.
func (s *SqliteStorage) LoadTurn(ctx context.Context, assistantMessageID string) (chat.TurnRecord, error) {
	var record chat.TurnRecord
	var turnID string
	var reasoning sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, assistant_message_id, answer, reasoning FROM turns
		WHERE assistant_message_id = ?
		ORDER BY created_at DESC LIMIT 1`,
		assistantMessageID,
	).Scan(&turnID, &record.AssistantMessageID, &record.Answer, &reasoning)
	if err != nil {
		return chat.TurnRecord{}, fmt.Errorf("failed to load turn: %w", err)
	}
	record.Reasoning = reasoning.String

	citations, err := s.loadCitations(ctx, turnID)
	if err != nil {
		return chat.TurnRecord{}, err
	}
	record.CitationDocs = citations

	calls, err := s.loadToolCalls(ctx, turnID)
	if err != nil {
		return chat.TurnRecord{}, err
	}
	record.ToolCalls = calls

	return record, nil
}

func (s *SqliteStorage) loadCitations(ctx context.Context, turnID string) ([]model.CitationDocInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT citation_number, document_id, title, link, blurb, source_type
		FROM turn_citations WHERE turn_id = ? ORDER BY citation_number ASC`,
		turnID)
	if err != nil {
		return nil, fmt.Errorf("failed to query citations: %w", err)
	}
	defer rows.Close()

	var citations []model.CitationDocInfo
	for rows.Next() {
		var c model.CitationDocInfo
		var title, link, blurb, sourceType sql.NullString
		if err := rows.Scan(&c.CitationNumber, &c.Doc.DocumentID, &title, &link, &blurb, &sourceType); err != nil {
			return nil, fmt.Errorf("failed to scan citation: %w", err)
		}
		c.Doc.Title = title.String
		c.Doc.Link = link.String
		c.Doc.Blurb = blurb.String
		c.Doc.SourceType = sourceType.String
		citations = append(citations, c)
	}
	return citations, rows.Err()
}

func (s *SqliteStorage) loadToolCalls(ctx context.Context, turnID string) ([]model.ToolCallInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT turn_index, tool_name, tool_call_id, tool_id,
		       parent_tool_call_id, reasoning, arguments, response,
		       search_docs, generated_images
		FROM turn_tool_calls WHERE turn_id = ? ORDER BY id ASC`,
		turnID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool calls: %w", err)
	}
	defer rows.Close()

	var calls []model.ToolCallInfo
	for rows.Next() {
		var call model.ToolCallInfo
		var parent, reasoning, arguments, searchDocs, generatedImages sql.NullString
		if err := rows.Scan(&call.TurnIndex, &call.ToolName, &call.ToolCallID, &call.ToolID,
			&parent, &reasoning, &arguments, &call.Response, &searchDocs, &generatedImages); err != nil {
			return nil, fmt.Errorf("failed to scan tool call: %w", err)
		}
		call.ParentToolCallID = parent.String
		call.ReasoningTokens = reasoning.String
		if arguments.Valid {
			if err := json.Unmarshal([]byte(arguments.String), &call.Arguments); err != nil {
				return nil, fmt.Errorf("failed to decode tool call arguments: %w", err)
			}
		}
		if searchDocs.Valid {
			if err := json.Unmarshal([]byte(searchDocs.String), &call.SearchDocs); err != nil {
				return nil, fmt.Errorf("failed to decode search docs: %w", err)
			}
		}
		if generatedImages.Valid {
			if err := json.Unmarshal([]byte(generatedImages.String), &call.GeneratedImages); err != nil {
				return nil, fmt.Errorf("failed to decode generated images: %w", err)
			}
		}
		calls = append(calls, call)
	}
	return calls, rows.Err()
}

// DefaultBasePrompt returns the configured base system prompt, or "" if
// none has been set.
func (s *SqliteStorage) DefaultBasePrompt(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = 'base_system_prompt'").Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load base system prompt: %w", err)
	}
	return value, nil
}

// SetDefaultBasePrompt stores the base system prompt.
func (s *SqliteStorage) SetDefaultBasePrompt(ctx context.Context, prompt string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO settings (key, value) VALUES ('base_system_prompt', ?)",
		prompt)
	if err != nil {
		return fmt.Errorf("failed to store base system prompt: %w", err)
	}
	return nil
}

// SaveHistory replaces the stored history for a session.
func (s *SqliteStorage) SaveHistory(ctx context.Context, sessionID string, history []model.ConversationMessage) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear old messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (session_id, message_index, role, content, token_count, tool_call_id)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for i, msg := range history {
		_, err = stmt.ExecContext(ctx, sessionID, i,
			string(msg.Role), msg.Text, msg.TokenCount, nullableString(msg.ToolCallID))
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE sessions SET updated_at = datetime('now') WHERE session_id = ?",
		sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadHistory loads a session's history. Returns an empty slice for an
// unknown session.
func (s *SqliteStorage) LoadHistory(ctx context.Context, sessionID string) ([]model.ConversationMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, token_count, tool_call_id FROM messages
		WHERE session_id = ? ORDER BY message_index ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []model.ConversationMessage{}
	for rows.Next() {
		var msg model.ConversationMessage
		var role string
		var toolCallID sql.NullString
		if err := rows.Scan(&role, &msg.Text, &msg.TokenCount, &toolCallID); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = model.Role(role)
		msg.ToolCallID = toolCallID.String
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// DeleteSession removes a session and its history.
func (s *SqliteStorage) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"DELETE FROM messages WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session messages: %w", err)
	}
	return nil
}

// ListSessions lists session ids, most recently updated first.
func (s *SqliteStorage) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT session_id FROM sessions ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{}
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sessionID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// AddMemory stores a snippet remembered about the user.
func (s *SqliteStorage) AddMemory(ctx context.Context, content string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO memories (id, content) VALUES (?, ?)",
		uuid.New().String(), content)
	if err != nil {
		return fmt.Errorf("failed to store memory: %w", err)
	}
	return nil
}

// Memories returns all memory snippets, oldest first.
func (s *SqliteStorage) Memories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT content FROM memories ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	memories := []string{}
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		memories = append(memories, content)
	}
	return memories, rows.Err()
}

// AddDocument inserts or replaces a document in the search index.
func (s *SqliteStorage) AddDocument(ctx context.Context, doc model.SearchDoc, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO documents
		(document_id, title, link, blurb, source_type, content)
		VALUES (?, ?, ?, ?, ?, ?)`,
		doc.DocumentID, doc.Title, doc.Link, doc.Blurb, doc.SourceType, content)
	if err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	return nil
}

// Search finds documents whose title or content matches the query.
func (s *SqliteStorage) Search(ctx context.Context, query string, limit int) ([]model.SearchDoc, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, title, link, blurb, source_type FROM documents
		WHERE title LIKE ? OR content LIKE ?
		ORDER BY title ASC LIMIT ?`,
		pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []model.SearchDoc
	for rows.Next() {
		var doc model.SearchDoc
		var link, blurb, sourceType sql.NullString
		if err := rows.Scan(&doc.DocumentID, &doc.Title, &link, &blurb, &sourceType); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Link = link.String
		doc.Blurb = blurb.String
		doc.SourceType = sourceType.String
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func encodeOptionalJSON(v any) (any, error) {
	switch value := v.(type) {
	case []model.SearchDoc:
		if len(value) == 0 {
			return nil, nil
		}
	case []model.GeneratedImage:
		if len(value) == 0 {
			return nil, nil
		}
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var (
	_ chat.TurnStore = (*SqliteStorage)(nil)
	_ SessionStore   = (*SqliteStorage)(nil)
	_ MemoryStore    = (*SqliteStorage)(nil)
	_ DocumentWriter = (*SqliteStorage)(nil)
)
