package storage

import (
	"context"
	"reflect"
	"testing"

	"github.com/mwielandt/tern/chat"
	"github.com/mwielandt/tern/model"
)

func newTestStorage(t *testing.T) *SqliteStorage {
	t.Helper()
	store, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("NewSqliteInMemory() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveTurn_RoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	record := chat.TurnRecord{
		AssistantMessageID: "msg-1",
		Answer:             "Go is a language [1].",
		Reasoning:          "looked it up",
		CitationDocs: []model.CitationDocInfo{
			{
				CitationNumber: 1,
				Doc: model.SearchDoc{
					DocumentID: "doc-a",
					Title:      "Go docs",
					Link:       "https://go.dev",
					Blurb:      "The Go programming language",
					SourceType: "web",
				},
			},
		},
		ToolCalls: []model.ToolCallInfo{
			{
				TurnIndex:       1,
				ToolName:        "internal_search",
				ToolCallID:      "call-1",
				ToolID:          1,
				ReasoningTokens: "looked it up",
				Arguments:       map[string]any{"query": "go"},
				Response:        "Found 1 documents",
				SearchDocs:      []model.SearchDoc{{DocumentID: "doc-a", Title: "Go docs"}},
			},
		},
	}

	if err := store.SaveTurn(ctx, record); err != nil {
		t.Fatalf("SaveTurn() error = %v", err)
	}

	loaded, err := store.LoadTurn(ctx, "msg-1")
	if err != nil {
		t.Fatalf("LoadTurn() error = %v", err)
	}

	if loaded.Answer != record.Answer || loaded.Reasoning != record.Reasoning {
		t.Errorf("loaded = %+v", loaded)
	}
	if !reflect.DeepEqual(loaded.CitationDocs, record.CitationDocs) {
		t.Errorf("CitationDocs = %+v, want %+v", loaded.CitationDocs, record.CitationDocs)
	}
	if len(loaded.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %+v", loaded.ToolCalls)
	}
	call := loaded.ToolCalls[0]
	if call.ToolName != "internal_search" || call.ToolID != 1 || call.TurnIndex != 1 {
		t.Errorf("tool call = %+v", call)
	}
	if call.Arguments["query"] != "go" {
		t.Errorf("Arguments = %v", call.Arguments)
	}
	if len(call.SearchDocs) != 1 || call.SearchDocs[0].DocumentID != "doc-a" {
		t.Errorf("SearchDocs = %+v", call.SearchDocs)
	}
	if call.ParentToolCallID != "" {
		t.Errorf("ParentToolCallID = %q, want empty", call.ParentToolCallID)
	}
}

func TestSaveTurn_EmptyCollections(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	record := chat.TurnRecord{AssistantMessageID: "msg-1", Answer: "hello"}
	if err := store.SaveTurn(ctx, record); err != nil {
		t.Fatalf("SaveTurn() error = %v", err)
	}

	loaded, err := store.LoadTurn(ctx, "msg-1")
	if err != nil {
		t.Fatalf("LoadTurn() error = %v", err)
	}
	if len(loaded.CitationDocs) != 0 || len(loaded.ToolCalls) != 0 {
		t.Errorf("loaded = %+v, want empty collections", loaded)
	}
}

func TestLoadTurn_Unknown(t *testing.T) {
	store := newTestStorage(t)

	if _, err := store.LoadTurn(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown assistant message id")
	}
}

func TestHistory_RoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	history := []model.ConversationMessage{
		{Text: "hi", TokenCount: 1, Role: model.RoleUser},
		{Text: "hello", TokenCount: 2, Role: model.RoleAssistant},
		{Text: `{"function_name":"internal_search"}`, TokenCount: 5, Role: model.RoleToolCall, ToolCallID: "call-1"},
		{Text: "results", TokenCount: 3, Role: model.RoleToolCallResponse, ToolCallID: "call-1"},
	}

	if err := store.SaveHistory(ctx, "session-1", history); err != nil {
		t.Fatalf("SaveHistory() error = %v", err)
	}

	loaded, err := store.LoadHistory(ctx, "session-1")
	if err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}
	if !reflect.DeepEqual(loaded, history) {
		t.Errorf("loaded = %+v, want %+v", loaded, history)
	}
}

func TestHistory_SaveReplaces(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	first := []model.ConversationMessage{{Text: "one", TokenCount: 1, Role: model.RoleUser}}
	second := []model.ConversationMessage{
		{Text: "two", TokenCount: 1, Role: model.RoleUser},
		{Text: "three", TokenCount: 1, Role: model.RoleAssistant},
	}

	if err := store.SaveHistory(ctx, "s", first); err != nil {
		t.Fatalf("SaveHistory() error = %v", err)
	}
	if err := store.SaveHistory(ctx, "s", second); err != nil {
		t.Fatalf("SaveHistory() error = %v", err)
	}

	loaded, err := store.LoadHistory(ctx, "s")
	if err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}
	if len(loaded) != 2 || loaded[0].Text != "two" {
		t.Errorf("loaded = %+v, want second history only", loaded)
	}
}

func TestHistory_UnknownSessionIsEmpty(t *testing.T) {
	store := newTestStorage(t)

	loaded, err := store.LoadHistory(context.Background(), "nope")
	if err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("loaded = %+v, want empty", loaded)
	}
}

func TestSessions_ListAndDelete(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	msg := []model.ConversationMessage{{Text: "x", TokenCount: 1, Role: model.RoleUser}}
	if err := store.SaveHistory(ctx, "a", msg); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveHistory(ctx, "b", msg); err != nil {
		t.Fatal(err)
	}

	sessions, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %v, want 2", sessions)
	}

	if err := store.DeleteSession(ctx, "a"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	sessions, err = store.ListSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0] != "b" {
		t.Errorf("sessions = %v, want [b]", sessions)
	}
	history, err := store.LoadHistory(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Errorf("deleted session history = %+v, want empty", history)
	}
}

func TestMemories(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if err := store.AddMemory(ctx, "prefers metric units"); err != nil {
		t.Fatalf("AddMemory() error = %v", err)
	}
	if err := store.AddMemory(ctx, "works in aviation"); err != nil {
		t.Fatalf("AddMemory() error = %v", err)
	}

	memories, err := store.Memories(ctx)
	if err != nil {
		t.Fatalf("Memories() error = %v", err)
	}
	if len(memories) != 2 {
		t.Fatalf("memories = %v, want 2", memories)
	}
}

func TestDefaultBasePrompt(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	prompt, err := store.DefaultBasePrompt(ctx)
	if err != nil {
		t.Fatalf("DefaultBasePrompt() error = %v", err)
	}
	if prompt != "" {
		t.Errorf("prompt = %q, want empty when unset", prompt)
	}

	if err := store.SetDefaultBasePrompt(ctx, "You are a tern."); err != nil {
		t.Fatalf("SetDefaultBasePrompt() error = %v", err)
	}
	prompt, err = store.DefaultBasePrompt(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if prompt != "You are a tern." {
		t.Errorf("prompt = %q", prompt)
	}
}

func TestDocuments_AddAndSearch(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	docs := []struct {
		doc     model.SearchDoc
		content string
	}{
		{model.SearchDoc{DocumentID: "d1", Title: "Onboarding guide", SourceType: "file"}, "How to get a laptop"},
		{model.SearchDoc{DocumentID: "d2", Title: "Release process", SourceType: "file"}, "Tag then deploy"},
		{model.SearchDoc{DocumentID: "d3", Title: "Notes", SourceType: "file"}, "onboarding checklist items"},
	}
	for _, d := range docs {
		if err := store.AddDocument(ctx, d.doc, d.content); err != nil {
			t.Fatalf("AddDocument() error = %v", err)
		}
	}

	// Matches title or content.
	found, err := store.Search(ctx, "onboarding", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("found = %+v, want title and content matches", found)
	}

	found, err = store.Search(ctx, "deploy", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].DocumentID != "d2" {
		t.Errorf("found = %+v, want d2 only", found)
	}

	found, err = store.Search(ctx, "onboarding", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 {
		t.Errorf("found = %+v, want limit applied", found)
	}
}

func TestDocuments_AddReplaces(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := model.SearchDoc{DocumentID: "d1", Title: "First title"}
	if err := store.AddDocument(ctx, doc, "content"); err != nil {
		t.Fatal(err)
	}
	doc.Title = "Second title"
	if err := store.AddDocument(ctx, doc, "content"); err != nil {
		t.Fatal(err)
	}

	found, err := store.Search(ctx, "content", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Title != "Second title" {
		t.Errorf("found = %+v, want single replaced document", found)
	}
}
