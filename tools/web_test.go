package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/mwielandt/tern/model"
)

func TestSearxProvider_ParsesResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q, want /search", r.URL.Path)
		}
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("format = %q, want json", r.URL.Query().Get("format"))
		}
		if r.URL.Query().Get("q") != "go generics" {
			t.Errorf("q = %q", r.URL.Query().Get("q"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [
			{"url": "https://go.dev/blog/generics", "title": "Generics", "content": "Type parameters"},
			{"url": "https://example.com/two", "title": "Two", "content": "Second"},
			{"url": "https://example.com/three", "title": "Three", "content": "Third"}
		]}`))
	}))
	defer server.Close()

	provider := NewSearxProvider(server.URL, 5*time.Second)
	docs, err := provider.SearchWeb(context.Background(), "go generics", 2)
	if err != nil {
		t.Fatalf("SearchWeb() error = %v", err)
	}

	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want limit applied", len(docs))
	}
	first := docs[0]
	if first.DocumentID != "https://go.dev/blog/generics" || first.Title != "Generics" {
		t.Errorf("first doc = %+v", first)
	}
	if first.Blurb != "Type parameters" || first.SourceType != "web" {
		t.Errorf("first doc = %+v", first)
	}
}

func TestSearxProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := NewSearxProvider(server.URL, 5*time.Second)
	if _, err := provider.SearchWeb(context.Background(), "q", 5); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestWebSearchTool_NoResults(t *testing.T) {
	provider := webSearchFunc(func(ctx context.Context, query string, limit int) ([]model.SearchDoc, error) {
		return nil, nil
	})
	tool := NewWebSearchTool(2, provider)

	resp, err := tool.Run(context.Background(), map[string]any{"query": "nothing"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(resp.LLMFacingResponse, "No web results") {
		t.Errorf("LLMFacingResponse = %q", resp.LLMFacingResponse)
	}
}

func TestWebSearchTool_MissingQuery(t *testing.T) {
	tool := NewWebSearchTool(2, webSearchFunc(nil))
	if _, err := tool.Run(context.Background(), map[string]any{}); err == nil {
		t.Fatal("expected error for missing query")
	}
}

// webSearchFunc adapts a function to WebSearchProvider.
type webSearchFunc func(ctx context.Context, query string, limit int) ([]model.SearchDoc, error)

func (f webSearchFunc) SearchWeb(ctx context.Context, query string, limit int) ([]model.SearchDoc, error) {
	return f(ctx, query, limit)
}

func TestOpenURLTool_FetchesPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><head><title>Test Page</title></head><body>Hello there</body></html>"))
	}))
	defer server.Close()

	tool := NewOpenURLTool(3, 5*time.Second)
	resp, err := tool.Run(context.Background(), map[string]any{"url": server.URL})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !strings.Contains(resp.LLMFacingResponse, "Hello there") {
		t.Errorf("LLMFacingResponse missing page body: %q", resp.LLMFacingResponse)
	}
	rich, ok := resp.Rich.(SearchDocsResponse)
	if !ok || len(rich.SearchDocs) != 1 {
		t.Fatalf("Rich = %+v, want one search doc", resp.Rich)
	}
	doc := rich.SearchDocs[0]
	if doc.Title != "Test Page" {
		t.Errorf("Title = %q, want extracted page title", doc.Title)
	}
	if doc.DocumentID != server.URL || doc.SourceType != "web" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestOpenURLTool_HTTPErrorIsSoft(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	tool := NewOpenURLTool(3, 5*time.Second)
	resp, err := tool.Run(context.Background(), map[string]any{"url": server.URL})
	if err != nil {
		t.Fatalf("Run() error = %v, want soft failure", err)
	}
	if !strings.Contains(resp.LLMFacingResponse, "HTTP error") {
		t.Errorf("LLMFacingResponse = %q", resp.LLMFacingResponse)
	}
	if resp.Rich != nil {
		t.Errorf("Rich = %+v, want no document for an error page", resp.Rich)
	}
}

func TestOpenURLTool_DomainAllowlist(t *testing.T) {
	tool := NewOpenURLTool(3, 5*time.Second).WithAllowedDomains([]string{"example.com"})

	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/page", true},
		{"https://sub.example.com/page", true},
		{"https://evil.com/example.com", false},
		{"https://notexample.com/", false},
	}
	for _, tt := range tests {
		if got := tool.isDomainAllowed(tt.url); got != tt.want {
			t.Errorf("isDomainAllowed(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestOpenURLTool_BlockedDomainIsSoft(t *testing.T) {
	tool := NewOpenURLTool(3, 5*time.Second).WithAllowedDomains([]string{"example.com"})

	resp, err := tool.Run(context.Background(), map[string]any{"url": "https://blocked.org/page"})
	if err != nil {
		t.Fatalf("Run() error = %v, want soft refusal", err)
	}
	if !strings.Contains(resp.LLMFacingResponse, "not allowed") {
		t.Errorf("LLMFacingResponse = %q", resp.LLMFacingResponse)
	}
}

func TestExtractHTMLTitle(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"<html><title>Simple</title></html>", "Simple"},
		{`<TITLE lang="en"> Spaced </TITLE>`, "Spaced"},
		{"<html><body>no title</body></html>", ""},
		{"<title>unclosed", ""},
	}
	for _, tt := range tests {
		if got := extractHTMLTitle(tt.body); got != tt.want {
			t.Errorf("extractHTMLTitle(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestSearchTool_QueriesIndex(t *testing.T) {
	index := indexFunc(func(ctx context.Context, query string, limit int) ([]model.SearchDoc, error) {
		if query != "onboarding" {
			t.Errorf("query = %q", query)
		}
		return []model.SearchDoc{{DocumentID: "doc-1", Title: "Onboarding guide"}}, nil
	})
	tool := NewSearchTool(1, index)

	resp, err := tool.Run(context.Background(), map[string]any{"query": "onboarding"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	rich := resp.Rich.(SearchDocsResponse)
	if len(rich.SearchDocs) != 1 || rich.SearchDocs[0].DocumentID != "doc-1" {
		t.Errorf("docs = %+v", rich.SearchDocs)
	}
	// Model-facing text is left for the dispatcher to fill in.
	if resp.LLMFacingResponse != "" {
		t.Errorf("LLMFacingResponse = %q, want empty before dispatch", resp.LLMFacingResponse)
	}
}

// indexFunc adapts a function to DocumentIndex.
type indexFunc func(ctx context.Context, query string, limit int) ([]model.SearchDoc, error)

func (f indexFunc) Search(ctx context.Context, query string, limit int) ([]model.SearchDoc, error) {
	return f(ctx, query, limit)
}

func TestBlurbOf_RuneBoundary(t *testing.T) {
	// The 200-byte cut point lands inside the two-byte "é".
	long := strings.Repeat("a", 199) + "éllo there"
	got := blurbOf(long)
	if len(got) > 200 {
		t.Errorf("blurb length = %d, want at most 200", len(got))
	}
	if !utf8.ValidString(got) {
		t.Errorf("blurb is invalid UTF-8: %q", got)
	}

	if got := blurbOf("  short page  "); got != "short page" {
		t.Errorf("blurbOf(short) = %q, want trimmed text", got)
	}
}
