// Web search tool - queries an external search provider.
//
// Information Hiding:
// - Search provider protocol hidden behind WebSearchProvider
// - Result mapping into search documents

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mwielandt/tern/llm"
	"github.com/mwielandt/tern/model"
)

// WebSearchProvider executes a web search and returns result documents.
type WebSearchProvider interface {
	SearchWeb(ctx context.Context, query string, limit int) ([]model.SearchDoc, error)
}

// WebSearchTool searches the public web.
type WebSearchTool struct {
	id       int
	provider WebSearchProvider
	limit    int
}

// NewWebSearchTool creates a web search tool over the given provider.
func NewWebSearchTool(id int, provider WebSearchProvider) *WebSearchTool {
	return &WebSearchTool{
		id:       id,
		provider: provider,
		limit:    DefaultSearchLimit,
	}
}

// WithLimit overrides the result count.
func (t *WebSearchTool) WithLimit(limit int) *WebSearchTool {
	if limit > 0 {
		t.limit = limit
	}
	return t
}

// Name returns the tool name.
func (t *WebSearchTool) Name() string { return NameWebSearch }

// ID returns the persisted tool id.
func (t *WebSearchTool) ID() int { return t.id }

// Definition returns the function declaration for the model.
func (t *WebSearchTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name: NameWebSearch,
		Description: "Search the public web for current information. Results are snippets; " +
			"follow up with open_url on promising results to read full pages.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The web search query",
				},
			},
			"required": []string{"query"},
		},
	}
}

// Run performs the search.
func (t *WebSearchTool) Run(ctx context.Context, args map[string]any) (Response, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return Response{}, fmt.Errorf("query argument is required")
	}

	docs, err := t.provider.SearchWeb(ctx, query, t.limit)
	if err != nil {
		return Response{}, fmt.Errorf("web search failed: %w", err)
	}

	if len(docs) == 0 {
		return Response{
			LLMFacingResponse: fmt.Sprintf("No web results found for query %q.", query),
			Rich:              SearchDocsResponse{},
		}, nil
	}

	return Response{
		Rich: SearchDocsResponse{
			SearchDocs: docs,
		},
	}, nil
}

var _ Tool = (*WebSearchTool)(nil)

// SearxProvider implements WebSearchProvider against a SearXNG instance's
// JSON API.
type SearxProvider struct {
	baseURL string
	client  *http.Client
}

// NewSearxProvider creates a provider for the SearXNG instance at baseURL.
func NewSearxProvider(baseURL string, timeout time.Duration) *SearxProvider {
	return &SearxProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type searxResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type searxResponse struct {
	Results []searxResult `json:"results"`
}

// SearchWeb queries the instance's /search endpoint with JSON output.
func (p *SearxProvider) SearchWeb(ctx context.Context, query string, limit int) ([]model.SearchDoc, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s&format=json", p.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search provider returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var decoded searxResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	docs := make([]model.SearchDoc, 0, limit)
	for _, result := range decoded.Results {
		if len(docs) >= limit {
			break
		}
		docs = append(docs, model.SearchDoc{
			DocumentID: result.URL,
			Title:      result.Title,
			Link:       result.URL,
			Blurb:      result.Content,
			SourceType: "web",
		})
	}
	return docs, nil
}

var _ WebSearchProvider = (*SearxProvider)(nil)
