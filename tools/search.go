// Internal search tool - queries the connected document index.
//
// Information Hiding:
// - Index backend hidden behind DocumentIndex
// - Result formatting for the model

package tools

import (
	"context"
	"fmt"

	"github.com/mwielandt/tern/llm"
	"github.com/mwielandt/tern/model"
)

// DefaultSearchLimit is how many documents a search returns when the
// caller does not override it.
const DefaultSearchLimit = 10

// DocumentIndex is the knowledge source behind the search tool. Connector
// pipelines fill it; this subsystem only queries it.
type DocumentIndex interface {
	Search(ctx context.Context, query string, limit int) ([]model.SearchDoc, error)
}

// SearchTool searches the organization's connected documents.
type SearchTool struct {
	id    int
	index DocumentIndex
	limit int
}

// NewSearchTool creates a search tool over the given index.
func NewSearchTool(id int, index DocumentIndex) *SearchTool {
	return &SearchTool{
		id:    id,
		index: index,
		limit: DefaultSearchLimit,
	}
}

// WithLimit overrides the result count.
func (t *SearchTool) WithLimit(limit int) *SearchTool {
	if limit > 0 {
		t.limit = limit
	}
	return t
}

// Name returns the tool name.
func (t *SearchTool) Name() string { return NameSearch }

// ID returns the persisted tool id.
func (t *SearchTool) ID() int { return t.id }

// Definition returns the function declaration for the model.
func (t *SearchTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name: NameSearch,
		Description: "Search the organization's connected documents and knowledge bases. " +
			"Use this for questions about internal information, processes, or anything " +
			"that might be covered by indexed company content.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
			},
			"required": []string{"query"},
		},
	}
}

// Run queries the index and returns the matching documents.
func (t *SearchTool) Run(ctx context.Context, args map[string]any) (Response, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return Response{}, fmt.Errorf("query argument is required")
	}

	docs, err := t.index.Search(ctx, query, t.limit)
	if err != nil {
		return Response{}, fmt.Errorf("search failed: %w", err)
	}

	if len(docs) == 0 {
		return Response{
			LLMFacingResponse: fmt.Sprintf("No documents found for query %q.", query),
			Rich:              SearchDocsResponse{},
		}, nil
	}

	// The dispatcher fills in the model-facing text once citation
	// numbers are assigned, so the numbers the model sees match the
	// citation mapping.
	return Response{
		Rich: SearchDocsResponse{
			SearchDocs: docs,
		},
	}, nil
}

var _ Tool = (*SearchTool)(nil)
