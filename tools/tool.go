// Package tools provides the tool system for the turn loop.
//
// Information Hiding:
// - Tool execution details hidden behind interface
// - Tool parameters and schemas hidden in implementations
// - Registry implementation details hidden from consumers
// - Error handling internalized per tool
package tools

import (
	"context"

	"github.com/mwielandt/tern/llm"
	"github.com/mwielandt/tern/model"
)

// Canonical tool names. The loop controller classifies tools by name.
const (
	NameSearch    = "internal_search"
	NameWebSearch = "web_search"
	NameOpenURL   = "open_url"
	NameImageGen  = "generate_image"
)

// IsCiteable reports whether a tool's results can be cited in the final
// answer.
func IsCiteable(name string) bool {
	switch name {
	case NameSearch, NameWebSearch, NameOpenURL:
		return true
	}
	return false
}

// IsStopping reports whether a tool forces the next cycle to be
// answer-only with no further tool use.
func IsStopping(name string) bool {
	return name == NameImageGen
}

// Tool is the interface that all tools must implement.
//
// Information Hiding: Tool implementations hide their internal execution
// logic, data structures, and error handling strategies behind this
// interface.
type Tool interface {
	// Name returns the stable tool name the model calls it by.
	Name() string

	// ID returns the stable persisted identifier for this tool.
	ID() int

	// Definition returns the function declaration passed to the model.
	Definition() llm.ToolDefinition

	// Run executes the tool with the given arguments.
	Run(ctx context.Context, args map[string]any) (Response, error)
}

// Response is the result of one tool execution: the text fed back to the
// model plus an optional rich payload for the client and persistence.
type Response struct {
	ToolCallID        string
	ToolName          string
	LLMFacingResponse string
	Rich              RichResponse
}

// RichResponse is a tagged union of structured tool payloads. A nil Rich
// field means the response is plain text.
type RichResponse interface {
	isRichResponse()
}

// SearchDocsResponse carries documents surfaced by a search-type tool
// along with the citation numbers assigned to them.
type SearchDocsResponse struct {
	SearchDocs []model.SearchDoc
	// CitationMapping maps assigned citation numbers to document ids.
	CitationMapping map[int]string
}

func (SearchDocsResponse) isRichResponse() {}

// GeneratedImagesResponse carries images produced by the image
// generation tool.
type GeneratedImagesResponse struct {
	GeneratedImages []model.GeneratedImage
}

func (GeneratedImagesResponse) isRichResponse() {}
