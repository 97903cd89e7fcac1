// Tool call dispatcher - sequential execution of model-requested tool calls
// with citation number bookkeeping.
//
// Information Hiding:
// - Citation number assignment for newly surfaced documents
// - Per-tool response shaping

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mwielandt/tern/model"
)

// RunToolCalls executes the given kickoffs in order against the available
// tools. Execution is strictly sequential.
//
// The citation mapping (citation number to document id) is extended, never
// shrunk: documents not yet numbered get the next free number, documents
// seen before keep theirs. Each search-type response carries the mapping
// entries covering its own documents. The updated mapping is returned so
// the caller can thread it into the next dispatch.
//
// A tool execution failure propagates as an error; no retry or fallback
// happens at this layer.
func RunToolCalls(
	ctx context.Context,
	kickoffs []model.ToolCallKickoff,
	available []Tool,
	citationMapping map[int]string,
) ([]Response, map[int]string, error) {
	updated := make(map[int]string, len(citationMapping))
	for num, docID := range citationMapping {
		updated[num] = docID
	}

	responses := make([]Response, 0, len(kickoffs))
	for _, kickoff := range kickoffs {
		tool, ok := FindByName(available, kickoff.ToolName)
		if !ok {
			return nil, nil, fmt.Errorf("tool '%s' not found in available tools", kickoff.ToolName)
		}

		response, err := tool.Run(ctx, kickoff.ToolArgs)
		if err != nil {
			return nil, nil, fmt.Errorf("tool '%s' failed: %w", kickoff.ToolName, err)
		}
		response.ToolCallID = kickoff.ToolCallID
		response.ToolName = kickoff.ToolName

		if docs, ok := response.Rich.(SearchDocsResponse); ok {
			docs.CitationMapping = assignCitationNumbers(docs.SearchDocs, updated)
			response.Rich = docs
			if response.LLMFacingResponse == "" {
				response.LLMFacingResponse = formatDocsForModel(docs.SearchDocs, docs.CitationMapping)
			}
		}

		responses = append(responses, response)
	}

	return responses, updated, nil
}

// formatDocsForModel renders search documents as a plain-text list using
// the citation numbers the model is expected to cite with.
func formatDocsForModel(docs []model.SearchDoc, citationMapping map[int]string) string {
	numberFor := make(map[string]int, len(citationMapping))
	for num, docID := range citationMapping {
		numberFor[docID] = num
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d documents:\n", len(docs))
	for _, doc := range docs {
		fmt.Fprintf(&b, "\n[%d] %s", numberFor[doc.DocumentID], doc.Title)
		if doc.Link != "" {
			fmt.Fprintf(&b, " (%s)", doc.Link)
		}
		b.WriteString("\n")
		b.WriteString(doc.Blurb)
		b.WriteString("\n")
	}
	return b.String()
}

// assignCitationNumbers gives every document a citation number, reusing
// numbers for documents already in the mapping and extending the mapping
// for new ones. Returns the entries covering just these documents.
func assignCitationNumbers(docs []model.SearchDoc, mapping map[int]string) map[int]string {
	numberFor := make(map[string]int, len(mapping))
	next := 1
	for num, docID := range mapping {
		numberFor[docID] = num
		if num >= next {
			next = num + 1
		}
	}

	result := make(map[int]string, len(docs))
	for _, doc := range docs {
		num, ok := numberFor[doc.DocumentID]
		if !ok {
			num = next
			next++
			numberFor[doc.DocumentID] = num
			mapping[num] = doc.DocumentID
		}
		result[num] = doc.DocumentID
	}
	return result
}
