// Package model provides domain types shared across packages.
package model

import "encoding/base64"

// Role classifies a message in the simplified conversation history.
// RoleToolCall and RoleToolCallResponse are distinct from the provider-facing
// "assistant"/"tool" roles; the wire translator maps between the two.
type Role string

const (
	RoleSystem           Role = "system"
	RoleUser             Role = "user"
	RoleAssistant        Role = "assistant"
	RoleToolCall         Role = "tool_call"
	RoleToolCallResponse Role = "tool_call_response"
)

// ImageFile holds raw image bytes attached to a message.
// Read-only once constructed.
type ImageFile struct {
	ID   string
	Data []byte
}

// ToBase64 returns the image bytes encoded as standard base64.
func (f ImageFile) ToBase64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}

// ConversationMessage is the internal simplified message representation.
// Values are immutable once constructed; WithImages builds a new value
// rather than mutating.
type ConversationMessage struct {
	Text       string
	TokenCount int
	Role       Role
	ToolCallID string
	Images     []ImageFile
}

// WithImages returns a copy of the message with the given images appended
// after any existing attachments.
func (m ConversationMessage) WithImages(images []ImageFile) ConversationMessage {
	combined := make([]ImageFile, 0, len(m.Images)+len(images))
	combined = append(combined, m.Images...)
	combined = append(combined, images...)
	m.Images = combined
	return m
}

// ProjectFiles is the extracted content of a project's attached files:
// plain-text extractions plus any image attachments. TotalTokenCount is
// precomputed by the extractor and charged against the budget in place of
// re-estimating the text.
type ProjectFiles struct {
	FileTexts       []string
	ImageFiles      []ImageFile
	TotalTokenCount int
}

// SearchDoc is a document surfaced by a search-type tool.
type SearchDoc struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Link       string `json:"link"`
	Blurb      string `json:"blurb"`
	SourceType string `json:"source_type"`
}

// CitationDocInfo pairs a citation number with the document it refers to.
type CitationDocInfo struct {
	CitationNumber int       `json:"citation_number"`
	Doc            SearchDoc `json:"search_doc"`
}

// GeneratedImage describes one image produced by the image generation tool.
type GeneratedImage struct {
	FileID string `json:"file_id"`
	URL    string `json:"url,omitempty"`
	Prompt string `json:"prompt"`
}

// ToolCallKickoff is a fully assembled tool invocation request extracted
// from the model's stream. Only materialized once both an id and a name
// are known.
type ToolCallKickoff struct {
	ToolCallID string
	ToolName   string
	ToolArgs   map[string]any
}

// ToolCallInfo is the persisted-turn-facing record of one executed tool
// call. ParentToolCallID is always empty at this layer: top-level tool
// calls are attached directly to the chat message.
type ToolCallInfo struct {
	ParentToolCallID string
	TurnIndex        int
	ToolName         string
	ToolCallID       string
	ToolID           int
	ReasoningTokens  string
	Arguments        map[string]any
	Response         string
	SearchDocs       []SearchDoc
	GeneratedImages  []GeneratedImage
}
