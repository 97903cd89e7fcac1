package chat

import "github.com/mwielandt/tern/model"

// Event is one element of the ordered output stream a client renders as an
// append-only transcript. It is a sealed union; consumers discriminate with
// a type switch.
type Event interface {
	isEvent()
}

// Packet pairs an event with the turn index that groups it into a
// UI-renderable block (a reasoning block, an answer block, a tool call).
type Packet struct {
	TurnIndex int
	Event     Event
}

// ReasoningStart opens a reasoning block.
type ReasoningStart struct{}

// ReasoningDelta carries one fragment of reasoning text.
type ReasoningDelta struct {
	Reasoning string
}

// ReasoningDone closes the current reasoning block.
type ReasoningDone struct{}

// AgentResponseStart opens the answer block. FinalDocuments is the snapshot
// of all documents gathered so far, so a client can render sources
// alongside the first answer token.
type AgentResponseStart struct {
	FinalDocuments []model.SearchDoc
}

// AgentResponseDelta carries one fragment of answer text.
type AgentResponseDelta struct {
	Answer string
}

// CitationInfo is a resolved citation marker encountered in the answer.
type CitationInfo struct {
	CitationNumber int
	DocumentID     string
	Link           string
}

// ToolCallStart announces that a tool invocation is about to run.
type ToolCallStart struct {
	ToolCallID string
	ToolName   string
	ToolArgs   map[string]any
}

// ToolCallDone carries the outcome of a completed tool invocation.
type ToolCallDone struct {
	ToolCallID      string
	ToolName        string
	SearchDocs      []model.SearchDoc
	GeneratedImages []model.GeneratedImage
}

// OverallStop terminates the stream. Emitted only after the turn has been
// durably persisted.
type OverallStop struct{}

func (ReasoningStart) isEvent()     {}
func (ReasoningDelta) isEvent()     {}
func (ReasoningDone) isEvent()      {}
func (AgentResponseStart) isEvent() {}
func (AgentResponseDelta) isEvent() {}
func (CitationInfo) isEvent()       {}
func (ToolCallStart) isEvent()      {}
func (ToolCallDone) isEvent()       {}
func (OverallStop) isEvent()        {}
