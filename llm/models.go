// Package llm provides shared data models for LLM providers.
package llm

// ChatMessage is a provider-facing chat message. It mirrors the chat
// completions wire shape: a role, plain text content or multimodal parts,
// optional tool calls (assistant messages) and an optional tool call id
// (tool result messages).
type ChatMessage struct {
	Role       string        `json:"role"`
	Content    string        `json:"content,omitempty"`
	Parts      []ContentPart `json:"parts,omitempty"`
	ToolCalls  []ToolCall    `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

// Content part types.
const (
	PartTypeText     = "text"
	PartTypeImageURL = "image_url"
)

// ContentPart is one element of a multimodal message: either text or an
// image referenced by URL (typically a base64 data URI).
type ContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// ToolCall represents a fully assembled tool call on an assistant message.
// Arguments is the raw JSON argument string.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition defines a tool that the LLM can call.
// Parameters is a JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolChoice controls whether the model may, must, or must not call tools.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
	ToolChoiceNone     ToolChoice = "none"
)

// SystemMessage creates a system message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: "system", Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: content}
}

// ToolCallDelta is one streamed fragment of a tool call. Deltas carrying
// the same Index belong to the same call; argument fragments must be
// concatenated in arrival order.
type ToolCallDelta struct {
	Index             int
	ID                string
	Name              string
	ArgumentsFragment string
}

// StreamDelta is the incremental payload of one stream packet.
type StreamDelta struct {
	Content          string
	ReasoningContent string
	ToolCalls        []ToolCallDelta
}

// StreamPacket is one element of a model output stream. A non-empty
// FinishReason marks the terminal packet.
type StreamPacket struct {
	Delta        StreamDelta
	FinishReason string
	Usage        *TokenUsage
}

// TokenUsage contains token usage statistics.
type TokenUsage struct {
	PromptTokens     uint32
	CompletionTokens uint32
	TotalTokens      uint32
}

// ModelConfig describes the selected model and its input budget.
type ModelConfig struct {
	Provider       string
	Model          string
	MaxInputTokens int
}

// OpenAI model identifiers.
const (
	ModelOpenAIGPT52     = "gpt-5.2"
	ModelOpenAIGPT5      = "gpt-5"
	ModelOpenAIO3Mini    = "o3-mini"
	ModelOpenAIGPT4o     = "gpt-4o"
	ModelOpenAIGPT4oMini = "gpt-4o-mini"
)

// Anthropic model identifiers.
const (
	ModelAnthropicClaudeOpus45  = "claude-opus-4-5-20251101"
	ModelAnthropicClaudeSonnet4 = "claude-sonnet-4-20250514"
	ModelAnthropicClaudeHaiku4  = "claude-haiku-4-20250514"
)

// DeepSeek model identifiers.
const (
	ModelDeepSeekV32 = "deepseek-v3.2"
	ModelDeepSeekR1  = "deepseek-r1"
)

// Gemini model identifiers.
const (
	ModelGeminiPro3   = "gemini-3-pro"
	ModelGeminiFlash3 = "gemini-3-flash"
)

// contextWindows maps model identifiers to their maximum input token
// budgets. Models not listed fall back to DefaultMaxInputTokens.
var contextWindows = map[string]int{
	ModelOpenAIGPT52:            272000,
	ModelOpenAIGPT5:             272000,
	ModelOpenAIO3Mini:           200000,
	ModelOpenAIGPT4o:            128000,
	ModelOpenAIGPT4oMini:        128000,
	ModelAnthropicClaudeOpus45:  200000,
	ModelAnthropicClaudeSonnet4: 200000,
	ModelAnthropicClaudeHaiku4:  200000,
	ModelDeepSeekV32:            128000,
	ModelDeepSeekR1:             128000,
	ModelGeminiPro3:             1000000,
	ModelGeminiFlash3:           1000000,
}

// DefaultMaxInputTokens is the input budget assumed for unknown models.
const DefaultMaxInputTokens = 128000

// MaxInputTokensFor returns the input token budget for a model.
func MaxInputTokensFor(model string) int {
	if window, ok := contextWindows[model]; ok {
		return window
	}
	return DefaultMaxInputTokens
}
