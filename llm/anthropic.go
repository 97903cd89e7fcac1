// Anthropic Provider implementation using official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for Anthropic Messages API
// - Translation of content-block events into the common packet shape

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// AnthropicProvider implements the Provider interface for Anthropic Claude.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, model string, maxTokens uint32, temperature float32) *AnthropicProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &AnthropicProvider{
		client:      client,
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: float64(temperature),
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Model returns the current model.
func (p *AnthropicProvider) Model() string {
	return p.model
}

// Config returns the model configuration.
func (p *AnthropicProvider) Config() ModelConfig {
	return ModelConfig{
		Provider:       "anthropic",
		Model:          p.model,
		MaxInputTokens: MaxInputTokensFor(p.model),
	}
}

// Stream starts a streaming chat completion with tool support.
func (p *AnthropicProvider) Stream(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, toolChoice ToolChoice) (Stream, error) {
	anthropicMessages, systemPrompt := convertToAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   p.maxTokens,
		Messages:    anthropicMessages,
		Temperature: anthropic.Float(p.temperature),
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	if len(tools) > 0 && toolChoice != ToolChoiceNone {
		params.Tools = convertToAnthropicTools(tools)
		if toolChoice == ToolChoiceRequired {
			params.ToolChoice = anthropic.ToolChoiceUnionParam{
				OfAny: &anthropic.ToolChoiceAnyParam{},
			}
		} else {
			params.ToolChoice = anthropic.ToolChoiceUnionParam{
				OfAuto: &anthropic.ToolChoiceAutoParam{},
			}
		}
	}

	return &anthropicStream{stream: p.client.Messages.NewStreaming(ctx, params)}, nil
}

// anthropicStream translates Anthropic streaming events into StreamPackets.
// Content block indexes double as tool-call delta indexes: a tool_use block
// start carries the id and name, and input_json deltas carry argument
// fragments for the same index.
type anthropicStream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
	usage  TokenUsage
}

func (s *anthropicStream) Recv() (StreamPacket, error) {
	for s.stream.Next() {
		event := s.stream.Current()

		switch eventVariant := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			s.usage.PromptTokens = uint32(eventVariant.Message.Usage.InputTokens)

		case anthropic.ContentBlockStartEvent:
			switch block := eventVariant.ContentBlock.AsAny().(type) {
			case anthropic.ToolUseBlock:
				return StreamPacket{
					Delta: StreamDelta{
						ToolCalls: []ToolCallDelta{{
							Index: int(eventVariant.Index),
							ID:    block.ID,
							Name:  block.Name,
						}},
					},
				}, nil
			}

		case anthropic.ContentBlockDeltaEvent:
			switch delta := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if delta.Text != "" {
					return StreamPacket{Delta: StreamDelta{Content: delta.Text}}, nil
				}
			case anthropic.ThinkingDelta:
				if delta.Thinking != "" {
					return StreamPacket{Delta: StreamDelta{ReasoningContent: delta.Thinking}}, nil
				}
			case anthropic.InputJSONDelta:
				if delta.PartialJSON != "" {
					return StreamPacket{
						Delta: StreamDelta{
							ToolCalls: []ToolCallDelta{{
								Index:             int(eventVariant.Index),
								ArgumentsFragment: delta.PartialJSON,
							}},
						},
					}, nil
				}
			}

		case anthropic.MessageDeltaEvent:
			s.usage.CompletionTokens = uint32(eventVariant.Usage.OutputTokens)
			s.usage.TotalTokens = s.usage.PromptTokens + s.usage.CompletionTokens
			usage := s.usage
			return StreamPacket{
				FinishReason: translateAnthropicStopReason(eventVariant.Delta.StopReason),
				Usage:        &usage,
			}, nil
		}
	}

	if err := s.stream.Err(); err != nil {
		return StreamPacket{}, fmt.Errorf("stream error: %w", err)
	}
	return StreamPacket{}, io.EOF
}

func (s *anthropicStream) Close() error {
	return s.stream.Close()
}

// translateAnthropicStopReason maps Anthropic stop reasons onto the chat
// completions vocabulary the executor expects.
func translateAnthropicStopReason(reason anthropic.StopReason) string {
	switch reason {
	case anthropic.StopReasonToolUse:
		return "tool_calls"
	case anthropic.StopReasonMaxTokens:
		return "length"
	case "":
		return "stop"
	default:
		return "stop"
	}
}

// convertToAnthropicMessages converts wire messages to Anthropic format.
// The system message is extracted and returned separately.
func convertToAnthropicMessages(messages []ChatMessage) ([]anthropic.MessageParam, string) {
	var anthropicMessages []anthropic.MessageParam
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemPrompt = msg.Content

		case "user":
			if len(msg.Parts) > 0 {
				var blocks []anthropic.ContentBlockParamUnion
				for _, part := range msg.Parts {
					switch part.Type {
					case PartTypeImageURL:
						if mediaType, data, ok := parseDataURI(part.ImageURL); ok {
							blocks = append(blocks, anthropic.NewImageBlockBase64(mediaType, data))
						}
					default:
						blocks = append(blocks, anthropic.NewTextBlock(part.Text))
					}
				}
				anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(blocks...))
			} else {
				anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
					anthropic.NewTextBlock(msg.Content),
				))
			}

		case "assistant":
			if len(msg.ToolCalls) > 0 {
				content := &anthropic.MessageParam{
					Role: anthropic.MessageParamRoleAssistant,
				}
				if msg.Content != "" {
					content.Content = append(content.Content, anthropic.NewTextBlock(msg.Content))
				}
				for _, tc := range msg.ToolCalls {
					var input map[string]any
					_ = json.Unmarshal([]byte(tc.Arguments), &input)
					content.Content = append(content.Content, anthropic.ContentBlockParamUnion{
						OfToolUse: &anthropic.ToolUseBlockParam{
							ID:    tc.ID,
							Name:  tc.Name,
							Input: input,
						},
					})
				}
				anthropicMessages = append(anthropicMessages, *content)
			} else if msg.Content != "" {
				anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(
					anthropic.NewTextBlock(msg.Content),
				))
			}

		case "tool":
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		}
	}

	return anthropicMessages, systemPrompt
}

// convertToAnthropicTools converts tool definitions to Anthropic format.
func convertToAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		properties, _ := t.Parameters["properties"].(map[string]any)

		var required []string
		switch req := t.Parameters["required"].(type) {
		case []string:
			required = req
		case []any:
			for _, r := range req {
				if name, ok := r.(string); ok {
					required = append(required, name)
				}
			}
		}

		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
				Required:   required,
			},
		}
		result[i] = anthropic.ToolUnionParam{OfTool: &toolParam}
	}
	return result
}

// Verify AnthropicProvider implements Provider
var _ Provider = (*AnthropicProvider)(nil)
